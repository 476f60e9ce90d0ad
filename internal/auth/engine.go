package auth

import (
	"github.com/helpdesk-kit/ticketd/internal/domain"
)

// Action enumerates the mutations and reads the engine gates.
type Action string

const (
	ActionCreateTicket    Action = "CREATE_TICKET"
	ActionViewTicket      Action = "VIEW_TICKET"
	ActionEditFields      Action = "EDIT_FIELDS"      // title, description
	ActionChangePriority  Action = "CHANGE_PRIORITY"  // priority, category
	ActionAssign          Action = "ASSIGN"
	ActionCommentPublic   Action = "COMMENT_PUBLIC"
	ActionCommentInternal Action = "COMMENT_INTERNAL"
	ActionViewInternal    Action = "VIEW_INTERNAL"
	ActionDeactivateUser  Action = "DEACTIVATE_USER"
)

// Engine is the pure authorization decision function. Same inputs always
// yield the same decision; it holds no state and reads no clock.
type Engine struct{}

// NewEngine constructs the engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Allow decides (role, action, relationship, status) -> permit. Status only
// matters for field edits, where creators lose write access once triage
// starts and staff lose it at the terminal state.
func (e *Engine) Allow(principal domain.Principal, action Action, rel domain.Relationship, status domain.TicketStatus) bool {
	role := principal.Role
	if !role.Valid() {
		return false
	}
	switch action {
	case ActionCreateTicket:
		return true
	case ActionViewTicket:
		return role.Staff() || rel == domain.RelationshipCreator || rel == domain.RelationshipAssignee
	case ActionEditFields:
		if role.Staff() {
			return !status.Terminal()
		}
		return rel == domain.RelationshipCreator && status == domain.TicketStatusOpen
	case ActionChangePriority, ActionAssign:
		return role.Staff()
	case ActionCommentPublic:
		return role.Staff() || rel == domain.RelationshipCreator || rel == domain.RelationshipAssignee
	case ActionCommentInternal, ActionViewInternal:
		return role.Staff()
	case ActionDeactivateUser:
		return role == domain.RoleAdmin
	}
	return false
}

// AllowTransition gates status changes by role on top of the transition
// table. A USER may only provide awaited input (Pending -> InProgress) or
// dispute a resolution (Resolved -> Reopened), and only on their own ticket.
// Reopening a closed ticket is an admin override. Everything else is staff.
func (e *Engine) AllowTransition(principal domain.Principal, rel domain.Relationship, from, to domain.TicketStatus) bool {
	if from == domain.TicketStatusClosed && to == domain.TicketStatusReopened {
		return principal.Role == domain.RoleAdmin
	}
	if principal.Role.Staff() {
		return true
	}
	if rel != domain.RelationshipCreator {
		return false
	}
	switch {
	case from == domain.TicketStatusPending && to == domain.TicketStatusInProgress:
		return true
	case from == domain.TicketStatusResolved && to == domain.TicketStatusReopened:
		return true
	}
	return false
}

// CommentAction maps a visibility tier to its gate.
func CommentAction(visibility domain.CommentVisibility) Action {
	if visibility == domain.VisibilityInternal {
		return ActionCommentInternal
	}
	return ActionCommentPublic
}

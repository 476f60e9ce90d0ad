package auth

import (
	"testing"

	"github.com/helpdesk-kit/ticketd/internal/domain"
)

func principal(role domain.Role) domain.Principal {
	return domain.Principal{UserID: "p-1", Role: role}
}

func TestAllowMatrix(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name   string
		role   domain.Role
		action Action
		rel    domain.Relationship
		status domain.TicketStatus
		want   bool
	}{
		{"anyone creates", domain.RoleUser, ActionCreateTicket, domain.RelationshipNone, "", true},

		{"creator views own", domain.RoleUser, ActionViewTicket, domain.RelationshipCreator, domain.TicketStatusOpen, true},
		{"stranger cannot view", domain.RoleUser, ActionViewTicket, domain.RelationshipNone, domain.TicketStatusOpen, false},
		{"agent views any", domain.RoleAgent, ActionViewTicket, domain.RelationshipNone, domain.TicketStatusOpen, true},

		{"creator edits while open", domain.RoleUser, ActionEditFields, domain.RelationshipCreator, domain.TicketStatusOpen, true},
		{"creator loses edit after triage", domain.RoleUser, ActionEditFields, domain.RelationshipCreator, domain.TicketStatusAssigned, false},
		{"agent edits non-terminal", domain.RoleAgent, ActionEditFields, domain.RelationshipNone, domain.TicketStatusInProgress, true},
		{"agent cannot edit closed", domain.RoleAgent, ActionEditFields, domain.RelationshipNone, domain.TicketStatusClosed, false},
		{"admin cannot edit closed", domain.RoleAdmin, ActionEditFields, domain.RelationshipNone, domain.TicketStatusClosed, false},

		{"user never changes priority", domain.RoleUser, ActionChangePriority, domain.RelationshipCreator, domain.TicketStatusOpen, false},
		{"agent changes priority", domain.RoleAgent, ActionChangePriority, domain.RelationshipNone, domain.TicketStatusOpen, true},
		{"user never assigns", domain.RoleUser, ActionAssign, domain.RelationshipCreator, domain.TicketStatusOpen, false},
		{"admin assigns", domain.RoleAdmin, ActionAssign, domain.RelationshipNone, domain.TicketStatusOpen, true},

		{"creator comments public", domain.RoleUser, ActionCommentPublic, domain.RelationshipCreator, domain.TicketStatusInProgress, true},
		{"assignee comments public", domain.RoleAgent, ActionCommentPublic, domain.RelationshipAssignee, domain.TicketStatusInProgress, true},
		{"stranger cannot comment", domain.RoleUser, ActionCommentPublic, domain.RelationshipNone, domain.TicketStatusInProgress, false},
		{"user never comments internal", domain.RoleUser, ActionCommentInternal, domain.RelationshipCreator, domain.TicketStatusInProgress, false},
		{"agent comments internal", domain.RoleAgent, ActionCommentInternal, domain.RelationshipNone, domain.TicketStatusInProgress, true},
		{"user never views internal", domain.RoleUser, ActionViewInternal, domain.RelationshipCreator, domain.TicketStatusInProgress, false},

		{"agent cannot deactivate", domain.RoleAgent, ActionDeactivateUser, domain.RelationshipNone, "", false},
		{"admin deactivates", domain.RoleAdmin, ActionDeactivateUser, domain.RelationshipNone, "", true},

		{"unknown role denied", domain.Role("SUPERVISOR"), ActionViewTicket, domain.RelationshipCreator, domain.TicketStatusOpen, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := engine.Allow(principal(tc.role), tc.action, tc.rel, tc.status)
			if got != tc.want {
				t.Fatalf("Allow(%s, %s, %s, %s) = %v, want %v", tc.role, tc.action, tc.rel, tc.status, got, tc.want)
			}
		})
	}
}

func TestAllowTransitionGates(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name string
		role domain.Role
		rel  domain.Relationship
		from domain.TicketStatus
		to   domain.TicketStatus
		want bool
	}{
		{"agent assigns", domain.RoleAgent, domain.RelationshipNone, domain.TicketStatusOpen, domain.TicketStatusAssigned, true},
		{"agent resolves", domain.RoleAgent, domain.RelationshipAssignee, domain.TicketStatusInProgress, domain.TicketStatusResolved, true},
		{"admin closes", domain.RoleAdmin, domain.RelationshipNone, domain.TicketStatusResolved, domain.TicketStatusClosed, true},

		{"creator answers pending", domain.RoleUser, domain.RelationshipCreator, domain.TicketStatusPending, domain.TicketStatusInProgress, true},
		{"creator disputes resolution", domain.RoleUser, domain.RelationshipCreator, domain.TicketStatusResolved, domain.TicketStatusReopened, true},
		{"creator cannot resolve", domain.RoleUser, domain.RelationshipCreator, domain.TicketStatusInProgress, domain.TicketStatusResolved, false},
		{"creator cannot assign", domain.RoleUser, domain.RelationshipCreator, domain.TicketStatusOpen, domain.TicketStatusAssigned, false},
		{"stranger cannot answer pending", domain.RoleUser, domain.RelationshipNone, domain.TicketStatusPending, domain.TicketStatusInProgress, false},

		{"agent cannot reopen closed", domain.RoleAgent, domain.RelationshipAssignee, domain.TicketStatusClosed, domain.TicketStatusReopened, false},
		{"user cannot reopen closed", domain.RoleUser, domain.RelationshipCreator, domain.TicketStatusClosed, domain.TicketStatusReopened, false},
		{"admin reopens closed", domain.RoleAdmin, domain.RelationshipNone, domain.TicketStatusClosed, domain.TicketStatusReopened, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := engine.AllowTransition(principal(tc.role), tc.rel, tc.from, tc.to)
			if got != tc.want {
				t.Fatalf("AllowTransition(%s, %s, %s -> %s) = %v, want %v", tc.role, tc.rel, tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestEngineIsDeterministic(t *testing.T) {
	engine := NewEngine()
	p := principal(domain.RoleAgent)
	first := engine.Allow(p, ActionEditFields, domain.RelationshipNone, domain.TicketStatusInProgress)
	for i := 0; i < 100; i++ {
		if engine.Allow(p, ActionEditFields, domain.RelationshipNone, domain.TicketStatusInProgress) != first {
			t.Fatal("same inputs must yield the same decision")
		}
	}
}

func TestCommentAction(t *testing.T) {
	if CommentAction(domain.VisibilityInternal) != ActionCommentInternal {
		t.Fatal("internal visibility maps to the internal gate")
	}
	if CommentAction(domain.VisibilityPublic) != ActionCommentPublic {
		t.Fatal("public visibility maps to the public gate")
	}
}

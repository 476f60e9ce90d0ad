package events

import (
	"time"

	"github.com/helpdesk-kit/ticketd/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketUpdated         EventType = "ticket_updated"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketCommentAdded    EventType = "ticket_comment_added"
	EventTicketEscalated       EventType = "ticket_escalated"
	EventTicketReopened        EventType = "ticket_reopened"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Category string                `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketUpdatedPayload lists the mutated fields.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Note      string              `json:"note,omitempty"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string                   `json:"comment_id"`
	AuthorID    string                   `json:"author_id"`
	Visibility  domain.CommentVisibility `json:"visibility"`
	BodyPreview string                   `json:"body_preview"`
}

// EscalationPayload signals an SLA breach. Emitted exactly once per breach;
// consumed by the notification collaborator or a reassignment policy.
type EscalationPayload struct {
	Priority  domain.TicketPriority `json:"priority"`
	Status    domain.TicketStatus   `json:"status"`
	Elapsed   time.Duration         `json:"elapsed"`
	Threshold time.Duration         `json:"threshold"`
}

// TicketReopenedPayload distinguishes a dispute from an admin override.
type TicketReopenedPayload struct {
	FromStatus domain.TicketStatus `json:"from_status"`
}

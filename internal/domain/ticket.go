package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusReopened   TicketStatus = "REOPENED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress,
		TicketStatusPending, TicketStatusResolved, TicketStatusClosed,
		TicketStatusReopened:
		return true
	}
	return false
}

// Active reports whether the status counts against SLA dwell limits.
func (s TicketStatus) Active() bool {
	switch s {
	case TicketStatusAssigned, TicketStatusInProgress, TicketStatusPending:
		return true
	}
	return false
}

// Terminal reports whether the status ends the lifecycle. Closed is terminal
// except for the explicit admin reopen.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed
}

// RequiresAssignee reports whether a ticket in this status must carry an
// assignee.
func (s TicketStatus) RequiresAssignee() bool {
	switch s {
	case TicketStatusAssigned, TicketStatusInProgress, TicketStatusPending:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. Comments are embedded: a
// ticket and its thread persist and version together as one record.
type Ticket struct {
	ID              string
	Title           string
	Description     string
	Status          TicketStatus
	Priority        TicketPriority
	Category        string
	CreatedBy       string
	AssignedTo      *string
	Comments        []Comment
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StatusEnteredAt time.Time
	EscalatedAt     *time.Time
	ClosedAt        *time.Time
	Version         int64
}

// WasClosed reports whether the ticket has ever been through Closed; a
// Reopened ticket preserves that history rather than starting a new record.
func (t *Ticket) WasClosed() bool {
	return t.ClosedAt != nil
}

// Clone returns a deep copy so mutation drafts never alias stored state.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	dup := *t
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		dup.AssignedTo = &assignee
	}
	if t.EscalatedAt != nil {
		escalated := *t.EscalatedAt
		dup.EscalatedAt = &escalated
	}
	if t.ClosedAt != nil {
		closed := *t.ClosedAt
		dup.ClosedAt = &closed
	}
	dup.Comments = make([]Comment, len(t.Comments))
	copy(dup.Comments, t.Comments)
	return &dup
}

package domain

import (
	"time"

	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

// allowedTransitions is the full lifecycle table. The machine is strict: no
// implicit skips, and anything absent here is INVALID_TRANSITION.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusAssigned},
	TicketStatusAssigned:   {TicketStatusInProgress},
	TicketStatusInProgress: {TicketStatusPending, TicketStatusResolved},
	TicketStatusPending:    {TicketStatusInProgress},
	TicketStatusResolved:   {TicketStatusClosed, TicketStatusReopened},
	TicketStatusClosed:     {TicketStatusReopened},
	TicketStatusReopened:   {TicketStatusAssigned, TicketStatusInProgress},
}

// CanTransition reports whether current -> next is in the table.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TransitionsFrom returns the allowed target statuses for a state.
func TransitionsFrom(current TicketStatus) []TicketStatus {
	targets := allowedTransitions[current]
	out := make([]TicketStatus, len(targets))
	copy(out, targets)
	return out
}

// ApplyTransition validates and applies a status change in place. On success
// it resets StatusEnteredAt, clears the escalation marker, and maintains the
// assignment invariant: an assignee is required while entering Assigned,
// InProgress or Pending, preserved through Resolved/Closed, and cleared only
// by the admin reopen out of Closed (the ticket goes back to triage).
//
// The caller owns persistence; Version is bumped by the store on write.
func ApplyTransition(ticket *Ticket, next TicketStatus, now time.Time) error {
	if !next.Valid() {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": string(next)})
	}
	if !CanTransition(ticket.Status, next) {
		return apperrors.NewInvalidTransition(string(ticket.Status), string(next))
	}
	if next.RequiresAssignee() && ticket.AssignedTo == nil {
		return apperrors.NewValidationError("assignee required for status", map[string]any{"status": string(next)})
	}

	if ticket.Status == TicketStatusClosed && next == TicketStatusReopened {
		ticket.AssignedTo = nil
	}
	if next == TicketStatusClosed {
		closed := now
		ticket.ClosedAt = &closed
	}

	ticket.Status = next
	ticket.StatusEnteredAt = now
	ticket.EscalatedAt = nil
	ticket.UpdatedAt = now
	return nil
}

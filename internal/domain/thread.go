package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

// CommentVisibility separates requester-facing replies from staff notes.
type CommentVisibility string

const (
	VisibilityPublic   CommentVisibility = "PUBLIC"
	VisibilityInternal CommentVisibility = "INTERNAL"
)

// Valid reports whether v is a known visibility tier.
func (v CommentVisibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityInternal
}

// Comment is one entry in a ticket's append-only thread. Immutable once
// created; the core API never edits or removes one.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	Body       string
	Visibility CommentVisibility
	CreatedAt  time.Time
}

// AppendComment validates and appends a comment to the ticket's thread,
// preserving insertion order. Visibility permission is the authorization
// engine's concern; this only enforces thread rules: non-empty body, known
// visibility, and no public replies from non-staff on a closed ticket (staff
// may still leave post-closure audit notes of either tier).
func AppendComment(ticket *Ticket, author Principal, body string, visibility CommentVisibility, now time.Time) (*Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}
	if !visibility.Valid() {
		return nil, apperrors.NewValidationError("unknown visibility", map[string]any{"visibility": string(visibility)})
	}
	if ticket.Status == TicketStatusClosed && visibility == VisibilityPublic && !author.Role.Staff() {
		return nil, apperrors.NewValidationError("ticket is closed", map[string]any{"ticket_id": ticket.ID})
	}

	comment := Comment{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		AuthorID:   author.UserID,
		Body:       body,
		Visibility: visibility,
		CreatedAt:  now,
	}
	ticket.Comments = append(ticket.Comments, comment)
	ticket.UpdatedAt = now
	return &ticket.Comments[len(ticket.Comments)-1], nil
}

// VisibleComments filters the thread for a principal: internal comments are
// staff-only.
func VisibleComments(ticket *Ticket, viewer Principal) []Comment {
	if viewer.Role.Staff() {
		out := make([]Comment, len(ticket.Comments))
		copy(out, ticket.Comments)
		return out
	}
	out := make([]Comment, 0, len(ticket.Comments))
	for _, comment := range ticket.Comments {
		if comment.Visibility == VisibilityInternal {
			continue
		}
		out = append(out, comment)
	}
	return out
}

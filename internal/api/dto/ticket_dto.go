package dto

import (
	"time"

	"github.com/helpdesk-kit/ticketd/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest payload; absent fields stay untouched.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Category    *string                `json:"category"`
	Priority    *domain.TicketPriority `json:"priority"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status domain.TicketStatus `json:"status"`
	Note   string              `json:"note"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body       string                   `json:"body"`
	Visibility domain.CommentVisibility `json:"visibility"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string                `json:"id"`
	Title           string                `json:"title"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	Category        string                `json:"category"`
	CreatedBy       string                `json:"created_by"`
	AssignedTo      *string               `json:"assigned_to"`
	CommentCount    int                   `json:"comment_count"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	StatusEnteredAt time.Time             `json:"status_entered_at"`
	Version         int64                 `json:"version"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID              string                `json:"id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	Category        string                `json:"category"`
	CreatedBy       string                `json:"created_by"`
	AssignedTo      *string               `json:"assigned_to"`
	Comments        []CommentResponse     `json:"comments"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	StatusEnteredAt time.Time             `json:"status_entered_at"`
	EscalatedAt     *time.Time            `json:"escalated_at"`
	ClosedAt        *time.Time            `json:"closed_at"`
	Version         int64                 `json:"version"`
}

// CommentResponse represents one thread entry.
type CommentResponse struct {
	ID         string                   `json:"id"`
	AuthorID   string                   `json:"author_id"`
	Body       string                   `json:"body"`
	Visibility domain.CommentVisibility `json:"visibility"`
	CreatedAt  time.Time                `json:"created_at"`
}

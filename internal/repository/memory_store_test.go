package repository

import (
	"context"
	"testing"
	"time"

	"github.com/helpdesk-kit/ticketd/internal/domain"
	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

func seedTicket(id, createdBy string, status domain.TicketStatus) *domain.Ticket {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Ticket{
		ID:              id,
		Title:           "title " + id,
		Description:     "desc",
		Status:          status,
		Priority:        domain.TicketPriorityMedium,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
		StatusEnteredAt: now,
	}
}

func TestMemoryStoreVersionSemantics(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTicketStore()

	stored, err := store.Put(ctx, seedTicket("t-1", "u-1", domain.TicketStatusOpen), 0)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if stored.Version != 1 {
		t.Fatalf("insert must yield version 1, got %d", stored.Version)
	}

	// Inserting an existing ID conflicts.
	if _, err := store.Put(ctx, seedTicket("t-1", "u-1", domain.TicketStatusOpen), 0); !apperrors.IsConflict(err) {
		t.Fatalf("duplicate insert: expected conflict, got %v", err)
	}

	// A matching expected version wins and bumps.
	stored.Title = "updated"
	stored, err = store.Put(ctx, stored, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if stored.Version != 2 {
		t.Fatalf("update must bump to 2, got %d", stored.Version)
	}

	// A stale expected version loses.
	if _, err := store.Put(ctx, stored, 1); !apperrors.IsConflict(err) {
		t.Fatalf("stale write: expected conflict, got %v", err)
	}

	// Updating a missing ticket is not found, not a conflict.
	if _, err := store.Put(ctx, seedTicket("ghost", "u-1", domain.TicketStatusOpen), 1); !apperrors.IsNotFound(err) {
		t.Fatalf("missing update: expected not found, got %v", err)
	}

	if _, err := store.Get(ctx, "ghost"); !apperrors.IsNotFound(err) {
		t.Fatalf("missing get: expected not found, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTicketStore()

	if _, err := store.Put(ctx, seedTicket("t-1", "u-1", domain.TicketStatusOpen), 0); err != nil {
		t.Fatal(err)
	}
	first, err := store.Get(ctx, "t-1")
	if err != nil {
		t.Fatal(err)
	}
	first.Title = "mutated by caller"
	first.Comments = append(first.Comments, domain.Comment{ID: "c-1", Body: "sneaky"})

	second, err := store.Get(ctx, "t-1")
	if err != nil {
		t.Fatal(err)
	}
	if second.Title != "title t-1" || len(second.Comments) != 0 {
		t.Fatalf("caller mutation leaked into the store: %+v", second)
	}
}

func TestMemoryStoreQueryFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTicketStore()

	open := seedTicket("t-1", "u-1", domain.TicketStatusOpen)
	assigned := seedTicket("t-2", "u-2", domain.TicketStatusAssigned)
	agent := "a-1"
	assigned.AssignedTo = &agent
	assigned.UpdatedAt = assigned.UpdatedAt.Add(time.Minute)
	resolved := seedTicket("t-3", "u-1", domain.TicketStatusResolved)
	resolved.Priority = domain.TicketPriorityUrgent
	resolved.UpdatedAt = resolved.UpdatedAt.Add(2 * time.Minute)

	for _, ticket := range []*domain.Ticket{open, assigned, resolved} {
		if _, err := store.Put(ctx, ticket, 0); err != nil {
			t.Fatalf("seed %s: %v", ticket.ID, err)
		}
	}

	byCreator, err := store.Query(ctx, TicketFilter{CreatedBy: strPtr("u-1")})
	if err != nil {
		t.Fatal(err)
	}
	if len(byCreator) != 2 {
		t.Fatalf("creator filter: expected 2, got %d", len(byCreator))
	}
	if byCreator[0].ID != "t-3" {
		t.Fatalf("results must come newest first, got %s", byCreator[0].ID)
	}

	byAssignee, err := store.Query(ctx, TicketFilter{AssignedTo: &agent})
	if err != nil {
		t.Fatal(err)
	}
	if len(byAssignee) != 1 || byAssignee[0].ID != "t-2" {
		t.Fatalf("assignee filter wrong: %+v", byAssignee)
	}

	byStatus, err := store.Query(ctx, TicketFilter{
		Statuses:   []domain.TicketStatus{domain.TicketStatusResolved},
		Priorities: []domain.TicketPriority{domain.TicketPriorityUrgent},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != "t-3" {
		t.Fatalf("status+priority filter wrong: %+v", byStatus)
	}

	paged, err := store.Query(ctx, TicketFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(paged) != 1 || paged[0].ID != "t-2" {
		t.Fatalf("pagination wrong: %+v", paged)
	}
}

func strPtr(s string) *string { return &s }

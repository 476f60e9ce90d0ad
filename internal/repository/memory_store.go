package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/helpdesk-kit/ticketd/internal/domain"
	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

// MemoryTicketStore is a map-backed TicketStore with the same optimistic
// concurrency semantics as the Postgres one. It backs the service when no
// DSN is configured and serves as the test double for the lifecycle engine.
type MemoryTicketStore struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
}

// NewMemoryTicketStore creates an empty store.
func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{tickets: make(map[string]*domain.Ticket)}
}

// Get returns a deep copy of the stored ticket.
func (s *MemoryTicketStore) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return ticket.Clone(), nil
}

// Put writes the ticket when expectedVersion matches the stored version,
// bumping the version by one. expectedVersion 0 inserts.
func (s *MemoryTicketStore) Put(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.tickets[ticket.ID]
	if expectedVersion == 0 {
		if exists {
			return nil, apperrors.NewVersionConflict(ticket.ID, 0)
		}
		stored := ticket.Clone()
		stored.Version = 1
		s.tickets[ticket.ID] = stored
		return stored.Clone(), nil
	}

	if !exists {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
	}
	if current.Version != expectedVersion {
		return nil, apperrors.NewVersionConflict(ticket.ID, expectedVersion)
	}
	stored := ticket.Clone()
	stored.Version = expectedVersion + 1
	s.tickets[ticket.ID] = stored
	return stored.Clone(), nil
}

// Query filters tickets, newest update first.
func (s *MemoryTicketStore) Query(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if !matchesFilter(ticket, filter) {
			continue
		}
		result = append(result, *ticket.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func matchesFilter(ticket *domain.Ticket, filter TicketFilter) bool {
	if filter.CreatedBy != nil && ticket.CreatedBy != *filter.CreatedBy {
		return false
	}
	if filter.AssignedTo != nil {
		if ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo {
			return false
		}
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
		return false
	}
	return true
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, priority domain.TicketPriority) bool {
	for _, candidate := range list {
		if candidate == priority {
			return true
		}
	}
	return false
}

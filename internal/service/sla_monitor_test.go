package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-kit/ticketd/internal/domain"
	"github.com/helpdesk-kit/ticketd/internal/events"
	"github.com/helpdesk-kit/ticketd/internal/observability"
	"github.com/helpdesk-kit/ticketd/internal/repository"
	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

func newMonitor(f *fixture) *SLAMonitor {
	return NewSLAMonitor(f.cfg, f.store, f.svc, zap.NewNop(), observability.NewMetrics()).WithClock(f.clock.Now)
}

func TestEscalationFiresOncePerBreach(t *testing.T) {
	f := newFixture(t, repository.NewMemoryTicketStore())
	ctx := context.Background()
	monitor := newMonitor(f)

	ticket := f.createTicket(t, domain.TicketPriorityUrgent)
	if _, err := f.svc.Assign(ctx, f.agent, ticket.ID, "a-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Within the threshold: quiet.
	f.clock.Advance(30 * time.Minute)
	monitor.Sweep(ctx)
	if f.dispatcher.count(events.EventTicketEscalated) != 0 {
		t.Fatal("escalated before the threshold elapsed")
	}

	// Past the threshold: exactly one escalation, however many sweeps run.
	f.clock.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		monitor.Sweep(ctx)
	}
	if got := f.dispatcher.count(events.EventTicketEscalated); got != 1 {
		t.Fatalf("expected exactly 1 escalation, got %d", got)
	}

	stored, err := f.store.Get(ctx, ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.EscalatedAt == nil {
		t.Fatal("escalation marker not persisted")
	}
}

func TestEscalationRearmsAfterTransition(t *testing.T) {
	f := newFixture(t, repository.NewMemoryTicketStore())
	ctx := context.Background()
	monitor := newMonitor(f)

	ticket := f.createTicket(t, domain.TicketPriorityUrgent)
	if _, err := f.svc.Assign(ctx, f.agent, ticket.ID, "a-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	f.clock.Advance(90 * time.Minute)
	monitor.Sweep(ctx)
	if f.dispatcher.count(events.EventTicketEscalated) != 1 {
		t.Fatal("first breach not escalated")
	}

	// The transition clears the marker and restarts the dwell clock.
	if _, err := f.svc.Transition(ctx, f.agent, ticket.ID, domain.TicketStatusInProgress, ""); err != nil {
		t.Fatalf("start work: %v", err)
	}
	monitor.Sweep(ctx)
	if f.dispatcher.count(events.EventTicketEscalated) != 1 {
		t.Fatal("fresh state must not escalate yet")
	}

	f.clock.Advance(2 * time.Hour)
	monitor.Sweep(ctx)
	if got := f.dispatcher.count(events.EventTicketEscalated); got != 2 {
		t.Fatalf("second breach in the new state must escalate again, got %d", got)
	}
}

func TestTerminalAndOpenStatesNeverEscalate(t *testing.T) {
	f := newFixture(t, repository.NewMemoryTicketStore())
	ctx := context.Background()
	f.cfg.CloseGrace = 0 // isolate the escalation pass
	monitor := newMonitor(f)

	// Open ticket: no assignee yet, the SLA clock has not started.
	f.createTicket(t, domain.TicketPriorityUrgent)

	// Resolved ticket.
	resolvedSrc := f.inProgressTicket(t, domain.TicketPriorityUrgent)
	if _, err := f.svc.Transition(ctx, f.agent, resolvedSrc.ID, domain.TicketStatusResolved, "done"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	f.clock.Advance(8 * time.Hour)
	monitor.Sweep(ctx)
	if got := f.dispatcher.count(events.EventTicketEscalated); got != 0 {
		t.Fatalf("only active states escalate, got %d escalations", got)
	}
}

// failingPutStore rejects writes for one ticket ID.
type failingPutStore struct {
	repository.TicketStore
	mu     sync.Mutex
	denyID string
}

func (s *failingPutStore) Put(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (*domain.Ticket, error) {
	s.mu.Lock()
	deny := s.denyID == ticket.ID
	s.mu.Unlock()
	if deny {
		return nil, apperrors.NewStoreUnavailable(context.DeadlineExceeded)
	}
	return s.TicketStore.Put(ctx, ticket, expectedVersion)
}

func TestSweepSurvivesPerTicketFailure(t *testing.T) {
	store := &failingPutStore{TicketStore: repository.NewMemoryTicketStore()}
	f := newFixture(t, store)
	ctx := context.Background()
	monitor := newMonitor(f)

	sick := f.createTicket(t, domain.TicketPriorityUrgent)
	if _, err := f.svc.Assign(ctx, f.agent, sick.ID, "a-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	healthy := f.createTicket(t, domain.TicketPriorityUrgent)
	if _, err := f.svc.Assign(ctx, f.agent, healthy.ID, "a-2"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	store.mu.Lock()
	store.denyID = sick.ID
	store.mu.Unlock()

	f.clock.Advance(2 * time.Hour)
	monitor.Sweep(ctx)

	if got := f.dispatcher.count(events.EventTicketEscalated); got != 1 {
		t.Fatalf("healthy ticket must still escalate, got %d", got)
	}
	stored, err := f.store.Get(ctx, healthy.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.EscalatedAt == nil {
		t.Fatal("healthy ticket marker missing")
	}
}

// pageCappedStore clamps how many rows one Query may return, the way a real
// backend enforces a maximum page size.
type pageCappedStore struct {
	repository.TicketStore
	pageCap int
}

func (s *pageCappedStore) Query(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if filter.Limit <= 0 || filter.Limit > s.pageCap {
		filter.Limit = s.pageCap
	}
	return s.TicketStore.Query(ctx, filter)
}

func TestSweepPaginatesPastBackendPageCap(t *testing.T) {
	inner := repository.NewMemoryTicketStore()
	store := &pageCappedStore{TicketStore: inner, pageCap: 100}
	f := newFixture(t, store)
	ctx := context.Background()
	monitor := newMonitor(f)

	// More breached tickets than one page can return. The stalest tickets
	// sort last under updated_at DESC, exactly the ones a single capped
	// query would drop.
	agent := "a-1"
	start := f.clock.Now().Add(-2 * time.Hour)
	for i := 0; i < 120; i++ {
		ticket := &domain.Ticket{
			ID:              fmt.Sprintf("bulk-%03d", i),
			Title:           "bulk",
			Description:     "bulk",
			Status:          domain.TicketStatusAssigned,
			Priority:        domain.TicketPriorityUrgent,
			CreatedBy:       "u-1",
			AssignedTo:      &agent,
			CreatedAt:       start,
			UpdatedAt:       start.Add(time.Duration(i) * time.Second),
			StatusEnteredAt: start,
		}
		if _, err := inner.Put(ctx, ticket, 0); err != nil {
			t.Fatalf("seed %s: %v", ticket.ID, err)
		}
	}

	monitor.Sweep(ctx)

	if got := f.dispatcher.count(events.EventTicketEscalated); got != 120 {
		t.Fatalf("every breached ticket must escalate regardless of page caps, got %d of 120", got)
	}
	for _, id := range []string{"bulk-000", "bulk-119"} {
		stored, err := f.store.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if stored.EscalatedAt == nil {
			t.Fatalf("%s missed by the sweep", id)
		}
	}
}

func TestResolvedTicketsAutoCloseAfterGrace(t *testing.T) {
	f := newFixture(t, repository.NewMemoryTicketStore())
	ctx := context.Background()
	monitor := newMonitor(f)

	ticket := f.inProgressTicket(t, "")
	if _, err := f.svc.Transition(ctx, f.agent, ticket.ID, domain.TicketStatusResolved, "patched"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Still inside the dispute window.
	f.clock.Advance(f.cfg.CloseGrace - time.Hour)
	monitor.Sweep(ctx)
	stored, err := f.store.Get(ctx, ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.TicketStatusResolved {
		t.Fatalf("closed inside the grace window: %s", stored.Status)
	}

	// Window lapsed: the system closes it.
	f.clock.Advance(2 * time.Hour)
	monitor.Sweep(ctx)
	stored, err = f.store.Get(ctx, ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.TicketStatusClosed || stored.ClosedAt == nil {
		t.Fatalf("expected auto-close, got %s", stored.Status)
	}

	// The closure went through the normal transition path with the system
	// actor, so a status-changed event carries it.
	var closeEvent *events.Event
	f.dispatcher.mu.Lock()
	for i := range f.dispatcher.events {
		e := &f.dispatcher.events[i]
		if e.Type == events.EventTicketStatusChanged {
			if payload, ok := e.Payload.(events.TicketStatusChangedPayload); ok && payload.NewStatus == domain.TicketStatusClosed {
				closeEvent = e
			}
		}
	}
	f.dispatcher.mu.Unlock()
	if closeEvent == nil {
		t.Fatal("auto-close emitted no status event")
	}
	if closeEvent.Actor.UserID != domain.SystemPrincipal().UserID {
		t.Fatalf("auto-close must act as the system principal, got %+v", closeEvent.Actor)
	}
}

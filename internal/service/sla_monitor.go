package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-kit/ticketd/internal/config"
	"github.com/helpdesk-kit/ticketd/internal/domain"
	"github.com/helpdesk-kit/ticketd/internal/observability"
	"github.com/helpdesk-kit/ticketd/internal/repository"
)

// SLAMonitor periodically sweeps tickets for SLA breaches and overdue
// closures. It only reads tickets and writes markers through the ticket
// service's escalation path, using the same optimistic versioning as mutation
// traffic, so it can never clobber a concurrent transition. One ticket's
// failure never aborts the sweep for the rest.
type SLAMonitor struct {
	store   repository.TicketStore
	tickets *TicketService
	logger  *zap.Logger
	metrics *observability.Metrics
	cfg     config.SLAConfig
	now     func() time.Time
}

// NewSLAMonitor constructs the monitor.
func NewSLAMonitor(cfg config.SLAConfig, store repository.TicketStore, tickets *TicketService, logger *zap.Logger, metrics *observability.Metrics) *SLAMonitor {
	return &SLAMonitor{
		store:   store,
		tickets: tickets,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
	}
}

// WithClock overrides the time source for tests.
func (m *SLAMonitor) WithClock(now func() time.Time) *SLAMonitor {
	m.now = now
	return m
}

// Run sweeps on the configured interval until ctx is cancelled.
func (m *SLAMonitor) Run(ctx context.Context) {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("sla monitor started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sla monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one escalation pass and one auto-closure pass.
func (m *SLAMonitor) Sweep(ctx context.Context) {
	m.sweepEscalations(ctx)
	m.sweepResolved(ctx)
	m.metrics.RecordSweep()
}

// sweepPageSize bounds one Query during a sweep. Sweeps page through the
// store rather than issuing one unbounded read: a backend that caps result
// sets must not silently hide the stalest tickets from the monitor.
const sweepPageSize = 200

// collectByStatus pages through every ticket in the given statuses. The page
// loop advances by rows actually returned and stops on an empty page, so it
// stays correct against a store that clamps the requested limit.
func (m *SLAMonitor) collectByStatus(ctx context.Context, statuses ...domain.TicketStatus) ([]domain.Ticket, error) {
	var all []domain.Ticket
	for offset := 0; ; {
		page, err := m.store.Query(ctx, repository.TicketFilter{
			Statuses: statuses,
			Limit:    sweepPageSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
		offset += len(page)
	}
}

// sweepEscalations emits one escalation event per breach. Idempotence comes
// from the escalated_at marker: an already-escalated ticket stays quiet until
// it changes state, which clears the marker.
func (m *SLAMonitor) sweepEscalations(ctx context.Context) {
	candidates, err := m.collectByStatus(ctx,
		domain.TicketStatusAssigned,
		domain.TicketStatusInProgress,
		domain.TicketStatusPending,
	)
	if err != nil {
		m.logger.Warn("escalation sweep query failed", zap.Error(err))
		return
	}

	for i := range candidates {
		ticket := &candidates[i]
		escalated, err := m.tickets.MarkEscalated(ctx, ticket)
		if err != nil {
			// Transient per-ticket failure: log, move on. Availability of
			// the sweep outweighs per-ticket completeness.
			m.logger.Warn("escalation skipped",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
			continue
		}
		if escalated {
			m.logger.Info("ticket escalated",
				zap.String("ticket_id", ticket.ID),
				zap.String("priority", string(ticket.Priority)),
				zap.Duration("elapsed", m.now().Sub(ticket.StatusEnteredAt)))
		}
	}
}

// sweepResolved closes resolved tickets whose dispute window lapsed with no
// reopen.
func (m *SLAMonitor) sweepResolved(ctx context.Context) {
	if m.cfg.CloseGrace <= 0 {
		return
	}
	candidates, err := m.collectByStatus(ctx, domain.TicketStatusResolved)
	if err != nil {
		m.logger.Warn("closure sweep query failed", zap.Error(err))
		return
	}

	now := m.now()
	for i := range candidates {
		ticket := &candidates[i]
		if now.Sub(ticket.StatusEnteredAt) <= m.cfg.CloseGrace {
			continue
		}
		if _, err := m.tickets.Transition(ctx, domain.SystemPrincipal(), ticket.ID, domain.TicketStatusClosed, ""); err != nil {
			m.logger.Warn("auto-close skipped",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
			continue
		}
		m.logger.Info("ticket auto-closed", zap.String("ticket_id", ticket.ID))
	}
}

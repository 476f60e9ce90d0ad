package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helpdesk-kit/ticketd/internal/auth"
	"github.com/helpdesk-kit/ticketd/internal/config"
	"github.com/helpdesk-kit/ticketd/internal/domain"
	"github.com/helpdesk-kit/ticketd/internal/events"
	"github.com/helpdesk-kit/ticketd/internal/observability"
	"github.com/helpdesk-kit/ticketd/internal/repository"
	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

// TicketService is the sole mutation entry point for tickets. Every intent
// loads the current record, authorizes, validates, mutates a draft, and
// writes back with the loaded version. Version conflicts and transient store
// failures are retried up to the configured budget; each retry re-reads and
// re-validates because authorization and transition validity can depend on
// the fields that just changed underneath us.
type TicketService struct {
	store      repository.TicketStore
	users      repository.UserRepository
	authz      *auth.Engine
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.SLAConfig
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.TicketStore
	UserRepo   repository.UserRepository
	Authorizer *auth.Engine
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewTicketService constructs the service.
func NewTicketService(cfg config.SLAConfig, deps TicketDependencies) *TicketService {
	return &TicketService{
		store:      deps.Store,
		users:      deps.UserRepo,
		authz:      deps.Authorizer,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Tests use this to pin SLA and grace
// window arithmetic.
func (s *TicketService) WithClock(now func() time.Time) *TicketService {
	s.now = now
	return s
}

// CreateInput describes ticket creation payload.
type CreateInput struct {
	Title       string
	Description string
	Category    string
	Priority    domain.TicketPriority
}

// UpdateFieldsInput carries optional field mutations; nil means untouched.
type UpdateFieldsInput struct {
	Title       *string
	Description *string
	Category    *string
	Priority    *domain.TicketPriority
}

// Create opens a new ticket for the principal. The ticket starts Open,
// unassigned, at version 1.
func (s *TicketService) Create(ctx context.Context, principal domain.Principal, input CreateInput) (*domain.Ticket, error) {
	if !s.authz.Allow(principal, auth.ActionCreateTicket, domain.RelationshipNone, "") {
		return nil, apperrors.NewPermissionDenied("cannot create tickets")
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(priority)})
	}

	now := s.now()
	ticket := &domain.Ticket{
		ID:              uuid.NewString(),
		Title:           title,
		Description:     description,
		Status:          domain.TicketStatusOpen,
		Priority:        priority,
		Category:        strings.TrimSpace(input.Category),
		CreatedBy:       principal.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
		StatusEnteredAt: now,
	}

	stored, err := s.putWithRetry(ctx, ticket, 0)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, principal, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: stored.ID,
		Payload: events.TicketCreatedPayload{
			Title:    stored.Title,
			Category: stored.Category,
			Priority: stored.Priority,
		},
	})
	return stored, nil
}

// UpdateFields mutates title/description (creator while Open, staff while
// non-terminal) and priority/category (staff only).
func (s *TicketService) UpdateFields(ctx context.Context, principal domain.Principal, ticketID string, input UpdateFieldsInput) (*domain.Ticket, error) {
	var changed []string
	var oldPriority, newPriority domain.TicketPriority

	stored, err := s.mutate(ctx, ticketID, func(draft *domain.Ticket) error {
		changed = changed[:0]
		rel := principal.RelationshipTo(draft)

		if input.Title != nil || input.Description != nil {
			if !s.authz.Allow(principal, auth.ActionEditFields, rel, draft.Status) {
				return apperrors.NewPermissionDenied("cannot edit ticket fields")
			}
		}
		if input.Priority != nil || input.Category != nil {
			if !s.authz.Allow(principal, auth.ActionChangePriority, rel, draft.Status) {
				return apperrors.NewPermissionDenied("cannot change priority or category")
			}
		}

		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return apperrors.NewValidationError("title required", nil)
			}
			draft.Title = title
			changed = append(changed, "title")
		}
		if input.Description != nil {
			description := strings.TrimSpace(*input.Description)
			if description == "" {
				return apperrors.NewValidationError("description required", nil)
			}
			draft.Description = description
			changed = append(changed, "description")
		}
		if input.Category != nil {
			draft.Category = strings.TrimSpace(*input.Category)
			changed = append(changed, "category")
		}
		if input.Priority != nil {
			if !input.Priority.Valid() {
				return apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(*input.Priority)})
			}
			oldPriority = draft.Priority
			newPriority = *input.Priority
			draft.Priority = newPriority
			changed = append(changed, "priority")
		}
		if len(changed) == 0 {
			return apperrors.NewValidationError("no fields to update", nil)
		}
		draft.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, principal, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: stored.ID,
		Payload:  events.TicketUpdatedPayload{Fields: changed},
	})
	if input.Priority != nil && oldPriority != newPriority {
		s.publishEvent(ctx, principal, events.Event{
			Type:     events.EventTicketPriorityChanged,
			TicketID: stored.ID,
			Payload:  events.TicketPriorityChangedPayload{OldPriority: oldPriority, NewPriority: newPriority},
		})
	}
	return stored, nil
}

// Assign sets or replaces the assignee. From Open or Reopened this is the
// triage step and moves the ticket to Assigned; in an active state it is a
// reassignment that keeps the status.
func (s *TicketService) Assign(ctx context.Context, principal domain.Principal, ticketID, assigneeID string) (*domain.Ticket, error) {
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		return nil, err
	}
	if !assignee.Role.Staff() {
		return nil, apperrors.NewValidationError("assignee must be staff", map[string]any{"user_id": assigneeID})
	}
	if assignee.Status != domain.UserStatusActive {
		return nil, apperrors.NewValidationError("assignee deactivated", map[string]any{"user_id": assigneeID})
	}

	stored, err := s.mutate(ctx, ticketID, func(draft *domain.Ticket) error {
		rel := principal.RelationshipTo(draft)
		if !s.authz.Allow(principal, auth.ActionAssign, rel, draft.Status) {
			return apperrors.NewPermissionDenied("cannot assign tickets")
		}

		now := s.now()
		switch {
		case draft.Status == domain.TicketStatusOpen || draft.Status == domain.TicketStatusReopened:
			draft.AssignedTo = &assignee.ID
			return domain.ApplyTransition(draft, domain.TicketStatusAssigned, now)
		case draft.Status.Active():
			draft.AssignedTo = &assignee.ID
			draft.UpdatedAt = now
			return nil
		default:
			return apperrors.NewInvalidTransition(string(draft.Status), string(domain.TicketStatusAssigned))
		}
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, principal, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: stored.ID,
		Payload:  events.TicketAssignedPayload{AssigneeID: stored.AssignedTo},
	})
	return stored, nil
}

// Transition applies a status change. Resolving requires a non-empty
// resolution note, recorded as a public comment in the same write so the
// status and the note are never observable apart.
func (s *TicketService) Transition(ctx context.Context, principal domain.Principal, ticketID string, next domain.TicketStatus, note string) (*domain.Ticket, error) {
	var fromStatus domain.TicketStatus

	stored, err := s.mutate(ctx, ticketID, func(draft *domain.Ticket) error {
		rel := principal.RelationshipTo(draft)
		fromStatus = draft.Status

		if !domain.CanTransition(draft.Status, next) {
			if !next.Valid() {
				return apperrors.NewValidationError("unknown status", map[string]any{"status": string(next)})
			}
			return apperrors.NewInvalidTransition(string(draft.Status), string(next))
		}
		if !s.authz.AllowTransition(principal, rel, draft.Status, next) {
			return apperrors.NewPermissionDenied("role cannot trigger this transition")
		}
		now := s.now()
		if draft.Status == domain.TicketStatusResolved && next == domain.TicketStatusReopened &&
			principal.Role == domain.RoleUser {
			if s.cfg.ReopenWindow > 0 && now.Sub(draft.StatusEnteredAt) > s.cfg.ReopenWindow {
				return apperrors.NewPermissionDenied("reopen window elapsed")
			}
		}

		if next == domain.TicketStatusResolved {
			if strings.TrimSpace(note) == "" {
				return apperrors.NewValidationError("resolution note required", nil)
			}
			if _, err := domain.AppendComment(draft, principal, note, domain.VisibilityPublic, now); err != nil {
				return err
			}
		}
		return domain.ApplyTransition(draft, next, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, principal, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: stored.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: fromStatus,
			NewStatus: stored.Status,
			Note:      strings.TrimSpace(note),
		},
	})
	if stored.Status == domain.TicketStatusReopened {
		s.publishEvent(ctx, principal, events.Event{
			Type:     events.EventTicketReopened,
			TicketID: stored.ID,
			Payload:  events.TicketReopenedPayload{FromStatus: fromStatus},
		})
	}
	return stored, nil
}

// AddComment appends to the ticket's thread.
func (s *TicketService) AddComment(ctx context.Context, principal domain.Principal, ticketID, body string, visibility domain.CommentVisibility) (*domain.Ticket, *domain.Comment, error) {
	var added domain.Comment

	stored, err := s.mutate(ctx, ticketID, func(draft *domain.Ticket) error {
		rel := principal.RelationshipTo(draft)
		if !s.authz.Allow(principal, auth.CommentAction(visibility), rel, draft.Status) {
			return apperrors.NewPermissionDenied("cannot comment with this visibility")
		}
		comment, err := domain.AppendComment(draft, principal, body, visibility, s.now())
		if err != nil {
			return err
		}
		added = *comment
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.publishEvent(ctx, principal, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: stored.ID,
		Payload: events.TicketCommentAddedPayload{
			CommentID:   added.ID,
			AuthorID:    added.AuthorID,
			Visibility:  added.Visibility,
			BodyPreview: bodyPreview(added.Body, 120),
		},
	})
	return stored, &added, nil
}

// Get returns a ticket with its thread filtered for the viewer.
func (s *TicketService) Get(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	rel := principal.RelationshipTo(ticket)
	if !s.authz.Allow(principal, auth.ActionViewTicket, rel, ticket.Status) {
		return nil, apperrors.NewPermissionDenied("cannot view ticket")
	}
	ticket.Comments = domain.VisibleComments(ticket, principal)
	return ticket, nil
}

// List returns tickets visible to the principal. Non-staff only ever see
// their own.
func (s *TicketService) List(ctx context.Context, principal domain.Principal, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if !principal.Role.Staff() {
		creator := principal.UserID
		filter.CreatedBy = &creator
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	tickets, err := s.store.Query(storeCtx, filter)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		tickets[i].Comments = domain.VisibleComments(&tickets[i], principal)
	}
	return tickets, nil
}

// DeactivateUser flips an account to deactivated. Admin only.
func (s *TicketService) DeactivateUser(ctx context.Context, principal domain.Principal, userID string) error {
	if !s.authz.Allow(principal, auth.ActionDeactivateUser, domain.RelationshipNone, "") {
		return apperrors.NewPermissionDenied("cannot deactivate accounts")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.Status = domain.UserStatusDeactivated
	return s.users.Update(ctx, user)
}

// MarkEscalated records an SLA breach observed by the monitor. One attempt,
// no retry: if a concurrent transition bumped the version the breach may no
// longer exist, and the next sweep re-evaluates from fresh state. Returns
// true when the marker was written and the event emitted.
func (s *TicketService) MarkEscalated(ctx context.Context, observed *domain.Ticket) (bool, error) {
	threshold := s.cfg.ThresholdFor(observed.Priority)
	if threshold <= 0 || !observed.Status.Active() || observed.EscalatedAt != nil {
		return false, nil
	}
	now := s.now()
	elapsed := now.Sub(observed.StatusEnteredAt)
	if elapsed <= threshold {
		return false, nil
	}

	draft := observed.Clone()
	escalated := now
	draft.EscalatedAt = &escalated
	draft.UpdatedAt = now

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if _, err := s.store.Put(storeCtx, draft, observed.Version); err != nil {
		if apperrors.IsConflict(err) {
			// Lost to a concurrent mutation; the next sweep decides.
			return false, nil
		}
		return false, err
	}

	s.metrics.RecordEscalation()
	s.publishEvent(ctx, domain.SystemPrincipal(), events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: observed.ID,
		Payload: events.EscalationPayload{
			Priority:  observed.Priority,
			Status:    observed.Status,
			Elapsed:   elapsed,
			Threshold: threshold,
		},
	})
	return true, nil
}

// mutate runs the load-authorize-validate-write cycle with the configured
// retry budget. fn receives a fresh draft each attempt and must be
// re-entrant; non-retryable errors abort immediately.
func (s *TicketService) mutate(ctx context.Context, ticketID string, fn func(*domain.Ticket) error) (*domain.Ticket, error) {
	attempts := s.cfg.RetryBudget
	if attempts < 0 {
		attempts = 0
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			if apperrors.IsConflict(lastErr) {
				s.metrics.RecordConflictRetry()
			}
			if err := s.backoff(ctx, attempt); err != nil {
				return nil, lastErr
			}
		}

		current, err := s.load(ctx, ticketID)
		if err != nil {
			if apperrors.IsStoreUnavailable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}

		draft := current.Clone()
		if err := fn(draft); err != nil {
			return nil, err
		}

		stored, err := s.putWithTimeout(ctx, draft, current.Version)
		if err != nil {
			if apperrors.IsConflict(err) || apperrors.IsStoreUnavailable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return stored, nil
	}
	return nil, lastErr
}

// putWithRetry retries only transient failures; used for inserts where a
// version conflict cannot happen.
func (s *TicketService) putWithRetry(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (*domain.Ticket, error) {
	attempts := s.cfg.RetryBudget
	if attempts < 0 {
		attempts = 0
	}
	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			if err := s.backoff(ctx, attempt); err != nil {
				return nil, lastErr
			}
		}
		stored, err := s.putWithTimeout(ctx, ticket, expectedVersion)
		if err != nil {
			if apperrors.IsStoreUnavailable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return stored, nil
	}
	return nil, lastErr
}

func (s *TicketService) load(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.store.Get(storeCtx, ticketID)
}

func (s *TicketService) putWithTimeout(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (*domain.Ticket, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.store.Put(storeCtx, ticket, expectedVersion)
}

func (s *TicketService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

func (s *TicketService) backoff(ctx context.Context, attempt int) error {
	delay := s.cfg.RetryBackoff * time.Duration(attempt)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *TicketService) publishEvent(ctx context.Context, principal domain.Principal, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	event.Actor = events.Actor{UserID: principal.UserID, Role: principal.Role}
	_ = s.dispatcher.Publish(ctx, event)
}

// bodyPreview truncates on rune boundaries so event payloads never carry a
// split multi-byte character.
func bodyPreview(body string, max int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= max {
		return string(runes)
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

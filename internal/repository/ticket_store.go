package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-kit/ticketd/internal/domain"
	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

// TicketFilter captures query parameters for listing and sweeps. Limit <= 0
// means no limit; both stores honor that the same way.
type TicketFilter struct {
	CreatedBy  *string
	AssignedTo *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
	Offset     int
}

// TicketStore is the persistence contract the lifecycle engine depends on.
// Put enforces optimistic concurrency: the write succeeds only when the
// stored version equals expectedVersion, and the persisted ticket comes back
// with version expectedVersion+1. expectedVersion 0 means insert.
type TicketStore interface {
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	Put(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (*domain.Ticket, error)
	Query(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type pgTicketStore struct {
	pool *pgxpool.Pool
}

// NewPgTicketStore returns a Postgres-backed TicketStore. Tickets persist as
// one row each with the comment thread embedded as JSONB, so a ticket and
// its thread version together.
func NewPgTicketStore(pool *pgxpool.Pool) TicketStore {
	return &pgTicketStore{pool: pool}
}

const ticketColumns = `id, title, description, status, priority, category, created_by,
       assigned_to, comments, created_at, updated_at, status_entered_at,
       escalated_at, closed_at, version`

func (s *pgTicketStore) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	row := s.pool.QueryRow(ctx, query, id)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, wrapStoreErr(err)
	}
	return ticket, nil
}

func (s *pgTicketStore) Put(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) (*domain.Ticket, error) {
	comments, err := json.Marshal(ticket.Comments)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if expectedVersion == 0 {
		const insert = `
            INSERT INTO tickets (id, title, description, status, priority, category, created_by,
                assigned_to, comments, created_at, updated_at, status_entered_at,
                escalated_at, closed_at, version)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,1)`
		if _, err := s.pool.Exec(ctx, insert,
			ticket.ID, ticket.Title, ticket.Description, ticket.Status, ticket.Priority,
			ticket.Category, ticket.CreatedBy, ticket.AssignedTo, comments,
			ticket.CreatedAt, ticket.UpdatedAt, ticket.StatusEnteredAt,
			ticket.EscalatedAt, ticket.ClosedAt,
		); err != nil {
			return nil, wrapStoreErr(err)
		}
		stored := ticket.Clone()
		stored.Version = 1
		return stored, nil
	}

	const update = `
        UPDATE tickets SET title=$1, description=$2, status=$3, priority=$4, category=$5,
            assigned_to=$6, comments=$7, updated_at=$8, status_entered_at=$9,
            escalated_at=$10, closed_at=$11, version=version+1
        WHERE id=$12 AND version=$13`
	cmd, err := s.pool.Exec(ctx, update,
		ticket.Title, ticket.Description, ticket.Status, ticket.Priority, ticket.Category,
		ticket.AssignedTo, comments, ticket.UpdatedAt, ticket.StatusEnteredAt,
		ticket.EscalatedAt, ticket.ClosedAt, ticket.ID, expectedVersion,
	)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if cmd.RowsAffected() == 0 {
		// Either the row is gone or someone else won the version race.
		if _, getErr := s.Get(ctx, ticket.ID); getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.NewVersionConflict(ticket.ID, expectedVersion)
	}
	stored := ticket.Clone()
	stored.Version = expectedVersion + 1
	return stored, nil
}

func (s *pgTicketStore) Query(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, priority := range filter.Priorities {
			args = append(args, priority)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC`,
		base, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, wrapStoreErr(err)
		}
		result = append(result, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr(err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		comments []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&comments,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.StatusEnteredAt,
		&ticket.EscalatedAt,
		&ticket.ClosedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	if len(comments) > 0 {
		if err := json.Unmarshal(comments, &ticket.Comments); err != nil {
			return nil, err
		}
	}
	return &ticket, nil
}

// wrapStoreErr classifies driver failures. Integrity violations (SQLSTATE
// class 23, e.g. a foreign key on assigned_to) are caller faults and data or
// syntax errors (classes 22, 42) are bugs; neither gets retried. Everything
// else, connection loss and timeouts included, is STORE_UNAVAILABLE — and
// must never masquerade as NOT_FOUND.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return apperrors.NewValidationError("constraint violated",
				map[string]any{"constraint": pgErr.ConstraintName, "sqlstate": pgErr.Code})
		case strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "42"):
			return apperrors.NewInternalError(err)
		}
	}
	return apperrors.NewStoreUnavailable(err)
}

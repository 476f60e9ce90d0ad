package repository

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

func TestWrapStoreErrClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  string
	}{
		{
			"foreign key violation is caller fault",
			&pgconn.PgError{Code: "23503", ConstraintName: "tickets_assigned_to_fkey"},
			apperrors.IsValidation, "validation",
		},
		{
			"unique violation is caller fault",
			&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"},
			apperrors.IsValidation, "validation",
		},
		{
			"undefined column is not retryable",
			&pgconn.PgError{Code: "42703"},
			func(err error) bool {
				return apperrors.ToDomainError(err).Code == apperrors.CodeInternalError
			}, "internal",
		},
		{
			"connection failure is transient",
			&pgconn.PgError{Code: "08006"},
			apperrors.IsStoreUnavailable, "store unavailable",
		},
		{
			"plain driver error is transient",
			fmt.Errorf("read tcp 10.0.0.1:5432: i/o timeout"),
			apperrors.IsStoreUnavailable, "store unavailable",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := wrapStoreErr(tc.err)
			if !tc.check(got) {
				t.Fatalf("expected %s error, got %v", tc.want, got)
			}
			if apperrors.IsNotFound(got) {
				t.Fatalf("driver failure must never read as not found: %v", got)
			}
		})
	}

	// A retryable classification matters: the service loops only on these.
	transient := wrapStoreErr(&pgconn.PgError{Code: "23503"})
	if apperrors.IsStoreUnavailable(transient) || apperrors.IsConflict(transient) {
		t.Fatalf("constraint violations must not be retried: %v", transient)
	}
	if err := wrapStoreErr(nil); err != nil {
		t.Fatalf("nil must pass through, got %v", err)
	}
}

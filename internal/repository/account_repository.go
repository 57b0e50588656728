package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookwell/penalty-service/internal/domain"
)

// AccountRepository is the single store for customer and provider penalty
// state, keyed by AccountRef.
type AccountRepository interface {
	Get(ctx context.Context, ref domain.AccountRef) (*domain.Account, error)
	// GetForUpdate reads the row and locks it until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, ref domain.AccountRef) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
	ListIDsBelowMax(ctx context.Context, kind domain.AccountKind) ([]string, error)
	ListIDsWithExpiredSuspension(ctx context.Context, kind domain.AccountKind, now time.Time) ([]string, error)
	CountSuspended(ctx context.Context, kind domain.AccountKind) (int, error)
}

type accountRepository struct {
	db DBTX
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(db DBTX) AccountRepository {
	return &accountRepository{db: db}
}

func accountTable(kind domain.AccountKind) (string, error) {
	switch kind {
	case domain.AccountKindCustomer:
		return "customers", nil
	case domain.AccountKindProvider:
		return "providers", nil
	default:
		return "", fmt.Errorf("unknown account kind %q", kind)
	}
}

const accountColumns = `id, penalty_points, is_suspended, admin_suspended, suspension_reason,
               suspended_at, suspended_until, updated_at`

func (r *accountRepository) Get(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
	return r.fetch(ctx, ref, "")
}

func (r *accountRepository) GetForUpdate(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
	return r.fetch(ctx, ref, " FOR UPDATE")
}

func (r *accountRepository) fetch(ctx context.Context, ref domain.AccountRef, suffix string) (*domain.Account, error) {
	table, err := accountTable(ref.Kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1%s`, accountColumns, table, suffix)

	account := domain.Account{Ref: domain.AccountRef{Kind: ref.Kind}}
	if err := r.db.QueryRow(ctx, query, ref.ID).Scan(
		&account.Ref.ID,
		&account.PenaltyPoints,
		&account.IsSuspended,
		&account.AdminSuspended,
		&account.SuspensionReason,
		&account.SuspendedAt,
		&account.SuspendedUntil,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	table, err := accountTable(account.Ref.Kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
        UPDATE %s SET penalty_points=$1, is_suspended=$2, admin_suspended=$3, suspension_reason=$4,
            suspended_at=$5, suspended_until=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`, table)

	if err := r.db.QueryRow(ctx, query,
		account.PenaltyPoints,
		account.IsSuspended,
		account.AdminSuspended,
		account.SuspensionReason,
		account.SuspendedAt,
		account.SuspendedUntil,
		account.Ref.ID,
	).Scan(&account.UpdatedAt); err != nil {
		return err
	}
	return nil
}

func (r *accountRepository) ListIDsBelowMax(ctx context.Context, kind domain.AccountKind) ([]string, error) {
	table, err := accountTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id FROM %s WHERE penalty_points < $1 ORDER BY id`, table)
	rows, err := r.db.Query(ctx, query, domain.MaxPenaltyPoints)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func (r *accountRepository) ListIDsWithExpiredSuspension(ctx context.Context, kind domain.AccountKind, now time.Time) ([]string, error) {
	table, err := accountTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
        SELECT id FROM %s
        WHERE admin_suspended AND suspended_until IS NOT NULL AND suspended_until <= $1
        ORDER BY id`, table)
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func (r *accountRepository) CountSuspended(ctx context.Context, kind domain.AccountKind) (int, error) {
	table, err := accountTable(kind)
	if err != nil {
		return 0, err
	}
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE is_suspended`, table)
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

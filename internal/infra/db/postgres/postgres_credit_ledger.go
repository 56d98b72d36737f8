package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/ports/repository"
)

var _ repository.CreditLedger = (*creditLedger)(nil)

type creditLedger struct {
	pool *pgxpool.Pool
}

func NewCreditLedger(pool *pgxpool.Pool) *creditLedger {
	return &creditLedger{pool: pool}
}

// TryDecrement is a single conditional UPDATE; the row lock it takes orders
// concurrent debits for the same owner.
func (l *creditLedger) TryDecrement(ctx context.Context, tx repository.Tx, ownerID string) (bool, error) {
	const q = `
UPDATE credit_balances
   SET balance = balance - 1, updated_at = now()
 WHERE owner_id = $1 AND balance > 0;`
	tag, err := execSQL(ctx, l.pool, tx, q, ownerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (l *creditLedger) Balance(ctx context.Context, tx repository.Tx, ownerID string) (int, error) {
	row, err := pickRow(ctx, l.pool, tx, `SELECT balance FROM credit_balances WHERE owner_id = $1;`, ownerID)
	if err != nil {
		return 0, err
	}
	var b int
	if err := row.Scan(&b); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return b, nil
}

func (l *creditLedger) Grant(ctx context.Context, tx repository.Tx, ownerID string, amount int) (int, error) {
	if ownerID == "" || amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO credit_balances (owner_id, balance, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (owner_id) DO UPDATE SET
  balance = credit_balances.balance + EXCLUDED.balance,
  updated_at = now()
RETURNING balance;`
	row, err := pickRow(ctx, l.pool, tx, q, ownerID, amount)
	if err != nil {
		return 0, err
	}
	var b int
	if err := row.Scan(&b); err != nil {
		return 0, err
	}
	return b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

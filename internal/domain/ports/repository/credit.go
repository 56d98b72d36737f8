package repository

import "context"

// CreditLedger holds one integer balance per owner.
type CreditLedger interface {
	// TryDecrement atomically takes one credit. It returns false, and changes
	// nothing, when the balance is already zero.
	TryDecrement(ctx context.Context, tx Tx, ownerID string) (bool, error)
	// Balance returns zero for owners without a ledger entry.
	Balance(ctx context.Context, tx Tx, ownerID string) (int, error)
	// Grant adds credits. Top-up flows live outside this service; seeding and tests use it.
	Grant(ctx context.Context, tx Tx, ownerID string, amount int) (int, error)
}

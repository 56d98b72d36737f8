package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one storage transaction and hands the
// transaction handle to fn. Repositories accept that handle as their Tx argument
// and must also accept nil (non-transactional path).
//
// The concrete handle is infra-defined (pgx.Tx for Postgres, nil for the
// in-memory store which serializes writes itself).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

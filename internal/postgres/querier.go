package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier покрывает и *pgxpool.Pool, и pgx.Tx: репозиторий не знает,
// внутри транзакции он или нет.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type txBeginner interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// пустая строка в nullable-колонке хранится как NULL
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

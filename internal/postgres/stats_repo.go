package postgres

import (
	"context"

	"github.com/cwrk-planet/attendance-service/internal/domain"
	"github.com/cwrk-planet/attendance-service/internal/postgres/queries"
)

type StatsRepo struct {
	q querier
}

func NewStatsRepo(q querier) *StatsRepo {
	return &StatsRepo{q: q}
}

func (r *StatsRepo) Totals(ctx context.Context) (int64, int64, error) {
	var registered, attended int64
	err := r.q.QueryRow(ctx, queries.Totals).Scan(&registered, &attended)
	return registered, attended, mapPgError(err)
}

func (r *StatsRepo) ByBatch(ctx context.Context) ([]domain.BatchStat, error) {
	rows, err := r.q.Query(ctx, queries.ByBatch)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []domain.BatchStat
	for rows.Next() {
		var b domain.BatchStat
		if err := rows.Scan(&b.Batch, &b.Registered, &b.Attended); err != nil {
			return nil, mapPgError(err)
		}
		out = append(out, b)
	}

	return out, mapPgError(rows.Err())
}

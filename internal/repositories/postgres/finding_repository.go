package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pizzaops/opsight/internal/models"
)

type FindingRepository struct {
	pool *pgxpool.Pool
}

func NewFindingRepository(pool *pgxpool.Pool) *FindingRepository {
	return &FindingRepository{pool: pool}
}

func (r *FindingRepository) SaveBottlenecks(ctx context.Context, fingerprint string, findings []models.BottleneckFinding) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	stmt := `
        INSERT INTO bottleneck_findings (
            dataset_fingerprint, stage, observed_p95, benchmark_p95,
            ratio, severity, affected_pct, excess_minutes, detected_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	for _, f := range findings {
		_, err = tx.Exec(ctx, stmt,
			fingerprint,
			f.Stage,
			f.ObservedP95,
			f.BenchmarkP95,
			f.Ratio,
			string(f.Severity),
			f.AffectedPct,
			f.ExcessMinutes,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

package repositories

import (
	"context"
	"time"

	"github.com/pizzaops/opsight/internal/models"
)

// OrderRepository persists raw order records for later analysis runs.
type OrderRepository interface {
	BulkCreate(ctx context.Context, orders []models.OrderRecord) error
	GetAll(ctx context.Context) ([]models.OrderRecord, error)
	GetBetween(ctx context.Context, from, to time.Time) ([]models.OrderRecord, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

// FindingRepository persists bottleneck findings from an analysis run.
type FindingRepository interface {
	SaveBottlenecks(ctx context.Context, fingerprint string, findings []models.BottleneckFinding) error
}

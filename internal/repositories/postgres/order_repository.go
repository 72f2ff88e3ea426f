package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pizzaops/opsight/internal/models"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) BulkCreate(ctx context.Context, orders []models.OrderRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	stmt := `
        INSERT INTO orders (
            order_id, placed_at, order_mode, pizza_size, delivery_area,
            dough_prep_time, styling_time, oven_time, boxing_time,
            delivery_duration, oven_temperature, order_taker, dough_prep_staff,
            stylist, oven_operator, boxer, delivery_driver, complaint,
            complaint_reason
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9,
            $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
        )
        ON CONFLICT (order_id) DO NOTHING`

	for _, o := range orders {
		_, err = tx.Exec(ctx, stmt,
			o.OrderID,
			o.PlacedAt,
			o.OrderMode,
			o.PizzaSize,
			o.DeliveryArea,
			o.DoughPrepTime,
			o.StylingTime,
			o.OvenTime,
			o.BoxingTime,
			o.DeliveryDuration,
			o.OvenTemperature,
			o.OrderTaker,
			o.DoughPrepStaff,
			o.Stylist,
			o.OvenOperator,
			o.Boxer,
			o.DeliveryDriver,
			o.Complaint,
			o.ComplaintReason,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *OrderRepository) GetAll(ctx context.Context) ([]models.OrderRecord, error) {
	query := `
        SELECT
            order_id, placed_at, order_mode, pizza_size, delivery_area,
            dough_prep_time, styling_time, oven_time, boxing_time,
            delivery_duration, oven_temperature, order_taker, dough_prep_staff,
            stylist, oven_operator, boxer, delivery_driver, complaint,
            complaint_reason
        FROM orders
        ORDER BY placed_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

func (r *OrderRepository) GetBetween(ctx context.Context, from, to time.Time) ([]models.OrderRecord, error) {
	query := `
        SELECT
            order_id, placed_at, order_mode, pizza_size, delivery_area,
            dough_prep_time, styling_time, oven_time, boxing_time,
            delivery_duration, oven_temperature, order_taker, dough_prep_staff,
            stylist, oven_operator, boxer, delivery_driver, complaint,
            complaint_reason
        FROM orders
        WHERE placed_at >= $1 AND placed_at < $2
        ORDER BY placed_at`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanOrders(rows pgxRows) ([]models.OrderRecord, error) {
	var orders []models.OrderRecord
	for rows.Next() {
		var o models.OrderRecord
		err := rows.Scan(
			&o.OrderID,
			&o.PlacedAt,
			&o.OrderMode,
			&o.PizzaSize,
			&o.DeliveryArea,
			&o.DoughPrepTime,
			&o.StylingTime,
			&o.OvenTime,
			&o.BoxingTime,
			&o.DeliveryDuration,
			&o.OvenTemperature,
			&o.OrderTaker,
			&o.DoughPrepStaff,
			&o.Stylist,
			&o.OvenOperator,
			&o.Boxer,
			&o.DeliveryDriver,
			&o.Complaint,
			&o.ComplaintReason,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	// A query can fail mid-stream; without this check a connection drop
	// looks like a short but valid result set.
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&count)
	return count, err
}

func (r *OrderRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "TRUNCATE TABLE orders")
	return err
}

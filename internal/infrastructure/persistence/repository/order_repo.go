package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/persistence/sqlite"
)

// OrderRepository implements port.OrderRepository
type OrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) port.OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// GetByRef retrieves an order by its reference
func (r *OrderRepository) GetByRef(ctx context.Context, orderRef string) (*entity.Order, error) {
	query := `
		SELECT id, order_ref, execution_date, elevated_rate, team, created_at
		FROM orders
		WHERE order_ref = ?
	`

	var order entity.Order
	var execDate entity.Date
	var team string

	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, orderRef).Scan(
		&order.ID,
		&order.OrderRef,
		&execDate,
		&order.ElevatedRate,
		&team,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get order", zap.String("order_ref", orderRef), zap.Error(err))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if !execDate.IsZero() {
		order.ExecutionDate = &execDate
	}
	if err := fromJSON("team", team, &order.Team); err != nil {
		return nil, err
	}
	return &order, nil
}

// Upsert inserts the order or overwrites the one with the same reference
func (r *OrderRepository) Upsert(ctx context.Context, order *entity.Order) error {
	team, err := toJSON("team", order.Team)
	if err != nil {
		return err
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO orders (order_ref, execution_date, elevated_rate, team, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(order_ref) DO UPDATE SET
			execution_date = excluded.execution_date,
			elevated_rate = excluded.elevated_rate,
			team = excluded.team
	`

	exec := sqlite.Executor(ctx, r.db)
	_, err = exec.ExecContext(ctx, query,
		order.OrderRef,
		order.ExecutionDate,
		order.ElevatedRate,
		team,
		order.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert order", zap.String("order_ref", order.OrderRef), zap.Error(err))
		return fmt.Errorf("failed to upsert order: %w", err)
	}

	if err := exec.QueryRowContext(ctx, `SELECT id FROM orders WHERE order_ref = ?`, order.OrderRef).Scan(&order.ID); err != nil {
		return fmt.Errorf("failed to read order id: %w", err)
	}
	return nil
}

var _ port.OrderRepository = (*OrderRepository)(nil)

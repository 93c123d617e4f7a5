package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/persistence/sqlite"
)

// PriceListRepository implements port.PriceListRepository.
// Money columns hold decimal strings so no precision is lost in SQLite.
type PriceListRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPriceListRepository creates a new price list repository
func NewPriceListRepository(db *sql.DB, logger *zap.Logger) port.PriceListRepository {
	return &PriceListRepository{
		db:     db,
		logger: logger,
	}
}

// EffectiveOn returns the most recent list effective on or before date
func (r *PriceListRepository) EffectiveOn(ctx context.Context, date entity.Date) (*entity.PriceList, error) {
	query := `
		SELECT id, effective_from, km_rate, km_rate_elevated
		FROM price_lists
		WHERE effective_from <= ?
		ORDER BY effective_from DESC
		LIMIT 1
	`

	exec := sqlite.Executor(ctx, r.db)
	priceList, err := scanPriceList(exec.QueryRowContext(ctx, query, date.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to resolve price list", zap.String("date", date.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get price list: %w", err)
	}

	if priceList.Bands, err = r.bands(ctx, exec, priceList.ID); err != nil {
		return nil, err
	}
	return priceList, nil
}

// List returns every price list with its bands, ordered by effective date
func (r *PriceListRepository) List(ctx context.Context) ([]*entity.PriceList, error) {
	query := `
		SELECT id, effective_from, km_rate, km_rate_elevated
		FROM price_lists
		ORDER BY effective_from ASC
	`

	exec := sqlite.Executor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list price lists", zap.Error(err))
		return nil, fmt.Errorf("failed to list price lists: %w", err)
	}

	var lists []*entity.PriceList
	for rows.Next() {
		pl, err := scanPriceList(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan price list: %w", err)
		}
		lists = append(lists, pl)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// close before issuing more queries on a single-connection pool
	rows.Close()

	for _, pl := range lists {
		if pl.Bands, err = r.bands(ctx, exec, pl.ID); err != nil {
			return nil, err
		}
	}
	return lists, nil
}

// Upsert stores the list, replacing any list with the same effective date.
// Callers wanting atomicity run it inside a TransactionManager.
func (r *PriceListRepository) Upsert(ctx context.Context, priceList *entity.PriceList) error {
	if err := priceList.Validate(); err != nil {
		return err
	}

	exec := sqlite.Executor(ctx, r.db)

	query := `
		INSERT INTO price_lists (effective_from, km_rate, km_rate_elevated, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(effective_from) DO UPDATE SET
			km_rate = excluded.km_rate,
			km_rate_elevated = excluded.km_rate_elevated
	`
	_, err := exec.ExecContext(ctx, query,
		priceList.EffectiveFrom.String(),
		priceList.KmRate.String(),
		priceList.KmRateElevated.String(),
		time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to upsert price list",
			zap.String("effective_from", priceList.EffectiveFrom.String()),
			zap.Error(err))
		return fmt.Errorf("failed to upsert price list: %w", err)
	}

	// LastInsertId is unreliable on the update path
	var id int64
	err = exec.QueryRowContext(ctx,
		`SELECT id FROM price_lists WHERE effective_from = ?`,
		priceList.EffectiveFrom.String(),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to read price list id: %w", err)
	}

	if _, err := exec.ExecContext(ctx, `DELETE FROM tariff_bands WHERE price_list_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear tariff bands: %w", err)
	}

	for i, b := range priceList.Bands {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO tariff_bands (
				price_list_id, position, hours_from, hours_to, meal_allowance, work_allowance
			) VALUES (?, ?, ?, ?, ?, ?)
		`, id, i, b.From, b.To, b.MealAllowance.String(), b.WorkAllowance.String())
		if err != nil {
			r.logger.Error("Failed to insert tariff band", zap.Int64("price_list_id", id), zap.Int("position", i), zap.Error(err))
			return fmt.Errorf("failed to insert tariff band: %w", err)
		}
	}

	priceList.ID = id
	return nil
}

func (r *PriceListRepository) bands(ctx context.Context, exec sqlite.Execer, priceListID int64) ([]entity.TariffBand, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT hours_from, hours_to, meal_allowance, work_allowance
		FROM tariff_bands
		WHERE price_list_id = ?
		ORDER BY position ASC
	`, priceListID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tariff bands: %w", err)
	}
	defer rows.Close()

	bands := []entity.TariffBand{}
	for rows.Next() {
		var b entity.TariffBand
		var meal, work string
		if err := rows.Scan(&b.From, &b.To, &meal, &work); err != nil {
			return nil, fmt.Errorf("failed to scan tariff band: %w", err)
		}
		if b.MealAllowance, err = decimal.NewFromString(meal); err != nil {
			return nil, fmt.Errorf("invalid meal allowance %q: %w", meal, err)
		}
		if b.WorkAllowance, err = decimal.NewFromString(work); err != nil {
			return nil, fmt.Errorf("invalid work allowance %q: %w", work, err)
		}
		bands = append(bands, b)
	}

	return bands, rows.Err()
}

func scanPriceList(row scanner) (*entity.PriceList, error) {
	var pl entity.PriceList
	var rate, elevated string

	if err := row.Scan(&pl.ID, &pl.EffectiveFrom, &rate, &elevated); err != nil {
		return nil, err
	}

	var err error
	if pl.KmRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("invalid km rate %q: %w", rate, err)
	}
	if pl.KmRateElevated, err = decimal.NewFromString(elevated); err != nil {
		return nil, fmt.Errorf("invalid elevated km rate %q: %w", elevated, err)
	}
	return &pl, nil
}

var _ port.PriceListRepository = (*PriceListRepository)(nil)

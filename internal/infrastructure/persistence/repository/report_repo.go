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
	"github.com/garyjia/fieldwork-reports/internal/domain/workflow"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/persistence/sqlite"
)

const reportColumns = `
	id, order_ref, execution_date, elevated_rate, team,
	part_a, part_b, calculations, state, version,
	created_at, updated_at`

// ReportRepository implements port.ReportRepository
type ReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB, logger *zap.Logger) port.ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new report and fills in its ID
func (r *ReportRepository) Create(ctx context.Context, report *entity.Report) error {
	cols, err := encodeReport(report)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if report.Version == 0 {
		report.Version = 1
	}

	query := `
		INSERT INTO reports (
			order_ref, execution_date, elevated_rate, team,
			part_a, part_b, calculations, state, version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		report.OrderRef,
		report.ExecutionDate,
		report.ElevatedRate,
		cols.team,
		cols.partA,
		cols.partB,
		cols.calculations,
		string(report.State),
		report.Version,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create report", zap.String("order_ref", report.OrderRef), zap.Error(err))
		return fmt.Errorf("failed to create report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	report.ID = id
	report.CreatedAt = now
	report.UpdatedAt = now
	return nil
}

// GetByID retrieves a report by ID
func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*entity.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = ?`

	report, err := scanReport(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get report by ID", zap.Int64("report_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// GetByOrderRef retrieves the report written for an order
func (r *ReportRepository) GetByOrderRef(ctx context.Context, orderRef string) (*entity.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE order_ref = ?`

	report, err := scanReport(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, orderRef))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get report by order ref", zap.String("order_ref", orderRef), zap.Error(err))
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// Update writes the editable content guarded by the optimistic version
func (r *ReportRepository) Update(ctx context.Context, report *entity.Report) error {
	cols, err := encodeReport(report)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		UPDATE reports
		SET execution_date = ?, elevated_rate = ?, team = ?,
			part_a = ?, part_b = ?, calculations = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		report.ExecutionDate,
		report.ElevatedRate,
		cols.team,
		cols.partA,
		cols.partB,
		cols.calculations,
		now,
		report.ID,
		report.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update report", zap.Int64("report_id", report.ID), zap.Error(err))
		return fmt.Errorf("failed to update report: %w", err)
	}

	if err := expectOneRow(result, report.ID, report.Version); err != nil {
		return err
	}

	report.Version++
	report.UpdatedAt = now
	return nil
}

// UpdateState performs a guarded state change
func (r *ReportRepository) UpdateState(ctx context.Context, id int64, from, to workflow.State, version int64) error {
	query := `
		UPDATE reports
		SET state = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND state = ? AND version = ?
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		string(to), time.Now().UTC(), id, string(from), version)
	if err != nil {
		r.logger.Error("Failed to update report state",
			zap.Int64("report_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err))
		return fmt.Errorf("failed to update report state: %w", err)
	}

	return expectOneRow(result, id, version)
}

// ListByState returns up to limit reports in state, oldest first
func (r *ReportRepository) ListByState(ctx context.Context, state workflow.State, limit int) ([]*entity.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE state = ? ORDER BY id ASC LIMIT ?`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, string(state), limit)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.String("state", string(state)), zap.Error(err))
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*entity.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

func expectOneRow(result sql.Result, id, version int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report %d at version %d: %w", id, version, entity.ErrConflict)
	}
	return nil
}

type reportCols struct {
	team, partA, partB, calculations string
}

func encodeReport(report *entity.Report) (*reportCols, error) {
	var cols reportCols
	var err error

	if cols.team, err = toJSON("team", report.Team); err != nil {
		return nil, err
	}
	if cols.partA, err = toJSON("part_a", report.PartA); err != nil {
		return nil, err
	}
	if cols.partB, err = toJSON("part_b", report.PartB); err != nil {
		return nil, err
	}
	calcs := report.Calculations
	if calcs == nil {
		calcs = entity.Calculations{}
	}
	if cols.calculations, err = toJSON("calculations", calcs); err != nil {
		return nil, err
	}
	return &cols, nil
}

func scanReport(row scanner) (*entity.Report, error) {
	var report entity.Report
	var execDate entity.Date
	var cols reportCols
	var state string

	err := row.Scan(
		&report.ID,
		&report.OrderRef,
		&execDate,
		&report.ElevatedRate,
		&cols.team,
		&cols.partA,
		&cols.partB,
		&cols.calculations,
		&state,
		&report.Version,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if !execDate.IsZero() {
		report.ExecutionDate = &execDate
	}
	report.State = workflow.State(state)

	if err := fromJSON("team", cols.team, &report.Team); err != nil {
		return nil, err
	}
	if err := fromJSON("part_a", cols.partA, &report.PartA); err != nil {
		return nil, err
	}
	if err := fromJSON("part_b", cols.partB, &report.PartB); err != nil {
		return nil, err
	}
	if err := fromJSON("calculations", cols.calculations, &report.Calculations); err != nil {
		return nil, err
	}
	if report.Calculations == nil {
		report.Calculations = entity.Calculations{}
	}

	return &report, nil
}

var _ port.ReportRepository = (*ReportRepository)(nil)

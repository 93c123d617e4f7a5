package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	"github.com/garyjia/fieldwork-reports/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append adds an entry to a report's audit trail
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	query := `
		INSERT INTO report_history (
			report_id, actor, action, state, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	payload := string(entry.Payload)
	if payload == "" {
		payload = "{}"
	}

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		entry.ReportID,
		entry.Actor,
		entry.Action,
		entry.State,
		payload,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append history entry",
			zap.Int64("report_id", entry.ReportID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return fmt.Errorf("failed to append history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByReport returns a report's history in insertion order
func (r *HistoryRepository) ListByReport(ctx context.Context, reportID int64) ([]*entity.HistoryEntry, error) {
	query := `
		SELECT id, report_id, actor, action, state, payload, created_at
		FROM report_history
		WHERE report_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, reportID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.Int64("report_id", reportID), zap.Error(err))
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []*entity.HistoryEntry{}
	for rows.Next() {
		var entry entity.HistoryEntry
		var payload string
		err := rows.Scan(
			&entry.ID,
			&entry.ReportID,
			&entry.Actor,
			&entry.Action,
			&entry.State,
			&payload,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.Payload = []byte(payload)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)

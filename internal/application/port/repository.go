package port

import (
	"context"

	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	"github.com/garyjia/fieldwork-reports/internal/domain/workflow"
)

// ReportRepository defines persistence operations for Report.
// Getters return nil, nil when the row does not exist.
type ReportRepository interface {
	Create(ctx context.Context, report *entity.Report) error
	GetByID(ctx context.Context, id int64) (*entity.Report, error)
	GetByOrderRef(ctx context.Context, orderRef string) (*entity.Report, error)
	// Update writes the editable columns when the stored version equals
	// report.Version, then bumps report.Version. A stale version yields entity.ErrConflict.
	Update(ctx context.Context, report *entity.Report) error
	// UpdateState moves the report from (from, version) to `to`; same conflict rule as Update.
	UpdateState(ctx context.Context, id int64, from workflow.State, to workflow.State, version int64) error
	ListByState(ctx context.Context, state workflow.State, limit int) ([]*entity.Report, error)
}

// HistoryRepository is the append-only audit log of a report
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.HistoryEntry) error
	ListByReport(ctx context.Context, reportID int64) ([]*entity.HistoryEntry, error)
}

// PriceListRepository stores effective-dated tariffs
type PriceListRepository interface {
	// EffectiveOn returns the list with the latest EffectiveFrom not after date
	EffectiveOn(ctx context.Context, date entity.Date) (*entity.PriceList, error)
	// Upsert replaces the list (and its bands) sharing the same EffectiveFrom
	Upsert(ctx context.Context, priceList *entity.PriceList) error
	List(ctx context.Context) ([]*entity.PriceList, error)
}

// OrderRepository defines persistence operations for Order
type OrderRepository interface {
	GetByRef(ctx context.Context, orderRef string) (*entity.Order, error)
	Upsert(ctx context.Context, order *entity.Order) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

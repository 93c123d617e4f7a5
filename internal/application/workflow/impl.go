package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/fieldwork-reports/internal/application/dispatcher"
	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	"github.com/garyjia/fieldwork-reports/internal/domain/event"
	domainwf "github.com/garyjia/fieldwork-reports/internal/domain/workflow"
)

// PayloadSnapshot is the report.sent payload key holding an entity.ReportSnapshot
const PayloadSnapshot = "snapshot"

// SnapshotCalculator produces the breakdown frozen into the SEND snapshot
type SnapshotCalculator interface {
	CalculateAll(ctx context.Context, report *entity.Report) (entity.Calculations, error)
}

type engineImpl struct {
	reportRepo  port.ReportRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	calculator  SnapshotCalculator

	locker  port.Locker
	lockTTL time.Duration
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithCalculator recomputes the breakdown against the current tariff on SEND
func WithCalculator(c SnapshotCalculator) EngineOption {
	return func(e *engineImpl) {
		e.calculator = c
	}
}

// WithLocker serialises transitions per report through a distributed lock.
// The version check still applies; the lock only narrows the race window.
func WithLocker(l port.Locker, ttl time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.locker = l
		e.lockTTL = ttl
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	reportRepo port.ReportRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		reportRepo:  reportRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		lockTTL:     10 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// GetStateMachine builds a fresh machine from the stored state
func (e *engineImpl) GetStateMachine(ctx context.Context, reportID int64) (domainwf.StateMachine, *entity.Report, error) {
	report, err := e.loadReport(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}
	if !report.State.IsValid() {
		return nil, nil, fmt.Errorf("%w: report %d has state %q", domainwf.ErrInvalidState, reportID, report.State)
	}
	return BuildReportStateMachine(report.State), report, nil
}

// PermittedTriggers evaluates guards against the ctx actor
func (e *engineImpl) PermittedTriggers(ctx context.Context, reportID int64) ([]domainwf.Trigger, error) {
	machine, _, err := e.GetStateMachine(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return machine.PermittedTriggers(ctx), nil
}

// TransitionState fires trigger inside a transaction
func (e *engineImpl) TransitionState(ctx context.Context, reportID int64, trigger domainwf.Trigger, req TransitionRequest) (*entity.Report, error) {
	if !trigger.IsValid() {
		return nil, fmt.Errorf("%w: unknown trigger %q", domainwf.ErrInvalidTransition, trigger)
	}

	if e.locker != nil {
		release, ok, err := e.locker.Acquire(ctx, fmt.Sprintf("report:%d", reportID), e.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire report lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("report %d is being changed by another request: %w", reportID, entity.ErrConflict)
		}
		defer release()
	}

	actor, _ := domainwf.ActorFrom(ctx)
	var report *entity.Report
	var previous domainwf.State

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		machine, current, err := e.GetStateMachine(txCtx, reportID)
		if err != nil {
			return err
		}
		if req.ExpectedVersion != 0 && req.ExpectedVersion != current.Version {
			return fmt.Errorf("report %d is at version %d, not %d: %w",
				reportID, current.Version, req.ExpectedVersion, entity.ErrConflict)
		}

		previous = machine.State()
		if err := machine.Fire(txCtx, trigger); err != nil {
			return err
		}
		next := machine.State()

		if trigger == domainwf.TriggerSend && e.calculator != nil {
			if err := e.refreshCalculations(txCtx, current); err != nil {
				return err
			}
		}

		if err := e.reportRepo.UpdateState(txCtx, reportID, previous, next, current.Version); err != nil {
			return err
		}
		current.State = next
		current.Version++

		entry, err := entity.NewHistoryEntry(reportID, actor.Label(), trigger.String(), next.String(), req.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode history payload: %w", err)
		}
		if err := e.historyRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		report = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The submission task is enqueued only once the send state is committed,
	// so a worker never reads the report before it is visible.
	if trigger == domainwf.TriggerSend && e.dispatcher != nil {
		sent := event.NewEvent(event.TypeReportSent, reportID, report.OrderRef, map[string]interface{}{
			PayloadSnapshot: report.Snapshot(),
			"actor":         actor.Label(),
		})
		if err := e.dispatcher.Dispatch(ctx, sent); err != nil {
			if revertErr := e.abortSend(ctx, report, previous, err); revertErr != nil {
				return nil, fmt.Errorf("failed to dispatch submission: %w (revert to %s failed: %v)", err, previous, revertErr)
			}
			return nil, fmt.Errorf("failed to dispatch submission: %w", err)
		}
	}

	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeReportStatusChanged, reportID, report.OrderRef,
			map[string]interface{}{
				"previous_state": previous.String(),
				"new_state":      report.State.String(),
				"trigger":        trigger.String(),
				"actor":          actor.Label(),
			}))
	}

	return report, nil
}

// refreshCalculations recomputes the breakdown with the tariff in effect now
// and persists it, bumping the report version.
func (e *engineImpl) refreshCalculations(ctx context.Context, report *entity.Report) error {
	calcs, err := e.calculator.CalculateAll(ctx, report)
	if errors.Is(err, entity.ErrNoExecutionDate) {
		return fmt.Errorf("%w: report %d has no execution date", entity.ErrValidation, report.ID)
	}
	if err != nil {
		return err
	}

	report.Calculations = calcs
	if err := e.reportRepo.Update(ctx, report); err != nil {
		return fmt.Errorf("failed to store calculations: %w", err)
	}
	return nil
}

// abortSend moves a committed send back to its previous state when the
// submission task could not be enqueued. The revert is recorded in history.
func (e *engineImpl) abortSend(ctx context.Context, report *entity.Report, previous domainwf.State, cause error) error {
	actor, _ := domainwf.ActorFrom(ctx)
	return e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.reportRepo.UpdateState(txCtx, report.ID, report.State, previous, report.Version); err != nil {
			return err
		}
		report.State = previous
		report.Version++

		entry, err := entity.NewHistoryEntry(report.ID, actor.Label(), entity.ActionSendAborted, previous.String(),
			map[string]string{"error": cause.Error()})
		if err != nil {
			return fmt.Errorf("failed to encode history payload: %w", err)
		}
		return e.historyRepo.Append(txCtx, entry)
	})
}

// AppendHistory writes a non-transition entry labelled with the ctx actor
func (e *engineImpl) AppendHistory(ctx context.Context, reportID int64, action string, payload interface{}) error {
	report, err := e.loadReport(ctx, reportID)
	if err != nil {
		return err
	}

	actor, _ := domainwf.ActorFrom(ctx)
	entry, err := entity.NewHistoryEntry(reportID, actor.Label(), action, report.State.String(), payload)
	if err != nil {
		return fmt.Errorf("failed to encode history payload: %w", err)
	}
	if err := e.historyRepo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to create history record: %w", err)
	}
	return nil
}

func (e *engineImpl) loadReport(ctx context.Context, reportID int64) (*entity.Report, error) {
	report, err := e.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}
	if report == nil {
		return nil, fmt.Errorf("report %d: %w", reportID, entity.ErrNotFound)
	}
	return report, nil
}

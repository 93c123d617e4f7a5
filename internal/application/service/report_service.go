package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/application/workflow"
	"github.com/garyjia/fieldwork-reports/internal/domain/compensation"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	domainwf "github.com/garyjia/fieldwork-reports/internal/domain/workflow"
)

// ReportService is the read/write API over work reports. The caller is
// identified by the actor in ctx (domainwf.WithActor).
type ReportService interface {
	GetByOrderRef(ctx context.Context, orderRef string) (*entity.Report, error)
	GetByID(ctx context.Context, id int64) (*entity.Report, error)

	// SavePartA stores travel data, creating the draft report from its order
	// on first save, and recomputes every member's breakdown.
	// expectedVersion 0 skips the optimistic check.
	SavePartA(ctx context.Context, orderRef string, partA entity.PartA, expectedVersion int64) (*entity.Report, error)
	SavePartB(ctx context.Context, orderRef string, partB entity.PartB, expectedVersion int64) (*entity.Report, error)

	Transition(ctx context.Context, reportID int64, trigger domainwf.Trigger, expectedVersion int64) (*entity.Report, error)
	History(ctx context.Context, reportID int64) ([]*entity.HistoryEntry, error)

	// Calculation recomputes one member's breakdown from the stored report
	Calculation(ctx context.Context, reportID int64, member entity.MemberID) (*entity.CompensationCalculation, error)
	Statement(ctx context.Context, reportID int64) (*compensation.Statement, error)

	UpsertOrder(ctx context.Context, order *entity.Order) error
}

type reportServiceImpl struct {
	reportRepo  port.ReportRepository
	orderRepo   port.OrderRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	engine      workflow.WorkflowEngine
	calculator  *compensation.Calculator
	logger      Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	reportRepo port.ReportRepository,
	orderRepo port.OrderRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	engine workflow.WorkflowEngine,
	calculator *compensation.Calculator,
	logger Logger,
) ReportService {
	return &reportServiceImpl{
		reportRepo:  reportRepo,
		orderRepo:   orderRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		engine:      engine,
		calculator:  calculator,
		logger:      orNop(logger),
	}
}

func (s *reportServiceImpl) GetByOrderRef(ctx context.Context, orderRef string) (*entity.Report, error) {
	report, err := s.reportRepo.GetByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("report for order %s: %w", orderRef, entity.ErrNotFound)
	}
	return report, nil
}

func (s *reportServiceImpl) GetByID(ctx context.Context, id int64) (*entity.Report, error) {
	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("report %d: %w", id, entity.ErrNotFound)
	}
	return report, nil
}

func (s *reportServiceImpl) SavePartA(ctx context.Context, orderRef string, partA entity.PartA, expectedVersion int64) (*entity.Report, error) {
	return s.save(ctx, orderRef, expectedVersion, entity.ActionPartAUpdated, func(report *entity.Report) error {
		if err := entity.ValidatePartA(&partA, report.Team); err != nil {
			return err
		}
		report.PartA = partA
		return nil
	})
}

func (s *reportServiceImpl) SavePartB(ctx context.Context, orderRef string, partB entity.PartB, expectedVersion int64) (*entity.Report, error) {
	return s.save(ctx, orderRef, expectedVersion, entity.ActionPartBUpdated, func(report *entity.Report) error {
		if err := entity.ValidatePartB(&partB); err != nil {
			return err
		}
		report.PartB = partB
		return nil
	})
}

// save runs the shared create-if-missing, authorise, mutate, recalculate and
// persist sequence in one transaction
func (s *reportServiceImpl) save(ctx context.Context, orderRef string, expectedVersion int64, action string, mutate func(*entity.Report) error) (*entity.Report, error) {
	actor, _ := domainwf.ActorFrom(ctx)
	var saved *entity.Report

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		report, err := s.loadOrCreate(txCtx, orderRef, actor)
		if err != nil {
			return err
		}

		if err := report.CheckEditableBy(entity.MemberID(actor.ID)); err != nil {
			return fmt.Errorf("report %d: %w", report.ID, err)
		}
		if expectedVersion != 0 && expectedVersion != report.Version {
			return fmt.Errorf("report %d is at version %d, not %d: %w",
				report.ID, report.Version, expectedVersion, entity.ErrConflict)
		}

		if err := mutate(report); err != nil {
			return err
		}
		if err := s.recalculate(txCtx, report); err != nil {
			return err
		}
		if err := s.reportRepo.Update(txCtx, report); err != nil {
			return err
		}

		entry, err := entity.NewHistoryEntry(report.ID, actor.Label(), action, report.State.String(), nil)
		if err != nil {
			return err
		}
		if err := s.historyRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		saved = report
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to save report", "order_ref", orderRef, "action", action, "error", err)
		return nil, err
	}

	s.logger.Info("Report saved", "report_id", saved.ID, "order_ref", orderRef, "action", action, "version", saved.Version)
	return saved, nil
}

func (s *reportServiceImpl) loadOrCreate(ctx context.Context, orderRef string, actor domainwf.Actor) (*entity.Report, error) {
	report, err := s.reportRepo.GetByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if report != nil {
		return report, nil
	}

	order, err := s.orderRepo.GetByRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderRef, entity.ErrNotFound)
	}
	if err := order.Team.Validate(); err != nil {
		return nil, fmt.Errorf("order %s team: %w", orderRef, err)
	}

	report = entity.NewDraftReport(order)
	// only the leader may bring a report into existence
	if err := report.CheckEditableBy(entity.MemberID(actor.ID)); err != nil {
		return nil, err
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}

	entry, err := entity.NewHistoryEntry(report.ID, actor.Label(), entity.ActionCreated, report.State.String(), nil)
	if err != nil {
		return nil, err
	}
	if err := s.historyRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create history record: %w", err)
	}

	s.logger.Info("Report created", "report_id", report.ID, "order_ref", orderRef)
	return report, nil
}

// recalculate replaces the stored breakdown. A report with no date yet
// keeps an empty breakdown; a missing tariff is a blocking error.
func (s *reportServiceImpl) recalculate(ctx context.Context, report *entity.Report) error {
	calcs, err := s.calculator.CalculateAll(ctx, report)
	if errors.Is(err, entity.ErrNoExecutionDate) {
		s.logger.Info("Skipping calculation, report has no date yet", "report_id", report.ID)
		report.Calculations = entity.Calculations{}
		return nil
	}
	if err != nil {
		return err
	}
	report.Calculations = calcs
	return nil
}

// Transition fires trigger for the ctx actor. A leader must be the leader of this report.
func (s *reportServiceImpl) Transition(ctx context.Context, reportID int64, trigger domainwf.Trigger, expectedVersion int64) (*entity.Report, error) {
	actor, _ := domainwf.ActorFrom(ctx)

	report, err := s.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if actor.Role == domainwf.RoleLeader {
		leader, ok := report.Team.Leader()
		if !ok || string(leader.ID) != actor.ID {
			return nil, fmt.Errorf("%s is not the leader of report %d: %w", actor.Label(), reportID, entity.ErrForbidden)
		}
	}
	if trigger == domainwf.TriggerSend && !(report.PartA.Completed && report.PartB.Completed) {
		return nil, fmt.Errorf("%w: both parts must be completed before sending", entity.ErrValidation)
	}

	updated, err := s.engine.TransitionState(ctx, reportID, trigger, workflow.TransitionRequest{ExpectedVersion: expectedVersion})
	if err != nil {
		s.logger.Error("Transition failed", "report_id", reportID, "trigger", trigger, "actor", actor.Label(), "error", err)
		return nil, err
	}

	s.logger.Info("Report transitioned", "report_id", reportID, "trigger", trigger, "state", updated.State, "actor", actor.Label())
	return updated, nil
}

func (s *reportServiceImpl) History(ctx context.Context, reportID int64) ([]*entity.HistoryEntry, error) {
	if _, err := s.GetByID(ctx, reportID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByReport(ctx, reportID)
}

func (s *reportServiceImpl) Calculation(ctx context.Context, reportID int64, member entity.MemberID) (*entity.CompensationCalculation, error) {
	report, err := s.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return s.calculator.Calculate(ctx, report, member)
}

func (s *reportServiceImpl) Statement(ctx context.Context, reportID int64) (*compensation.Statement, error) {
	report, err := s.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	calcs, err := s.calculator.CalculateAll(ctx, report)
	if err != nil {
		return nil, err
	}
	return compensation.BuildStatement(report, calcs), nil
}

func (s *reportServiceImpl) UpsertOrder(ctx context.Context, order *entity.Order) error {
	if order.OrderRef == "" {
		return fmt.Errorf("%w: order reference is required", entity.ErrValidation)
	}
	if err := order.Team.Validate(); err != nil {
		return err
	}
	if err := s.orderRepo.Upsert(ctx, order); err != nil {
		return err
	}
	s.logger.Info("Order stored", "order_ref", order.OrderRef, "members", len(order.Team))
	return nil
}

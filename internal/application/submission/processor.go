package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/application/workflow"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	domainwf "github.com/garyjia/fieldwork-reports/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// DefaultTimeout bounds a single call to the external service
const DefaultTimeout = 30 * time.Second

// Processor performs one submission attempt for a queued task
type Processor struct {
	reports     port.ReportRepository
	engine      workflow.WorkflowEngine
	client      port.SubmissionClient
	environment string
	timeout     time.Duration
	logger      Logger
}

// ProcessorConfig holds the tunables of a Processor
type ProcessorConfig struct {
	Environment string
	Timeout     time.Duration
}

// NewProcessor creates a submission processor
func NewProcessor(
	reports port.ReportRepository,
	engine workflow.WorkflowEngine,
	client port.SubmissionClient,
	cfg ProcessorConfig,
	logger Logger,
) *Processor {
	if logger == nil {
		logger = nopLogger{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Processor{
		reports:     reports,
		engine:      engine,
		client:      client,
		environment: cfg.Environment,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Process makes one submission attempt.
//
// A nil return means the task is finished: submitted, skipped, or failed
// permanently. A non-nil return means the attempt failed in a way worth
// retrying, unless it wraps port.ErrNoRetry.
func (p *Processor) Process(ctx context.Context, task *entity.SubmissionTask) error {
	ctx = domainwf.WithActor(ctx, domainwf.SystemActor)

	report, err := p.reports.GetByID(ctx, task.ReportID)
	if err != nil {
		return fmt.Errorf("failed to load report %d: %w", task.ReportID, err)
	}
	if report == nil {
		return fmt.Errorf("report %d: %w: %w", task.ReportID, entity.ErrNotFound, port.ErrNoRetry)
	}
	if report.State != domainwf.StateSend && report.State != domainwf.StateRejected {
		// An older row than the snapshot means the SEND is not visible to this
		// connection yet; redeliver instead of dropping the task.
		if report.Version < task.Snapshot.Version {
			return fmt.Errorf("report %d is at version %d, task expects %d: %w",
				report.ID, report.Version, task.Snapshot.Version, entity.ErrConflict)
		}
		p.logger.Info("Skipping submission, report no longer awaiting transmission",
			"report_id", report.ID, "state", report.State, "task_id", task.ID)
		return nil
	}

	result, subErr := p.submit(ctx, task)
	if subErr == nil {
		if _, err := p.engine.TransitionState(ctx, report.ID, domainwf.TriggerSubmitSucceeded,
			workflow.TransitionRequest{Payload: result}); err != nil {
			return fmt.Errorf("failed to record successful submission of report %d: %w", report.ID, err)
		}
		p.logger.Info("Report submitted", "report_id", report.ID, "instance_code", result.InstanceCode)
		return nil
	}

	kind := Classify(subErr)
	p.logger.Error("Submission attempt failed",
		"report_id", report.ID, "task_id", task.ID, "kind", kind, "error", subErr)

	if _, err := p.engine.TransitionState(ctx, report.ID, domainwf.TriggerSubmitFailed,
		workflow.TransitionRequest{Payload: map[string]interface{}{
			"error": subErr.Error(),
			"kind":  kind,
		}}); err != nil {
		return errors.Join(subErr, fmt.Errorf("failed to record failed submission of report %d: %w", report.ID, err))
	}

	if Retryable(kind) {
		return fmt.Errorf("submission of report %d failed: %w", report.ID, subErr)
	}

	if err := p.engine.AppendHistory(ctx, report.ID, entity.ActionFinalFailure, map[string]interface{}{
		"error":  subErr.Error(),
		"reason": "permanent failure, not retried",
	}); err != nil {
		p.logger.Error("Failed to record final failure", "report_id", report.ID, "error", err)
	}
	return nil
}

func (p *Processor) submit(ctx context.Context, task *entity.SubmissionTask) (*port.SubmissionResult, error) {
	req, err := Render(task, p.environment)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.client.Submit(callCtx, req)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &port.SubmissionResult{}
	}
	return result, nil
}

// GiveUp records that task exhausted its redeliveries
func (p *Processor) GiveUp(ctx context.Context, task *entity.SubmissionTask, cause error) {
	ctx = domainwf.WithActor(ctx, domainwf.SystemActor)
	if err := p.engine.AppendHistory(ctx, task.ReportID, entity.ActionFinalFailure, map[string]interface{}{
		"error":  cause.Error(),
		"reason": "retries exhausted",
	}); err != nil {
		p.logger.Error("Failed to record final failure", "report_id", task.ReportID, "error", err)
	}
}

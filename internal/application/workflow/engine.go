package workflow

import (
	"context"

	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	domainwf "github.com/garyjia/fieldwork-reports/internal/domain/workflow"
)

// TransitionRequest carries the optional inputs of a transition
type TransitionRequest struct {
	// ExpectedVersion, when non-zero, must equal the stored report version
	ExpectedVersion int64
	// Payload is recorded on the history entry
	Payload interface{}
}

// WorkflowEngine drives report state changes. The acting user is read from
// ctx (see domainwf.WithActor); a ctx without an actor fails every guard.
type WorkflowEngine interface {
	// TransitionState fires trigger on the report and returns the updated report.
	// State change and history entry commit together. For SEND the breakdown is
	// recomputed in the same transaction and the report.sent handlers run after
	// commit; if they fail the report is moved back to its previous state.
	TransitionState(ctx context.Context, reportID int64, trigger domainwf.Trigger, req TransitionRequest) (*entity.Report, error)

	// GetStateMachine loads the report and builds a machine at its current state
	GetStateMachine(ctx context.Context, reportID int64) (domainwf.StateMachine, *entity.Report, error)

	// PermittedTriggers lists what the ctx actor may fire right now
	PermittedTriggers(ctx context.Context, reportID int64) ([]domainwf.Trigger, error)

	// AppendHistory records an entry without changing state
	AppendHistory(ctx context.Context, reportID int64, action string, payload interface{}) error
}

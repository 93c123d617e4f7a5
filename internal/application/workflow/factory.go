package workflow

import (
	domainwf "github.com/garyjia/fieldwork-reports/internal/domain/workflow"
)

// BuildReportStateMachine creates a state machine for the report lifecycle.
// Role guards read the actor from the ctx passed to Fire.
func BuildReportStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	leader := domainwf.RequireRole(domainwf.RoleLeader)
	admin := domainwf.RequireRole(domainwf.RoleAdmin)
	system := domainwf.RequireRole(domainwf.RoleSystem)

	builder.Configure(domainwf.StateDraft).
		PermitIf(domainwf.TriggerSend, domainwf.StateSend, leader)

	builder.Configure(domainwf.StateSend).
		PermitIf(domainwf.TriggerSubmitSucceeded, domainwf.StateSubmitted, system).
		PermitIf(domainwf.TriggerSubmitFailed, domainwf.StateRejected, system)

	// rejected covers both an admin rejection and a failed submission,
	// so the worker may still land a retry here
	builder.Configure(domainwf.StateRejected).
		PermitIf(domainwf.TriggerSend, domainwf.StateSend, leader).
		PermitIf(domainwf.TriggerSubmitSucceeded, domainwf.StateSubmitted, system).
		PermitIf(domainwf.TriggerSubmitFailed, domainwf.StateRejected, system).
		PermitIf(domainwf.TriggerReset, domainwf.StateDraft, admin)

	builder.Configure(domainwf.StateSubmitted).
		PermitIf(domainwf.TriggerApprove, domainwf.StateApproved, admin).
		PermitIf(domainwf.TriggerReject, domainwf.StateRejected, admin)

	// approved is terminal

	return builder.Build(initialState)
}

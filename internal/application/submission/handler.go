package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/fieldwork-reports/internal/application/dispatcher"
	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/application/workflow"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
	"github.com/garyjia/fieldwork-reports/internal/domain/event"
)

// HandlerName is the subscription name of the enqueue handler
const HandlerName = "submission-enqueue"

// EnqueueOnSend returns a report.sent handler that queues a submission task.
// It runs after the SEND commits; a failed enqueue moves the report back.
func EnqueueOnSend(queue port.TaskQueue) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if evt.Type != event.TypeReportSent {
			return nil
		}

		snap, ok := evt.Payload[workflow.PayloadSnapshot].(entity.ReportSnapshot)
		if !ok {
			return fmt.Errorf("report.sent event %s carries no snapshot", evt.ID)
		}

		task := &entity.SubmissionTask{
			ID:         uuid.NewString(),
			ReportID:   evt.ReportID,
			Snapshot:   snap,
			EnqueuedAt: time.Now().UTC(),
		}
		if err := queue.Enqueue(ctx, task); err != nil {
			return fmt.Errorf("failed to enqueue submission for report %d: %w", evt.ReportID, err)
		}
		return nil
	}
}

// Register subscribes the enqueue handler on d
func Register(d dispatcher.Dispatcher, queue port.TaskQueue) {
	d.SubscribeNamed(event.TypeReportSent, HandlerName, EnqueueOnSend(queue))
}

package dispatcher

import (
	"context"

	"github.com/garyjia/fieldwork-reports/internal/domain/event"
)

// Handler reacts to a report event. Handlers run on the synchronous path
// share the caller's transaction through ctx.
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a subscription
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}

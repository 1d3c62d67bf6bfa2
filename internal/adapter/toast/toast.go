// Package toast implements a notifier.Notifier that renders in-app toasts by
// broadcasting over the WebSocket hub. The actual widget lives in the client;
// this adapter only delivers the instruction to show it.
package toast

import (
	"context"

	"github.com/lexhq/tasktrack/internal/adapter/ws"
	"github.com/lexhq/tasktrack/internal/port/broadcast"
	"github.com/lexhq/tasktrack/internal/port/notifier"
)

const providerName = "toast"

// Notifier broadcasts toast.show events to all connected clients.
type Notifier struct {
	hub broadcast.Broadcaster
}

// NewNotifier creates a toast notifier backed by the given broadcaster.
func NewNotifier(hub broadcast.Broadcaster) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{
		RichFormatting: false,
		Actions:        true,
	}
}

// Send broadcasts the toast instruction. Broadcasting is fire-and-forget;
// a client-side render failure never surfaces here, which keeps UI-layer
// failures isolated from task state.
func (n *Notifier) Send(ctx context.Context, notification notifier.Notification) error {
	if n.hub == nil {
		return notifier.ErrNotConfigured
	}

	n.hub.BroadcastEvent(ctx, ws.EventToastShow, ws.ToastEvent{
		Title:       notification.Title,
		Message:     notification.Message,
		Level:       notification.Level,
		TaskID:      notification.TaskID,
		ActionLabel: notification.ActionLabel,
	})
	return nil
}

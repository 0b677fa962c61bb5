package notification

import (
	"context"

	"bizgrid.org/internal/obs"
)

// Alerter is the optional platform alert surface. Implementations must be
// best-effort: Alert may be dropped, never blocks the feed mutation.
type Alerter interface {
	// RequestPermission asks the platform for alert permission and reports
	// whether it was granted.
	RequestPermission(ctx context.Context) bool
	// Alert displays a system-level notification.
	Alert(ctx context.Context, title, body string)
}

// LogAlerter emits alerts as structured log lines. It is the default surface
// in server deployments, where no native notification capability exists.
type LogAlerter struct{}

var _ Alerter = LogAlerter{}

func (LogAlerter) RequestPermission(ctx context.Context) bool { return true }

func (LogAlerter) Alert(ctx context.Context, title, body string) {
	obs.Log("info", "platform alert", map[string]any{
		"title": title,
		"body":  body,
	})
}

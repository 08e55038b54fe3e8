package bus

import (
	"context"
	"log/slog"
)

// LogBus is a Bus that only logs; it never connects anywhere. It exists so
// the agent can run with BUS_URL unset (local testing, dry runs) without
// every caller special-casing a nil Bus.
type LogBus struct{}

// NewLogBus constructs a LogBus.
func NewLogBus() *LogBus { return &LogBus{} }

// Subscribe returns a channel that is never written to and closes when ctx
// is cancelled.
func (LogBus) Subscribe(ctx context.Context) (<-chan ControlMessage, error) {
	out := make(chan ControlMessage)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

// SendAlert logs the alert instead of publishing it.
func (LogBus) SendAlert(alert Alert) error {
	slog.Info("bus(log): alert", "subtype", alert.Subtype, "title", alert.Title, "text", alert.Text)
	return nil
}

// SetReady logs the readiness transition.
func (LogBus) SetReady(ready bool) {
	slog.Info("bus(log): ready", "ready", ready)
}

// Close is a no-op.
func (LogBus) Close() error { return nil }

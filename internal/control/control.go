// Package control drives the agent's control plane: it consumes inbound
// bus commands targeted at this microphone, acknowledges them, and applies
// the ones it recognizes to the shared duration/calibration parameters.
package control

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/alcazar-iot/yeti-audio-agent/internal/bus"
	"github.com/alcazar-iot/yeti-audio-agent/internal/config"
	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
)

// Acknowledger reports a consumed command back onto the bus. Kept narrow
// so control does not need to depend on the full notify.Emitter surface.
type Acknowledger interface {
	NotifyAck(messageID, command string) error
}

// Stage implements suture.Service. It subscribes to the bus and dispatches
// every control message addressed to targetID.
type Stage struct {
	bus      bus.Bus
	targetID string
	params   *config.SharedParameters
	ack      Acknowledger
}

// New constructs a control-plane Stage. ack may be nil, in which case
// acknowledgements are simply not sent.
func New(b bus.Bus, targetID string, params *config.SharedParameters, ack Acknowledger) *Stage {
	return &Stage{bus: b, targetID: targetID, params: params, ack: ack}
}

// Serve subscribes to the bus and dispatches messages until ctx is
// cancelled or the subscription ends.
func (s *Stage) Serve(ctx context.Context) error {
	msgs, err := s.bus.Subscribe(ctx)
	if err != nil {
		return util.WrapError("subscribe to control bus", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			if msg.TargetID != "" && msg.TargetID != s.targetID {
				continue
			}
			s.handle(msg)
		}
	}
}

func (s *Stage) handle(msg bus.ControlMessage) {
	if s.ack != nil {
		if err := s.ack.NotifyAck(msg.ID, msg.Command); err != nil {
			slog.Warn("control: acknowledgement failed", "error", err)
		}
	}

	switch msg.Command {
	case "calibrate":
		s.params.SetCalibration(true)
	case "duration":
		s.handleDuration(msg.Value)
	case "multiplier":
		s.handleMultiplier(msg.Value)
	default:
		slog.Warn("control: unknown command, ignoring", "command", msg.Command)
	}
}

func (s *Stage) handleDuration(rawValue string) {
	value, ok := parseTruncated(rawValue)
	if !ok {
		slog.Warn("control: duration command has invalid value", "value", rawValue)
		return
	}
	if value <= 0 {
		slog.Warn("control: duration command value must be positive", "value", value)
		return
	}
	if value == s.params.ClipDurationSeconds() {
		slog.Warn("control: duration command matches current value, ignoring", "value", value)
		return
	}
	s.params.SetClipDuration(value)
	s.params.UpdateEffectiveDuration(value)
}

func (s *Stage) handleMultiplier(rawValue string) {
	value, ok := parseTruncated(rawValue)
	if !ok {
		slog.Warn("control: multiplier command has invalid value", "value", rawValue)
		return
	}
	if value == s.params.SamplingMultiplier() {
		slog.Warn("control: multiplier command matches current value, ignoring", "value", value)
		return
	}
	s.params.SetSamplingMultiplier(value)
	s.params.UpdateEffectiveDuration(s.params.ClipDurationSeconds())
}

// parseTruncated parses raw as a float64 and truncates it to 3 decimal
// places without rounding.
func parseTruncated(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return util.Truncate3(f), true
}

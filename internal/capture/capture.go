// Package capture drives the two external encoder children through
// repeated fixed-duration segments and feeds the results into the hash
// stage's input queue.
package capture

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/alcazar-iot/yeti-audio-agent/internal/config"
	"github.com/alcazar-iot/yeti-audio-agent/internal/queue"
	"github.com/alcazar-iot/yeti-audio-agent/internal/transcoder"
	"github.com/alcazar-iot/yeti-audio-agent/internal/types"
	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
)

// Stage implements suture.Service. It owns the Streamer and Listener
// encoder handles and is the sole producer onto the hash stage's queue.
type Stage struct {
	streamer *transcoder.Handle
	listener *transcoder.Handle

	settings       types.AudioSettings
	streamerParams transcoder.StreamerParams
	format         string

	params *config.SharedParameters
	out    *queue.Queue[types.CaptureRecord]

	// ConstrainEncoders is called once per segment, after the record is
	// enqueued. Supervisor-owned; nil is a valid no-op.
	ConstrainEncoders func()
}

// New constructs a capture Stage.
func New(
	streamer, listener *transcoder.Handle,
	settings types.AudioSettings,
	streamerParams transcoder.StreamerParams,
	format string,
	params *config.SharedParameters,
	out *queue.Queue[types.CaptureRecord],
) *Stage {
	return &Stage{
		streamer:       streamer,
		listener:       listener,
		settings:       settings,
		streamerParams: streamerParams,
		format:         format,
		params:         params,
		out:            out,
	}
}

// Serve starts the Streamer once, then drives the Listener through
// fixed-duration segments until ctx is cancelled. It implements
// suture.Service: an error return triggers the supervisor's restart logic
// with the stage's state naturally reset (both handles stopped).
func (s *Stage) Serve(ctx context.Context) error {
	if err := s.streamer.Start(transcoder.StreamerArgs(s.settings, s.streamerParams)); err != nil {
		return util.WrapError("start streamer", err)
	}
	defer func() {
		if err := s.streamer.Stop(); err != nil {
			slog.Warn("capture: streamer stop failed", "error", err)
		}
	}()

	if !sleepCtx(ctx, types.StreamerWarmup) {
		return ctx.Err()
	}

	// Seed the working duration from whatever is currently configured;
	// later iterations only refresh it when duration_dirty is set, so the
	// stage needs its own running value to fall back on between
	// control-plane updates.
	currentDuration := s.params.ReadAndClearDirty().EffectiveDuration

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		snap := s.params.ReadAndClearDirty()
		if snap.Dirty {
			currentDuration = snap.EffectiveDuration
		}

		duration := currentDuration
		calibrating := false
		if s.params.Calibration() {
			calibrating = true
			duration = types.CalibrationDuration.Seconds()
		}

		if err := s.runSegment(ctx, duration, calibrating); err != nil {
			slog.Error("capture: segment failed, continuing", "error", err)
		}

		if calibrating {
			s.params.ClearCalibration()
		}

		if s.ConstrainEncoders != nil {
			s.ConstrainEncoders()
		}
	}
}

// runSegment executes exactly one record/enqueue cycle. Failures are
// logged and swallowed by the caller; the loop must not terminate on a
// recoverable per-segment error.
func (s *Stage) runSegment(ctx context.Context, durationSecs float64, calibrating bool) error {
	clipPath, err := s.listener.NextClipPath(s.format)
	if err != nil {
		return util.WrapError("pick next clip path", err)
	}

	startTS := time.Now()
	if err := s.listener.Start(transcoder.ListenerArgs(s.settings, transcoder.ListenerParams{
		ClipPath:     clipPath,
		DurationSecs: durationSecs,
		Format:       s.format,
	})); err != nil {
		return util.WrapError("start listener", err)
	}

	waitSegment(ctx, s.listener, durationSecs)

	if err := s.listener.Stop(); err != nil {
		slog.Warn("capture: listener stop failed", "error", err)
	}
	endTS := time.Now()
	s.listener.ClearCurrentClip()

	if _, err := os.Stat(clipPath); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("capture: clip missing after segment, skipping enqueue", "path", clipPath)
			return nil
		}
		return util.WrapError("stat completed clip", err)
	}

	s.out.Push(types.CaptureRecord{
		Path:        clipPath,
		StartTS:     startTS,
		EndTS:       endTS,
		Calibration: calibrating,
	})
	return nil
}

// waitSegment blocks until durationSecs has elapsed, the listener exits on
// its own, or ctx is cancelled.
func waitSegment(ctx context.Context, listener *transcoder.Handle, durationSecs float64) {
	deadline := time.Now().Add(time.Duration(durationSecs * float64(time.Second)))
	ticker := time.NewTicker(types.SegmentPollInterval)
	defer ticker.Stop()

	done := listener.Done()
	for {
		if time.Now().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

// sleepCtx sleeps for d or returns early (false) if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

package control

import (
	"context"
	"testing"
	"time"

	"github.com/alcazar-iot/yeti-audio-agent/internal/bus"
	"github.com/alcazar-iot/yeti-audio-agent/internal/config"
)

type fakeBus struct {
	ch chan bus.ControlMessage
}

func newFakeBus() *fakeBus { return &fakeBus{ch: make(chan bus.ControlMessage, 4)} }

func (f *fakeBus) Subscribe(ctx context.Context) (<-chan bus.ControlMessage, error) {
	return f.ch, nil
}
func (f *fakeBus) SendAlert(alert bus.Alert) error { return nil }
func (f *fakeBus) SetReady(ready bool)             {}
func (f *fakeBus) Close() error                    { close(f.ch); return nil }

type fakeAck struct {
	ids      []string
	commands []string
}

func (f *fakeAck) NotifyAck(messageID, command string) error {
	f.ids = append(f.ids, messageID)
	f.commands = append(f.commands, command)
	return nil
}

func runServeUntil(t *testing.T, s *Stage, send func(chan<- bus.ControlMessage), fb *fakeBus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	send(fb.ch)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
}

func TestHandleCalibrateSetsFlag(t *testing.T) {
	fb := newFakeBus()
	params := config.NewSharedParameters(30)
	ack := &fakeAck{}
	s := New(fb, "mic-0", params, ack)

	runServeUntil(t, s, func(ch chan<- bus.ControlMessage) {
		ch <- bus.ControlMessage{ID: "m1", TargetID: "mic-0", Command: "calibrate"}
	}, fb)

	if !params.Calibration() {
		t.Error("expected calibration flag to be set")
	}
	if len(ack.ids) != 1 || ack.ids[0] != "m1" || ack.commands[0] != "calibrate" {
		t.Errorf("got ack %+v, want one ack for m1/calibrate", ack)
	}
}

func TestHandleDurationUpdatesEffectiveDuration(t *testing.T) {
	fb := newFakeBus()
	params := config.NewSharedParameters(30)
	s := New(fb, "mic-0", params, nil)

	runServeUntil(t, s, func(ch chan<- bus.ControlMessage) {
		ch <- bus.ControlMessage{ID: "m2", TargetID: "mic-0", Command: "duration", Value: "15.5"}
	}, fb)

	snap := params.ReadAndClearDirty()
	if !snap.Dirty {
		t.Fatal("expected duration update to mark dirty")
	}
	if snap.ClipDurationSeconds != 15.5 {
		t.Errorf("ClipDurationSeconds = %v, want 15.5", snap.ClipDurationSeconds)
	}
}

func TestHandleDurationRejectsNonPositive(t *testing.T) {
	fb := newFakeBus()
	params := config.NewSharedParameters(30)
	s := New(fb, "mic-0", params, nil)

	runServeUntil(t, s, func(ch chan<- bus.ControlMessage) {
		ch <- bus.ControlMessage{ID: "m3", TargetID: "mic-0", Command: "duration", Value: "-5"}
	}, fb)

	if params.ClipDurationSeconds() != 30 {
		t.Errorf("ClipDurationSeconds = %v, want unchanged 30", params.ClipDurationSeconds())
	}
}

func TestHandleMultiplierUpdatesAndRecomputes(t *testing.T) {
	fb := newFakeBus()
	params := config.NewSharedParameters(30)
	s := New(fb, "mic-0", params, nil)

	runServeUntil(t, s, func(ch chan<- bus.ControlMessage) {
		ch <- bus.ControlMessage{ID: "m4", TargetID: "mic-0", Command: "multiplier", Value: "2.0"}
	}, fb)

	if params.SamplingMultiplier() != 2.0 {
		t.Errorf("SamplingMultiplier = %v, want 2.0", params.SamplingMultiplier())
	}
	snap := params.ReadAndClearDirty()
	if snap.EffectiveDuration != 60 {
		t.Errorf("EffectiveDuration = %v, want 60", snap.EffectiveDuration)
	}
}

func TestHandleUnknownCommandIgnored(t *testing.T) {
	fb := newFakeBus()
	params := config.NewSharedParameters(30)
	s := New(fb, "mic-0", params, nil)

	runServeUntil(t, s, func(ch chan<- bus.ControlMessage) {
		ch <- bus.ControlMessage{ID: "m5", TargetID: "mic-0", Command: "reboot"}
	}, fb)

	if params.ClipDurationSeconds() != 30 || params.Calibration() {
		t.Error("unknown command must not change any parameter")
	}
}

func TestHandleIgnoresMessageForOtherTarget(t *testing.T) {
	fb := newFakeBus()
	params := config.NewSharedParameters(30)
	s := New(fb, "mic-0", params, nil)

	runServeUntil(t, s, func(ch chan<- bus.ControlMessage) {
		ch <- bus.ControlMessage{ID: "m6", TargetID: "mic-1", Command: "calibrate"}
	}, fb)

	if params.Calibration() {
		t.Error("message targeted at a different component must be ignored")
	}
}

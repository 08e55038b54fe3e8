package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alcazar-iot/yeti-audio-agent/internal/bus"
	"github.com/alcazar-iot/yeti-audio-agent/internal/types"
)

type fakeBus struct {
	alerts []bus.Alert
	ready  []bool
}

func (f *fakeBus) Subscribe(ctx context.Context) (<-chan bus.ControlMessage, error) {
	return nil, nil
}
func (f *fakeBus) SendAlert(alert bus.Alert) error {
	f.alerts = append(f.alerts, alert)
	return nil
}
func (f *fakeBus) SetReady(ready bool) { f.ready = append(f.ready, ready) }
func (f *fakeBus) Close() error        { return nil }

func TestNotifyUploadSetsCalibrationTitle(t *testing.T) {
	fb := &fakeBus{}
	e := New(fb, "Studio A", 0, nil)

	rec := types.UploadRecord{
		Path:        "/data/abc123.wav",
		HexHash:     "abc123",
		SizeBytes:   4096,
		StartTS:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		EndTS:       time.Date(2026, 1, 2, 3, 4, 35, 0, time.UTC),
		Calibration: true,
	}
	if err := e.NotifyUpload(rec); err != nil {
		t.Fatalf("NotifyUpload: %v", err)
	}
	if len(fb.alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(fb.alerts))
	}
	a := fb.alerts[0]
	if a.Title != "Microphone Calibration CDN Hash" {
		t.Errorf("Title = %q, want calibration title", a.Title)
	}
	if a.Text != "abc123.wav" {
		t.Errorf("Text = %q, want basename", a.Text)
	}
	if a.Details["SHA1"] != "abc123" {
		t.Errorf("Details[SHA1] = %v, want abc123", a.Details["SHA1"])
	}
}

func TestNotifyUploadNonCalibrationTitle(t *testing.T) {
	fb := &fakeBus{}
	e := New(fb, "Studio A", 0, nil)
	if err := e.NotifyUpload(types.UploadRecord{Path: "/data/x.wav"}); err != nil {
		t.Fatalf("NotifyUpload: %v", err)
	}
	if fb.alerts[0].Title != "Microphone CDN Hash" {
		t.Errorf("Title = %q, want non-calibration title", fb.alerts[0].Title)
	}
}

func TestNotifyAckReferencesMessageID(t *testing.T) {
	fb := &fakeBus{}
	e := New(fb, "Studio A", 0, nil)
	if err := e.NotifyAck("msg-42", "duration"); err != nil {
		t.Fatalf("NotifyAck: %v", err)
	}
	a := fb.alerts[0]
	if a.RefID != "msg-42" || a.Text != "duration" {
		t.Errorf("got %+v, want RefID=msg-42 Text=duration", a)
	}
}

func TestNotifyFatalSkipsEmailWhenUnconfigured(t *testing.T) {
	fb := &fakeBus{}
	e := New(fb, "Studio A", 0, nil)
	e.NotifyFatal("upload stage died", "too many consecutive failures")
	if len(fb.alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(fb.alerts))
	}
}

func TestEmailConfigIsConfigured(t *testing.T) {
	var cfg EmailConfig
	if cfg.IsConfigured() {
		t.Error("expected empty config to be unconfigured")
	}
	cfg = EmailConfig{Host: "smtp.example.com", Username: "bot@example.com", Recipients: "ops@example.com"}
	if !cfg.IsConfigured() {
		t.Error("expected fully specified config to be configured")
	}
}

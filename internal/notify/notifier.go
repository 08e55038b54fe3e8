// Package notify emits the agent's outbound alerts onto the bus and
// optionally escalates fatal conditions over SMTP.
package notify

import (
	"path/filepath"

	"github.com/alcazar-iot/yeti-audio-agent/internal/bus"
	"github.com/alcazar-iot/yeti-audio-agent/internal/types"
	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
)

const (
	uploadSeverity = 5
	ackSeverity    = 6
	fatalSeverity  = 9
	defaultConf    = 2
)

// Emitter is the Notification Emitter component. It is the sole writer
// onto the bus for alerts, and optionally escalates fatal conditions by
// email when SMTP is configured.
type Emitter struct {
	bus      bus.Bus
	room     string
	micNum   int
	emailCfg *EmailConfig // nil if SMTP escalation is not configured
}

// New constructs an Emitter. emailCfg may be nil.
func New(b bus.Bus, room string, micNum int, emailCfg *EmailConfig) *Emitter {
	return &Emitter{bus: b, room: room, micNum: micNum, emailCfg: emailCfg}
}

// NotifyUpload implements uploadstage.Notifier: emits the per-upload status
// alert.
func (e *Emitter) NotifyUpload(rec types.UploadRecord) error {
	title := "Microphone CDN Hash"
	if rec.Calibration {
		title = "Microphone Calibration CDN Hash"
	}

	alert := bus.Alert{
		Subtype:    "Status",
		Severity:   uploadSeverity,
		Confidence: defaultConf,
		Title:      title,
		Text:       filepath.Base(rec.Path),
		Details: map[string]any{
			"startTime":        types.FormatTimestamp(rec.StartTS),
			"endTime":          types.FormatTimestamp(rec.EndTS),
			"SHA1":             rec.HexHash,
			"fileSize":         rec.SizeBytes,
			"Room":             e.room,
			"microphone":       e.micNum,
			"calibration_flag": rec.Calibration,
		},
	}
	if err := e.bus.SendAlert(alert); err != nil {
		return util.WrapError("send upload alert", err)
	}
	return nil
}

// NotifyAck acknowledges a consumed control message, referencing its id
// and the command string.
func (e *Emitter) NotifyAck(messageID, command string) error {
	alert := bus.Alert{
		Subtype:    "Acknowledgement",
		Severity:   ackSeverity,
		Confidence: defaultConf,
		Title:      "Microphone Command Acknowledged",
		Text:       command,
		RefID:      messageID,
	}
	if err := e.bus.SendAlert(alert); err != nil {
		return util.WrapError("send ack alert", err)
	}
	return nil
}

// NotifyFatal reports a fatal stage condition on the bus and, if SMTP is
// configured, escalates by email. Both paths are best-effort: a failure is
// logged, never returned, since a fatal-condition notifier that itself
// blocks shutdown would defeat the purpose.
func (e *Emitter) NotifyFatal(subject, body string) {
	alert := bus.Alert{
		Subtype:    "Status",
		Severity:   fatalSeverity,
		Confidence: defaultConf,
		Title:      "Microphone Fatal Condition",
		Text:       subject,
		Details:    map[string]any{"body": body, "Room": e.room, "microphone": e.micNum},
	}
	util.NotifyResultf(
		func() error { return e.bus.SendAlert(alert) },
		"Fatal bus alert",
		true,
	)

	if e.emailCfg == nil || !e.emailCfg.IsConfigured() {
		return
	}
	util.NotifyResultf(
		func() error { return SendFatalAlert(*e.emailCfg, subject, body) },
		"Fatal email",
		true,
	)
}

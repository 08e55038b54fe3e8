// Package types provides shared type definitions used across the agent.
package types

import "time"

// EncoderRole identifies which of the two encoder children a handle wraps.
type EncoderRole string

const (
	RoleStreamer EncoderRole = "streamer"
	RoleListener EncoderRole = "listener"
)

// EncoderState represents the lifecycle state of one encoder child.
type EncoderState string

const (
	StateStopped   EncoderState = "stopped"
	StateStreaming EncoderState = "streaming" // Streamer only
	StateRecording EncoderState = "recording" // Listener only
)

// IsValid returns true if the EncoderState is a known valid value.
func (s EncoderState) IsValid() bool {
	switch s {
	case StateStopped, StateStreaming, StateRecording:
		return true
	}
	return false
}

// SensorState tracks the whole-agent state machine.
type SensorState string

const (
	StateInitializing     SensorState = "initializing"
	StateActivated        SensorState = "activated"
	StateStreamingOverall SensorState = "streaming"
	StateRecordingOverall SensorState = "recording"
	StateCalibrating      SensorState = "calibrating"
	StateChangingDuration SensorState = "changing_duration"
	StateDeactivated      SensorState = "deactivated"
)

// Retry, timing and invariant constants.
const (
	InitialRetryDelay       = 3 * time.Second
	MaxRetryDelay           = 60 * time.Second
	MaxUploadFailures       = 4 // consecutive CDN failures before the upload stage exits fatally
	MaxEncoderInstances     = 2 // Streamer + Listener process-count invariant
	StreamerWarmup          = 3 * time.Second
	CalibrationDuration     = 31 * time.Second
	SegmentPollInterval     = 100 * time.Millisecond
	StopPollInterval        = 200 * time.Millisecond
	StopPollTicksBeforeKill = 5 // ~1s soft limit before escalating to a kill signal
	StageJoinTimeout        = 5 * time.Second
	DefaultSamplingMultiplier = 1.036
	DiskUsageWarnPercent      = 90.0
	DiskUsageCriticalPercent  = 95.0
	StrayOutputCapBytes       = 20000 // nohup.out growth cap
)

// AudioSettings is an immutable value rendered into encoder command lines.
type AudioSettings struct {
	InputMRL     string // microphone / streamer input
	LoopbackMRL  string // loopback RTP URL the Listener reads from
	Codec        string // STREAM_ACODEC
	Channels     int    // 1..8
	SampleRateHz int
	BitrateKbps  int
}

// CaptureRecord is the Q1 element produced by the Capture Stage.
type CaptureRecord struct {
	Path        string
	StartTS     time.Time
	EndTS       time.Time
	Calibration bool
}

// UploadRecord is the Q2 element produced by the Hash Stage.
type UploadRecord struct {
	Path        string
	SizeBytes   int64
	HexHash     string
	StartTS     time.Time
	EndTS       time.Time
	Calibration bool
}

// FormatTimestamp renders t as UTC, millisecond-truncated RFC3339.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

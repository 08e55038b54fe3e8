package config

import (
	"sync"

	"github.com/alcazar-iot/yeti-audio-agent/internal/types"
	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
)

// SharedParameters holds the mutable, lock-protected values the control
// plane writes and the capture stage reads. Two independent locks guard
// two independent concerns: Duration for clip_duration_seconds/
// sampling_multiplier/effective_duration/duration_dirty, Calibration for
// calibration_flag.
type SharedParameters struct {
	durationMu sync.Mutex
	clipDurationSeconds float64
	samplingMultiplier  float64
	effectiveDuration   float64
	durationDirty       bool

	calibrationMu sync.Mutex
	calibrationFlag bool
}

// NewSharedParameters constructs parameters seeded from the base clip
// duration, with the default sampling multiplier applied.
func NewSharedParameters(clipDurationSeconds float64) *SharedParameters {
	p := &SharedParameters{
		clipDurationSeconds: clipDurationSeconds,
		samplingMultiplier:  types.DefaultSamplingMultiplier,
	}
	p.effectiveDuration = util.Truncate3(clipDurationSeconds * p.samplingMultiplier)
	return p
}

// DurationSnapshot is a point-in-time read of the duration-related fields.
type DurationSnapshot struct {
	ClipDurationSeconds float64
	SamplingMultiplier  float64
	EffectiveDuration   float64
	Dirty               bool
}

// ReadAndClearDirty returns the current duration snapshot and clears the
// dirty flag.
func (p *SharedParameters) ReadAndClearDirty() DurationSnapshot {
	p.durationMu.Lock()
	defer p.durationMu.Unlock()
	snap := DurationSnapshot{
		ClipDurationSeconds: p.clipDurationSeconds,
		SamplingMultiplier:  p.samplingMultiplier,
		EffectiveDuration:   p.effectiveDuration,
		Dirty:               p.durationDirty,
	}
	p.durationDirty = false
	return snap
}

// ClipDurationSeconds returns the current base clip length.
func (p *SharedParameters) ClipDurationSeconds() float64 {
	p.durationMu.Lock()
	defer p.durationMu.Unlock()
	return p.clipDurationSeconds
}

// SamplingMultiplier returns the current sampling multiplier.
func (p *SharedParameters) SamplingMultiplier() float64 {
	p.durationMu.Lock()
	defer p.durationMu.Unlock()
	return p.samplingMultiplier
}

// UpdateEffectiveDuration assigns effective_duration =
// truncate(next * sampling_multiplier, 3) and marks duration_dirty. It
// does not change clip_duration_seconds itself; callers that are changing
// the base duration must also set it first via SetClipDuration.
func (p *SharedParameters) UpdateEffectiveDuration(next float64) {
	p.durationMu.Lock()
	defer p.durationMu.Unlock()
	p.effectiveDuration = util.Truncate3(next * p.samplingMultiplier)
	p.durationDirty = true
}

// SetClipDuration sets clip_duration_seconds without touching
// duration_dirty; the caller follows up with UpdateEffectiveDuration.
func (p *SharedParameters) SetClipDuration(seconds float64) {
	p.durationMu.Lock()
	defer p.durationMu.Unlock()
	p.clipDurationSeconds = seconds
}

// SetSamplingMultiplier sets sampling_multiplier without touching
// duration_dirty; the caller follows up with UpdateEffectiveDuration.
func (p *SharedParameters) SetSamplingMultiplier(multiplier float64) {
	p.durationMu.Lock()
	defer p.durationMu.Unlock()
	p.samplingMultiplier = multiplier
}

// SetCalibration sets the calibration flag under CalibrationLock.
func (p *SharedParameters) SetCalibration(on bool) {
	p.calibrationMu.Lock()
	defer p.calibrationMu.Unlock()
	p.calibrationFlag = on
}

// Calibration returns the current calibration flag.
func (p *SharedParameters) Calibration() bool {
	p.calibrationMu.Lock()
	defer p.calibrationMu.Unlock()
	return p.calibrationFlag
}

// ClearCalibration clears the calibration flag under CalibrationLock.
func (p *SharedParameters) ClearCalibration() {
	p.calibrationMu.Lock()
	defer p.calibrationMu.Unlock()
	p.calibrationFlag = false
}

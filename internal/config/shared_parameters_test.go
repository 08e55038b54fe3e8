package config

import "testing"

func TestNewSharedParametersComputesEffectiveDuration(t *testing.T) {
	p := NewSharedParameters(30)
	snap := p.ReadAndClearDirty()
	want := 30 * 1.036
	if snap.EffectiveDuration != want {
		t.Errorf("EffectiveDuration = %v, want %v", snap.EffectiveDuration, want)
	}
	if snap.Dirty {
		t.Error("fresh parameters should not be dirty")
	}
}

func TestUpdateEffectiveDurationMarksDirtyAndTruncates(t *testing.T) {
	p := NewSharedParameters(30)
	p.ReadAndClearDirty() // clear initial state

	p.SetClipDuration(10)
	p.UpdateEffectiveDuration(10)

	snap := p.ReadAndClearDirty()
	if !snap.Dirty {
		t.Error("expected dirty flag to be set before the read that clears it")
	}
	if got, want := snap.EffectiveDuration, 10.360; got != want {
		t.Errorf("EffectiveDuration = %v, want %v", got, want)
	}

	again := p.ReadAndClearDirty()
	if again.Dirty {
		t.Error("dirty flag should be cleared after the first read")
	}
}

func TestCalibrationFlagLifecycle(t *testing.T) {
	p := NewSharedParameters(30)
	if p.Calibration() {
		t.Fatal("calibration flag should start false")
	}
	p.SetCalibration(true)
	if !p.Calibration() {
		t.Fatal("expected calibration flag set")
	}
	p.ClearCalibration()
	if p.Calibration() {
		t.Fatal("expected calibration flag cleared")
	}
}

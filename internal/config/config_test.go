package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("ROOM", "")
	t.Setenv("STREAM_RTP_PORT", "")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Room != DefaultRoom {
		t.Errorf("Room = %q, want %q", s.Room, DefaultRoom)
	}
	if s.RTPPort != DefaultRTPPort {
		t.Errorf("RTPPort = %d, want %d", s.RTPPort, DefaultRTPPort)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("ROOM", "StudioA")
	t.Setenv("STREAM_CHANNELS", "1")
	t.Setenv("RECORDING_FORMAT", "WAV")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Room != "StudioA" {
		t.Errorf("Room = %q, want StudioA", s.Room)
	}
	if s.Channels != 1 {
		t.Errorf("Channels = %d, want 1", s.Channels)
	}
	if s.RecordingFormat != "wav" {
		t.Errorf("RecordingFormat = %q, want lowercased wav", s.RecordingFormat)
	}
}

func TestLoadReadsClipDurationAndAudioInput(t *testing.T) {
	t.Setenv("RECORDING_DURATION", "45.5")
	t.Setenv("AUDIO_INPUT", "hw:1")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.ClipDurationSeconds != 45.5 {
		t.Errorf("ClipDurationSeconds = %v, want 45.5", s.ClipDurationSeconds)
	}
	if s.AudioInput != "hw:1" {
		t.Errorf("AudioInput = %q, want hw:1", s.AudioInput)
	}
}

func TestLoadInvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("MIC_NUM", "not-a-number")

	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.MicNum != DefaultMicNum {
		t.Errorf("MicNum = %d, want default %d", s.MicNum, DefaultMicNum)
	}
}

package transcoder

import (
	"strings"
	"testing"

	"github.com/alcazar-iot/yeti-audio-agent/internal/types"
)

func TestStreamerArgsDuplicatesToBothDestinations(t *testing.T) {
	settings := types.AudioSettings{
		InputMRL:     "hw:Microphone",
		Codec:        "MPGA",
		Channels:     2,
		SampleRateHz: 44100,
		BitrateKbps:  256,
	}
	args := StreamerArgs(settings, StreamerParams{
		Name:         "YetiAudioStreamer_0",
		DestAddr:     "239.255.12.42",
		DestPort:     1234,
		LoopbackAddr: "127.0.0.1",
		LoopbackPort: 1234,
		LoopbackName: "loopback_0",
	})

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "239.255.12.42:1234") {
		t.Errorf("expected multicast destination in args: %v", args)
	}
	if !strings.Contains(joined, "127.0.0.1:1234") {
		t.Errorf("expected loopback destination in args: %v", args)
	}
	last := args[len(args)-1]
	if !strings.Contains(last, "|") {
		t.Errorf("expected tee muxer to separate destinations with '|', got %q", last)
	}
}

func TestListenerArgsTargetsClipPath(t *testing.T) {
	settings := types.AudioSettings{LoopbackMRL: "rtp://127.0.0.1:1234"}
	args := ListenerArgs(settings, ListenerParams{
		ClipPath:     "/tmp/output0.wav",
		DurationSecs: 10.36,
		Format:       "wav",
	})
	if args[len(args)-1] != "/tmp/output0.wav" {
		t.Errorf("expected clip path as final arg, got %v", args)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "10.360") {
		t.Errorf("expected duration rendered in args: %v", args)
	}
}

package transcoder

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/alcazar-iot/yeti-audio-agent/internal/types"
)

// DefaultExecutable is the external transcoder binary name. ffmpeg is the
// concrete encoder this agent targets.
const DefaultExecutable = "ffmpeg"

// StreamerParams are the role-specific inputs for rendering the Streamer's
// command line.
type StreamerParams struct {
	Name         string // e.g. YetiAudioStreamer_<n>
	DestAddr     string
	DestPort     int
	LoopbackAddr string
	LoopbackPort int
	LoopbackName string // e.g. loopback_<n>
}

// StreamerArgs renders the Streamer's argument vector: read InputMRL,
// transcode per AudioSettings, and duplicate the RTP output to both the
// public multicast destination and the local loopback the Listener reads
// from. "tee" is ffmpeg's duplicate-output muxer, the idiomatic equivalent
// of the original encoder's duplicate{} module.
func StreamerArgs(a types.AudioSettings, p StreamerParams) []string {
	rtpDest := fmt.Sprintf("[f=rtp]rtp://%s:%d?pkt_size=1316", p.DestAddr, p.DestPort)
	loopDest := fmt.Sprintf("[f=rtp]rtp://%s:%d?pkt_size=1316", p.LoopbackAddr, p.LoopbackPort)
	return []string{
		"-nostdin",
		"-f", alsaInputFormat(),
		"-i", a.InputMRL,
		"-map", "0:a",
		"-c:a", ffmpegCodec(a.Codec),
		"-b:a", strconv.Itoa(a.BitrateKbps) + "k",
		"-ar", strconv.Itoa(a.SampleRateHz),
		"-ac", strconv.Itoa(a.Channels),
		"-f", "tee",
		rtpDest + "|" + loopDest,
	}
}

// ListenerParams are the role-specific inputs for rendering the Listener's
// command line.
type ListenerParams struct {
	ClipPath     string
	DurationSecs float64
	Format       string // container extension, e.g. "wav"
}

// ListenerArgs renders the Listener's argument vector: read the loopback
// RTP stream and write exactly one fixed-duration clip to ClipPath, then
// exit on its own (the "-t" duration flag) without the Encoder Handle
// needing to signal completion.
func ListenerArgs(a types.AudioSettings, p ListenerParams) []string {
	return []string{
		"-nostdin",
		"-i", a.LoopbackMRL,
		"-t", strconv.FormatFloat(p.DurationSecs, 'f', 3, 64),
		"-c:a", "pcm_s16le",
		"-f", listenerContainer(p.Format),
		"-y", p.ClipPath,
	}
}

func ffmpegCodec(acodec string) string {
	switch acodec {
	case "MPGA", "mpga", "mp3":
		return "libmp3lame"
	default:
		return "pcm_s16le"
	}
}

// alsaInputFormat returns the ffmpeg input demuxer for the local
// microphone device on this platform.
func alsaInputFormat() string {
	if runtime.GOOS == "darwin" {
		return "avfoundation"
	}
	return "alsa"
}

func listenerContainer(format string) string {
	if format == "" {
		return "wav"
	}
	return format
}

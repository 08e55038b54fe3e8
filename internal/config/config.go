// Package config provides application configuration management: the
// once-at-startup environment settings and the SharedParameters record
// mutated by the control plane and read by the capture stage.
package config

import (
	"cmp"
	"os"
	"strconv"
	"strings"
)

// Static configuration defaults.
const (
	DefaultRoom             = "UnknownRoom"
	DefaultMicNum           = 0
	DefaultRecordingSeconds = 30.0
	DefaultRTPAddr          = "239.255.12.42"
	DefaultRTPPort          = 1234
	DefaultLoopAddr         = "127.0.0.1"
	DefaultLoopPort         = 1234
	DefaultRecordingFormat  = "wav"
	DefaultVerboseLevel     = 0
	DefaultProtocol         = "RTP"
	DefaultAcodec           = "MPGA"
	DefaultChannels         = 2
	DefaultSampleRate       = 44100
	DefaultBitrate          = 256
	DefaultCDNHost          = "localhost"
	DefaultCDNPort          = 8080
)

// Static holds the environment-derived settings that are read once at
// startup and never change for the lifetime of the process.
type Static struct {
	Room   string
	MicNum int

	RTPAddr  string
	RTPPort  int
	LoopAddr string
	LoopPort int

	AudioInput          string // explicit ALSA/avfoundation device; "" autodetects
	ClipDurationSeconds float64

	RecordingFormat string // lowercased container extension
	VerboseLevel    int
	Protocol        string
	Acodec          string
	Channels        int
	SampleRateHz    int
	BitrateKbps     int

	CDNHost string
	CDNPort int
	DryRun  bool

	WorkDir string

	// Optional C2 bus transport (internal/bus); empty means LogBus fallback.
	BusURL string

	// Optional operator-escalation email, supplementing the bus notification
	// path for Fatal conditions.
	EmailSMTPHost   string
	EmailSMTPPort   int
	EmailFromName   string
	EmailUsername   string
	EmailPassword   string
	EmailRecipients string
}

// Load reads Static configuration from environment variables, applying
// the defaults above.
func Load() (Static, error) {
	s := Static{
		Room:                getEnvString("ROOM", DefaultRoom),
		MicNum:              getEnvInt("MIC_NUM", DefaultMicNum),
		RTPAddr:             getEnvString("STREAM_RTP_ADDR", DefaultRTPAddr),
		RTPPort:             getEnvInt("STREAM_RTP_PORT", DefaultRTPPort),
		LoopAddr:            getEnvString("STREAM_LOOP_ADDR", DefaultLoopAddr),
		LoopPort:            getEnvInt("STREAM_LOOP_PORT", DefaultLoopPort),
		AudioInput:          os.Getenv("AUDIO_INPUT"),
		ClipDurationSeconds: getEnvFloat("RECORDING_DURATION", DefaultRecordingSeconds),
		RecordingFormat:     strings.ToLower(getEnvString("RECORDING_FORMAT", DefaultRecordingFormat)),
		VerboseLevel:        getEnvInt("STREAM_VERBOSE_LEVEL", DefaultVerboseLevel),
		Protocol:            getEnvString("STREAM_PROTOCOL", DefaultProtocol),
		Acodec:              getEnvString("STREAM_ACODEC", DefaultAcodec),
		Channels:            getEnvInt("STREAM_CHANNELS", DefaultChannels),
		SampleRateHz:        getEnvInt("STREAM_SAMPLERATE", DefaultSampleRate),
		BitrateKbps:         getEnvInt("STREAM_BITRATE", DefaultBitrate),
		CDNHost:             getEnvString("CDNURL", DefaultCDNHost),
		CDNPort:             getEnvInt("CDNPORT", DefaultCDNPort),
		DryRun:              getEnvBool("DRY_RUN", false),
		WorkDir:             getEnvString("WORK_DIR", "."),
		BusURL:              os.Getenv("BUS_URL"),
		EmailSMTPHost:       os.Getenv("EMAIL_SMTP_HOST"),
		EmailSMTPPort:       getEnvInt("EMAIL_SMTP_PORT", 587),
		EmailFromName:       getEnvString("EMAIL_FROM_NAME", "Yeti Audio Agent"),
		EmailUsername:       os.Getenv("EMAIL_USERNAME"),
		EmailPassword:       os.Getenv("EMAIL_PASSWORD"),
		EmailRecipients:     os.Getenv("EMAIL_RECIPIENTS"),
	}
	return s, nil
}

func getEnvString(key, def string) string {
	return cmp.Or(os.Getenv(key), def)
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

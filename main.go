// Yeti audio agent captures microphone audio in fixed-duration clips,
// hashes and uploads them to a CDN, and reports status and alerts over an
// optional control bus.
//
// Usage:
//
//	yeti-audio-agent
//
// All configuration is read from the environment; see internal/config.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"github.com/alcazar-iot/yeti-audio-agent/internal/bus"
	"github.com/alcazar-iot/yeti-audio-agent/internal/config"
	"github.com/alcazar-iot/yeti-audio-agent/internal/notify"
	"github.com/alcazar-iot/yeti-audio-agent/internal/supervisor"
	"github.com/alcazar-iot/yeti-audio-agent/internal/transcoder"
	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
)

// restartDelay is how long main waits before rebuilding the pipeline after
// a non-shutdown failure, so a persistently failing dependency (e.g. a
// missing microphone) doesn't spin the CPU.
const restartDelay = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return
	}

	var b bus.Bus
	if cfg.BusURL != "" {
		b = bus.NewWSBus(cfg.BusURL)
	} else {
		b = bus.NewLogBus()
	}
	defer b.Close()

	var emailCfg *notify.EmailConfig
	if cfg.EmailSMTPHost != "" {
		emailCfg = &notify.EmailConfig{
			Host:       cfg.EmailSMTPHost,
			Port:       cfg.EmailSMTPPort,
			FromName:   cfg.EmailFromName,
			Username:   cfg.EmailUsername,
			Password:   cfg.EmailPassword,
			Recipients: cfg.EmailRecipients,
		}
	}
	notifier := notify.New(b, cfg.Room, cfg.MicNum, emailCfg)

	if _, err := exec.LookPath(transcoder.DefaultExecutable); err != nil {
		slog.Error("required external encoder dependency not found", "executable", transcoder.DefaultExecutable, "error", err)
		notifier.NotifyFatal("missing transcoder dependency", err.Error())
		os.Exit(2)
	}

	slog.Info("yeti-audio-agent starting", "room", cfg.Room, "mic", cfg.MicNum)

	for ctx.Err() == nil {
		sv := supervisor.New(cfg, b, notifier)
		err := sv.Run(ctx)
		if ctx.Err() != nil {
			break
		}
		slog.Error("pipeline exited, restarting", "error", err, "delay", restartDelay)
		select {
		case <-ctx.Done():
		case <-time.After(restartDelay):
		}
	}

	slog.Info("yeti-audio-agent stopped")
}

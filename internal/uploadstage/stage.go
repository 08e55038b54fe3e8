// Package uploadstage drains finalized recordings, posts them to the CDN,
// verifies placement, and reports the outcome.
package uploadstage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alcazar-iot/yeti-audio-agent/internal/queue"
	"github.com/alcazar-iot/yeti-audio-agent/internal/types"
	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
)

// ErrTooManyConsecutiveFailures is returned by Serve once four consecutive
// network failures have occurred in this process's lifetime. The
// supervisor treats it as a fatal condition rather than restarting the
// stage.
var ErrTooManyConsecutiveFailures = errors.New("uploadstage: too many consecutive network failures")

// Notifier reports a successfully verified upload to the notification
// emitter (component G). Kept as a narrow interface so uploadstage does
// not need to depend on the bus package directly.
type Notifier interface {
	NotifyUpload(rec types.UploadRecord) error
}

// Stage implements suture.Service, draining Q2.
type Stage struct {
	in      *queue.Queue[types.UploadRecord]
	cdn     CDNClient
	notify  Notifier
	dryRun  bool
	workDir string // for disk-usage checks

	backoff             *util.Backoff
	consecutiveFailures int
}

// New constructs an upload Stage. notifier may be nil, in which case
// successful uploads are simply not announced.
func New(in *queue.Queue[types.UploadRecord], cdn CDNClient, notifier Notifier, dryRun bool, workDir string) *Stage {
	return &Stage{
		in:      in,
		cdn:     cdn,
		notify:  notifier,
		dryRun:  dryRun,
		workDir: workDir,
		backoff: util.NewBackoff(types.InitialRetryDelay, types.MaxRetryDelay),
	}
}

// Serve drains Q2 until ctx is cancelled or the consecutive-failure limit
// is reached.
func (s *Stage) Serve(ctx context.Context) error {
	for {
		rec, ok := s.in.Pop(ctx)
		if !ok {
			return ctx.Err()
		}

		err := s.process(ctx, rec)
		switch {
		case err == nil:
			continue
		case errors.Is(err, ErrTooManyConsecutiveFailures):
			slog.Error("uploadstage: giving up after repeated network failures", "error", err)
			return err
		case errors.Is(err, ErrCDNUnreachable):
			delay := s.backoff.Next()
			slog.Warn("uploadstage: network failure, backing off", "delay", delay, "error", err)
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
		default:
			slog.Error("uploadstage: item failed, continuing", "error", err)
		}
	}
}

// process uploads, verifies, and cleans up a single record.
func (s *Stage) process(ctx context.Context, rec types.UploadRecord) error {
	if s.dryRun {
		if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
			return util.WrapError("dry-run remove clip", err)
		}
		slog.Info("uploadstage: dry-run, simulated upload", "path", rec.Path)
		return nil
	}

	id, err := s.cdn.Upload(ctx, rec.Path)
	if err != nil {
		if !errors.Is(err, ErrCDNUnreachable) {
			return util.WrapError("upload clip", err)
		}
		return s.handleNetworkFailure(rec, err)
	}

	if id != rec.HexHash {
		slog.Error("uploadstage: sha mismatch, dropping record", "local", rec.HexHash, "remote", id, "path", rec.Path)
		return nil
	}

	status, err := s.cdn.Verify(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrCDNUnreachable) {
			return util.WrapError("verify clip", err)
		}
		return s.handleNetworkFailure(rec, err)
	}

	if status != http.StatusOK {
		slog.Warn("uploadstage: verify returned unexpected status", "status", status, "path", rec.Path)
		s.checkDiskUsage()
		return nil
	}

	if err := os.Remove(rec.Path); err != nil {
		slog.Warn("uploadstage: failed to remove uploaded clip", "path", rec.Path, "error", err)
	}
	if s.notify != nil {
		if err := s.notify.NotifyUpload(rec); err != nil {
			slog.Warn("uploadstage: notify failed", "error", err)
		}
	}

	s.consecutiveFailures = 0
	s.backoff.Reset(types.InitialRetryDelay)
	return nil
}

// handleNetworkFailure re-heads rec onto Q2 and tracks the consecutive
// failure count.
func (s *Stage) handleNetworkFailure(rec types.UploadRecord, cause error) error {
	s.in.Rehead(rec)
	s.consecutiveFailures++
	if s.consecutiveFailures >= types.MaxUploadFailures {
		return fmt.Errorf("%w (last cause: %v)", ErrTooManyConsecutiveFailures, cause)
	}
	return fmt.Errorf("%w: %v", ErrCDNUnreachable, cause)
}

// checkDiskUsage logs a warning or critical condition once usage crosses
// the configured thresholds. A statfs failure (e.g. unsupported platform)
// is logged on each call and otherwise ignored.
func (s *Stage) checkDiskUsage() {
	pct, err := util.DiskUsedPercent(s.workDir)
	if err != nil {
		slog.Warn("uploadstage: disk usage check unavailable", "error", err)
		return
	}
	switch {
	case pct >= types.DiskUsageCriticalPercent:
		slog.Error("uploadstage: disk usage critical", "percent", pct)
	case pct >= types.DiskUsageWarnPercent:
		slog.Warn("uploadstage: disk usage high", "percent", pct)
	}
}

// sleepCtx sleeps for d or returns early (false) if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Package transcoder wraps the external audio-transcoder subprocess that
// the agent invokes in two roles (Streamer, Listener). The transcoder
// binary itself is an opaque external dependency; this package only
// manages its lifecycle and renders its command line.
package transcoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/alcazar-iot/yeti-audio-agent/internal/types"
	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
)

// ErrAlreadyRunning is returned by Start when the handle's state is not
// Stopped.
var ErrAlreadyRunning = errors.New("transcoder: already running")

// Handle wraps exactly one external encoder child, in either the Streamer
// or Listener role.
type Handle struct {
	name       string
	role       types.EncoderRole
	executable string
	workDir    string

	mu          sync.Mutex
	state       types.EncoderState
	cmd         *exec.Cmd
	cancel      context.CancelFunc
	stderr      *util.BoundedBuffer
	resolvedPID int  // disambiguated PID, resolved at least once per start
	pidResolved bool
	exited      chan struct{} // closed by the monitor goroutine once cmd.Wait() returns
	waitErr     error

	currentClipName string // Listener only
}

// New creates a Handle for the given role.
func New(name string, role types.EncoderRole, executable, workDir string) *Handle {
	return &Handle{
		name:       name,
		role:       role,
		executable: executable,
		workDir:    workDir,
		state:      types.StateStopped,
		stderr:     util.NewStderrBuffer(),
	}
}

// Start spawns the child with the given argument vector. It fails with
// ErrAlreadyRunning if the handle's state is not Stopped.
func (h *Handle) Start(args []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != types.StateStopped {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, h.executable, args...)
	cmd.Dir = h.workDir
	cmd.Stdin = nil
	h.stderr.Reset()
	cmd.Stderr = h.stderr
	cmd.Cancel = func() error {
		return util.GracefulSignal(cmd.Process)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return util.WrapError(fmt.Sprintf("start %s transcoder", h.role), err)
	}

	h.cmd = cmd
	h.cancel = cancel
	h.pidResolved = false
	h.exited = make(chan struct{})
	if h.role == types.RoleStreamer {
		h.state = types.StateStreaming
	} else {
		h.state = types.StateRecording
	}

	// Resolve the true child identity at least once per start, in case a
	// wrapping shell was interposed.
	h.resolvedPID = resolvePID(cmd.Process.Pid, h.executable)
	h.pidResolved = true

	exited := h.exited
	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.waitErr = err
		wasRunning := h.state != types.StateStopped
		h.state = types.StateStopped
		h.mu.Unlock()
		if wasRunning {
			slog.Info("transcoder exited", "name", h.name, "role", h.role, "error", err)
		}
		close(exited)
	}()

	slog.Info("transcoder started", "name", h.name, "role", h.role, "pid", h.resolvedPID)
	return nil
}

// Stop issues a terminate signal, polls liveness, and escalates to a kill
// signal if the child has not exited after a short soft limit. Safe to
// call when already stopped.
func (h *Handle) Stop() error {
	h.mu.Lock()
	cmd := h.cmd
	cancel := h.cancel
	exited := h.exited
	h.mu.Unlock()

	if cmd == nil {
		h.mu.Lock()
		h.state = types.StateStopped
		h.mu.Unlock()
		return nil
	}

	if cmd.Process != nil {
		if err := util.GracefulSignal(cmd.Process); err != nil {
			slog.Warn("graceful signal failed, will escalate to kill", "name", h.name, "error", err)
		}
	}

	stopped := false
	for i := 0; i < types.StopPollTicksBeforeKill; i++ {
		select {
		case <-exited:
			stopped = true
		case <-time.After(types.StopPollInterval):
		}
		if stopped || !h.IsRunning() {
			stopped = true
			break
		}
	}
	if !stopped && cmd.Process != nil {
		slog.Warn("transcoder did not exit gracefully, killing", "name", h.name)
		if err := util.ForceKill(cmd.Process); err != nil {
			slog.Warn("force kill failed", "name", h.name, "error", err)
		}
	}

	if cancel != nil {
		cancel()
	}
	<-exited // the monitor goroutine's cmd.Wait() owns reaping the child

	h.mu.Lock()
	h.cmd = nil
	h.cancel = nil
	h.state = types.StateStopped
	h.mu.Unlock()

	slog.Info("transcoder stopped", "name", h.name, "role", h.role)
	return nil
}

// IsRunning reports liveness without blocking. It does not log; the exit
// of a running child is logged by the monitor goroutine started in Start.
func (h *Handle) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isRunningLocked()
}

// isRunningLocked must be called with h.mu held.
func (h *Handle) isRunningLocked() bool {
	if h.cmd == nil || h.exited == nil {
		return false
	}
	select {
	case <-h.exited:
		return false
	default:
		return true
	}
}

// Done returns a channel that closes once the running child has exited,
// whether from natural completion, Stop, or an external signal. It is nil
// if the handle has never been started. Callers typically select on it
// alongside a context or poll ticker.
func (h *Handle) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exited
}

// ExitErr returns the error from the most recently completed child, if
// any. It is only meaningful after Done() has closed.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitErr
}

// PID returns the disambiguated child identity, or false if not running.
func (h *Handle) PID() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.pidResolved || !h.isRunningLocked() {
		return 0, false
	}
	return h.resolvedPID, true
}

// State returns the handle's current state.
func (h *Handle) State() types.EncoderState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// NextClipPath returns the absolute path for the next temp file using the
// output<N>.<ext> enumeration and remembers it as the current clip.
// Listener-only.
func (h *Handle) NextClipPath(ext string) (string, error) {
	n := 0
	for {
		name := fmt.Sprintf("output%d.%s", n, ext)
		full := filepath.Join(h.workDir, name)
		if _, err := os.Stat(full); os.IsNotExist(err) {
			h.mu.Lock()
			h.currentClipName = name
			h.mu.Unlock()
			return full, nil
		} else if err != nil {
			return "", util.WrapError("stat candidate clip path", err)
		}
		n++
	}
}

// CurrentClipPath returns the absolute path of the clip most recently
// returned by NextClipPath, or "" if none is pending.
func (h *Handle) CurrentClipPath() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.currentClipName == "" {
		return ""
	}
	return filepath.Join(h.workDir, h.currentClipName)
}

// ClearCurrentClip forgets the current clip name.
func (h *Handle) ClearCurrentClip() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentClipName = ""
}

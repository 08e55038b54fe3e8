// Package supervisor wires together the four concurrent stages — Capture,
// Hash, Upload, and the Control Plane — builds their shared state, and
// owns startup/shutdown sequencing and the process-count safety net.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/thejerf/suture/v4"

	"github.com/alcazar-iot/yeti-audio-agent/internal/bus"
	"github.com/alcazar-iot/yeti-audio-agent/internal/capture"
	"github.com/alcazar-iot/yeti-audio-agent/internal/config"
	"github.com/alcazar-iot/yeti-audio-agent/internal/control"
	"github.com/alcazar-iot/yeti-audio-agent/internal/hashstage"
	"github.com/alcazar-iot/yeti-audio-agent/internal/notify"
	"github.com/alcazar-iot/yeti-audio-agent/internal/queue"
	"github.com/alcazar-iot/yeti-audio-agent/internal/transcoder"
	"github.com/alcazar-iot/yeti-audio-agent/internal/types"
	"github.com/alcazar-iot/yeti-audio-agent/internal/uploadstage"
	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
)

// queueCapacity bounds each inter-stage queue. A handful of pending clips
// is normal; a much larger backlog signals a stuck downstream stage.
const queueCapacity = 64

// Supervisor builds and runs one full instance of the four-stage pipeline.
// A fresh Supervisor is constructed for each attempt by the caller's
// restart loop. The handles, queues and shared parameters are built inside
// Run for that attempt only; the fields below are set by New and shared.
type Supervisor struct {
	cfg    config.Static
	bus    bus.Bus
	notify *notify.Emitter
}

// New constructs a Supervisor. b and notifier are shared across restart
// attempts: the bus reconnects internally, and the notifier is stateless.
func New(cfg config.Static, b bus.Bus, notifier *notify.Emitter) *Supervisor {
	return &Supervisor{cfg: cfg, bus: b, notify: notifier}
}

// Run builds one pipeline instance and drives it until ctx is cancelled or
// a stage fails fatally. It always returns after ctx is done or the
// underlying suture.Supervisor gives up; callers that want restart-on-
// failure semantics should call Run again unless ctx.Err() != nil.
func (sv *Supervisor) Run(ctx context.Context) error {
	settings := types.AudioSettings{
		InputMRL:     transcoder.ResolveALSADevice(sv.cfg.AudioInput),
		LoopbackMRL:  fmt.Sprintf("rtp://%s:%d", sv.cfg.LoopAddr, sv.cfg.LoopPort),
		Codec:        sv.cfg.Acodec,
		Channels:     sv.cfg.Channels,
		SampleRateHz: sv.cfg.SampleRateHz,
		BitrateKbps:  sv.cfg.BitrateKbps,
	}
	streamerParams := transcoder.StreamerParams{
		Name:         fmt.Sprintf("YetiAudioStreamer_%d", sv.cfg.MicNum),
		DestAddr:     sv.cfg.RTPAddr,
		DestPort:     sv.cfg.RTPPort,
		LoopbackAddr: sv.cfg.LoopAddr,
		LoopbackPort: sv.cfg.LoopPort,
		LoopbackName: fmt.Sprintf("loopback_%d", sv.cfg.MicNum),
	}

	streamer := transcoder.New(streamerParams.Name, types.RoleStreamer, transcoder.DefaultExecutable, sv.cfg.WorkDir)
	listener := transcoder.New(fmt.Sprintf("YetiAudioListener_%d", sv.cfg.MicNum), types.RoleListener, transcoder.DefaultExecutable, sv.cfg.WorkDir)

	q1 := queue.New[types.CaptureRecord](queueCapacity)
	q2 := queue.New[types.UploadRecord](queueCapacity)
	params := config.NewSharedParameters(sv.cfg.ClipDurationSeconds)

	if err := sweepResidualClips(sv.cfg.WorkDir, sv.cfg.RecordingFormat, q1, q2); err != nil {
		slog.Warn("supervisor: residual sweep failed", "error", err)
	}

	strayOutputPath := filepath.Join(sv.cfg.WorkDir, "nohup.out")
	captureStage := capture.New(streamer, listener, settings, streamerParams, sv.cfg.RecordingFormat, params, q1)
	captureStage.ConstrainEncoders = func() {
		constrainEncoders(streamer, transcoder.DefaultExecutable)
		truncateIfOversized(strayOutputPath)
	}

	hashStage := hashstage.New(sv.cfg.RecordingFormat, q1, q2)

	cdn := uploadstage.NewHTTPCDNClient(fmt.Sprintf("http://%s:%d", sv.cfg.CDNHost, sv.cfg.CDNPort))
	uploadStage := uploadstage.New(q2, cdn, sv.notify, sv.cfg.DryRun, sv.cfg.WorkDir)

	controlStage := control.New(sv.bus, fmt.Sprintf("mic-%d", sv.cfg.MicNum), params, sv.notify)

	sup := suture.New("yeti-audio-agent", suture.Spec{Timeout: types.StageJoinTimeout})
	sup.Add(captureStage)
	sup.Add(hashStage)
	sup.Add(fatalUploadStage{uploadStage})
	sup.Add(controlStage)

	sv.bus.SetReady(true)

	err := sup.Serve(ctx)

	sv.bus.SetReady(false)
	killAllEncoders(transcoder.DefaultExecutable)

	if err != nil && !errors.Is(err, context.Canceled) {
		if sv.notify != nil {
			sv.notify.NotifyFatal("supervisor stopped", err.Error())
		}
	}
	return err
}

// fatalUploadStage terminates the whole suture tree, instead of letting
// suture restart the stage, once the upload stage gives up after repeated
// network failures.
type fatalUploadStage struct{ *uploadstage.Stage }

func (f fatalUploadStage) Serve(ctx context.Context) error {
	err := f.Stage.Serve(ctx)
	if errors.Is(err, uploadstage.ErrTooManyConsecutiveFailures) {
		return suture.ErrTerminateSupervisorTree
	}
	return err
}

// constrainEncoders enforces the single process-count invariant: more than
// MaxEncoderInstances live encoder processes means a leaked Listener from a
// prior segment, killed so the Capture loop can respawn cleanly next
// iteration.
func constrainEncoders(streamer *transcoder.Handle, execName string) {
	pids := transcoder.ListRunning(execName)
	if len(pids) <= types.MaxEncoderInstances {
		return
	}
	slog.Warn("supervisor: too many encoder processes active, purging listeners", "count", len(pids), "max", types.MaxEncoderInstances)
	streamerPID, streamerKnown := streamer.PID()
	for _, pid := range pids {
		if streamerKnown && pid == streamerPID {
			continue
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		if err := util.ForceKill(proc); err != nil {
			slog.Warn("supervisor: failed to kill excess encoder process", "pid", pid, "error", err)
		}
	}
}

// killAllEncoders is the shutdown-time safety net: any encoder process
// still alive after the stages have stopped is killed unconditionally.
func killAllEncoders(execName string) {
	for _, pid := range transcoder.ListRunning(execName) {
		proc, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		if err := util.ForceKill(proc); err != nil {
			slog.Warn("supervisor: shutdown kill failed", "pid", pid, "error", err)
		}
	}
}

// sweepResidualClips recovers clips left behind by a prior crashed run:
// unhashed output<N>.<ext> files are routed through the hash stage,
// already-hashed <sha1>.<ext> files go straight to the upload stage.
// Calibration clips are intentionally left alone.
func sweepResidualClips(workDir, ext string, q1 *queue.Queue[types.CaptureRecord], q2 *queue.Queue[types.UploadRecord]) error {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return util.WrapError("list work dir for residual sweep", err)
	}

	suffix := "." + ext
	found := false
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) || strings.Contains(name, "calibration") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			slog.Warn("supervisor: residual sweep could not stat file", "name", name, "error", err)
			continue
		}
		found = true
		full := filepath.Join(workDir, name)
		endTS := info.ModTime()

		if strings.HasPrefix(name, "output") {
			// TODO: reconstruct StartTS from endTS minus sample-rate-derived
			// clip length once the listener reports actual frame counts;
			// left zero until then.
			q1.Push(types.CaptureRecord{Path: full, EndTS: endTS, Calibration: false})
			continue
		}

		q2.Push(types.UploadRecord{
			Path:        full,
			SizeBytes:   info.Size(),
			HexHash:     strings.TrimSuffix(name, suffix),
			EndTS:       endTS,
			Calibration: false,
		})
	}

	if found {
		slog.Warn("supervisor: residual clips found at startup, queued for posting")
	}
	return nil
}

// truncateIfOversized caps a stray output file's growth, since a
// forked/detached child's redirected stdout/stderr can otherwise grow
// unbounded over the agent's lifetime.
func truncateIfOversized(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.Size() <= types.StrayOutputCapBytes {
		return
	}
	if err := os.Truncate(path, 0); err != nil {
		slog.Warn("supervisor: failed to truncate stray output file", "path", path, "error", err)
	}
}

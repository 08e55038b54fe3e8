package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alcazar-iot/yeti-audio-agent/internal/queue"
	"github.com/alcazar-iot/yeti-audio-agent/internal/types"
)

func TestSweepResidualClipsRoutesByHashState(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "output1.wav"), "unhashed")
	writeFile(t, filepath.Join(dir, "abcdef0123456789.wav"), "hashed")
	writeFile(t, filepath.Join(dir, "calibration_output.wav"), "skip me")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored extension")

	q1 := queue.New[types.CaptureRecord](4)
	q2 := queue.New[types.UploadRecord](4)

	if err := sweepResidualClips(dir, "wav", q1, q2); err != nil {
		t.Fatalf("sweepResidualClips: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rec1, ok := q1.Pop(ctx)
	if !ok {
		t.Fatalf("expected one record on the hash queue")
	}
	if filepath.Base(rec1.Path) != "output1.wav" {
		t.Errorf("hash-queue record = %q, want output1.wav", rec1.Path)
	}
	if rec1.Calibration {
		t.Errorf("residual output clip marked calibration")
	}

	rec2, ok := q2.Pop(ctx)
	if !ok {
		t.Fatalf("expected one record on the upload queue")
	}
	if rec2.HexHash != "abcdef0123456789" {
		t.Errorf("upload-queue record HexHash = %q, want abcdef0123456789", rec2.HexHash)
	}
}

func TestSweepResidualClipsNoMatches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "calibration_ref.wav"), "skip me")

	q1 := queue.New[types.CaptureRecord](4)
	q2 := queue.New[types.UploadRecord](4)

	if err := sweepResidualClips(dir, "wav", q1, q2); err != nil {
		t.Fatalf("sweepResidualClips: %v", err)
	}
	if q1.Len() != 0 || q2.Len() != 0 {
		t.Errorf("expected no queued records, got q1=%d q2=%d", q1.Len(), q2.Len())
	}
}

func TestTruncateIfOversizedLeavesSmallFileAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nohup.out")
	writeFile(t, path, "small")

	truncateIfOversized(path)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Errorf("small file was truncated")
	}
}

func TestTruncateIfOversizedTruncatesLargeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nohup.out")
	big := make([]byte, types.StrayOutputCapBytes+1)
	writeFile(t, path, string(big))

	truncateIfOversized(path)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("oversized file size = %d, want 0", info.Size())
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Package hashstage drains capture records, fingerprints each clip by
// SHA-1, and renames it to its hash before handing it to the upload stage.
package hashstage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alcazar-iot/yeti-audio-agent/internal/queue"
	"github.com/alcazar-iot/yeti-audio-agent/internal/types"
	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
)

// Stage implements suture.Service, draining in off Q1 and producing onto
// Q2.
type Stage struct {
	ext string
	in  *queue.Queue[types.CaptureRecord]
	out *queue.Queue[types.UploadRecord]
}

// New constructs a hash Stage. ext is the recording format's file
// extension (e.g. "wav"), used to name the hashed file.
func New(ext string, in *queue.Queue[types.CaptureRecord], out *queue.Queue[types.UploadRecord]) *Stage {
	return &Stage{ext: ext, in: in, out: out}
}

// Serve drains Q1 until ctx is cancelled.
func (s *Stage) Serve(ctx context.Context) error {
	for {
		rec, ok := s.in.Pop(ctx)
		if !ok {
			return ctx.Err()
		}
		if err := s.process(rec); err != nil {
			slog.Error("hashstage: item failed, continuing", "path", rec.Path, "error", err)
		}
	}
}

// process hashes the clip, renames it to its digest, and pushes the
// resulting upload record.
func (s *Stage) process(rec types.CaptureRecord) error {
	digest, err := hashFile(rec.Path)
	if err != nil {
		return util.WrapError("hash clip", err)
	}

	finalPath := filepath.Join(filepath.Dir(rec.Path), fmt.Sprintf("%s.%s", digest, s.ext))
	if err := os.Rename(rec.Path, finalPath); err != nil {
		return util.WrapError("rename clip to hash name", err)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return util.WrapError("stat renamed clip", err)
	}

	s.out.Push(types.UploadRecord{
		Path:        finalPath,
		SizeBytes:   info.Size(),
		HexHash:     digest,
		StartTS:     rec.StartTS,
		EndTS:       rec.EndTS,
		Calibration: rec.Calibration,
	})
	return nil
}

// hashFile returns the lowercase hex SHA-1 digest of path's full contents.
// The CDN expects clips named by their SHA-1 digest; the algorithm isn't
// chosen for any cryptographic property.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer util.SafeClose(f, path)

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

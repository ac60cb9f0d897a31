package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"purple/internal/speech"
	"purple/pkg/audioconv"
)

// Replay is a Source that plays recorded clips instead of the microphone,
// one clip per capture, in name order. Once the clips run out every capture
// times out.
type Replay struct {
	mu    sync.Mutex
	files []string
}

func NewReplay(dir string) (*Replay, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read replay dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || !slices.Contains(audioconv.Extensions, ext) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)

	log.Info("Replaying clips", "dir", dir, "count", len(files))
	return &Replay{files: files}, nil
}

func (r *Replay) Calibrate(context.Context, time.Duration) error { return nil }

func (r *Replay) Capture(ctx context.Context, wait, phraseLimit time.Duration) ([]float32, error) {
	r.mu.Lock()
	if len(r.files) == 0 {
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
			return nil, speech.ErrTimeout
		}
	}
	path := r.files[0]
	r.files = r.files[1:]
	r.mu.Unlock()

	limit := int(phraseLimit.Seconds() * SampleRate)
	pcm, err := audioconv.DecodeFile(path, limit)
	if err != nil {
		return nil, err
	}
	log.Debug("Replayed clip", "path", path, "samples", len(pcm))
	return pcm, nil
}

func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purple/internal/speech"
)

func frame(level float32) []float32 {
	f := make([]float32, frameSize)
	for i := range f {
		if i%2 == 0 {
			f[i] = level
		} else {
			f[i] = -level
		}
	}
	return f
}

func feedUntilDone(d *detector, frames ...[]float32) int {
	for i, f := range frames {
		if d.feed(f) {
			return i + 1
		}
	}
	return -1
}

func repeat(f []float32, n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = f
	}
	return out
}

func TestDetectorTimesOutOnSilence(t *testing.T) {
	d := newDetector(0.05, 200*time.Millisecond, time.Second)

	n := feedUntilDone(d, repeat(frame(0.01), 50)...)
	assert.Equal(t, 10, n)
	assert.Nil(t, d.pcm())
}

func TestDetectorEndsAfterTrailingSilence(t *testing.T) {
	d := newDetector(0.05, time.Second, 10*time.Second)

	frames := append(repeat(frame(0.01), 3), repeat(frame(0.3), 5)...)
	frames = append(frames, repeat(frame(0.01), 100)...)

	n := feedUntilDone(d, frames...)
	// 3 quiet, 5 loud, then 30 quiet frames of trailing silence
	assert.Equal(t, 38, n)
	assert.Len(t, d.pcm(), (3+5+30)*frameSize)
}

func TestDetectorPhraseLimit(t *testing.T) {
	d := newDetector(0.05, time.Second, 100*time.Millisecond)

	n := feedUntilDone(d, repeat(frame(0.3), 50)...)
	assert.Equal(t, 5, n)
	assert.Len(t, d.pcm(), 5*frameSize)
}

func TestDetectorPreRollIsBounded(t *testing.T) {
	d := newDetector(0.05, 10*time.Second, 40*time.Millisecond)

	frames := append(repeat(frame(0.01), 40), repeat(frame(0.3), 2)...)
	feedUntilDone(d, frames...)
	assert.Len(t, d.pcm(), (preRoll+2)*frameSize)
}

func TestAmbientThreshold(t *testing.T) {
	assert.Equal(t, minThreshold, ambient(0))
	assert.InDelta(t, 0.15, ambient(0.1), 1e-9)
	assert.Equal(t, minThreshold, newDetector(0, time.Second, time.Second).threshold)
}

func TestReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "01-hello.wav")

	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, SampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: SampleRate},
		Data:           make([]int, SampleRate),
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	r, err := NewReplay(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Remaining())

	ctx := context.Background()
	pcm, err := r.Capture(ctx, time.Second, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, pcm, SampleRate/2)

	_, err = r.Capture(ctx, 10*time.Millisecond, time.Second)
	assert.ErrorIs(t, err, speech.ErrTimeout)
}

func TestReplayMissingDir(t *testing.T) {
	_, err := NewReplay(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

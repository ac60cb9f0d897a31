package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"purple/internal/speech"
	"purple/pkg/audioconv"
)

// Microphone reads the default input device through portaudio.
type Microphone struct {
	mu        sync.Mutex
	threshold float64
}

func NewMicrophone() *Microphone { return &Microphone{threshold: minThreshold} }

func (m *Microphone) Init() error {
	return portaudio.Initialize()
}

func (m *Microphone) Close() {
	portaudio.Terminate()
}

// Calibrate samples the room for d and raises the speech threshold above
// its noise floor.
func (m *Microphone) Calibrate(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		sum    float64
		frames int
	)
	err := m.stream(ctx, func(frame []float32) bool {
		sum += audioconv.RMS(frame)
		frames++
		return time.Duration(frames)*frameDur >= d
	})
	if err != nil {
		return err
	}

	if frames > 0 {
		m.threshold = ambient(sum / float64(frames))
	}
	log.Debug("Calibrated", "threshold", m.threshold)
	return nil
}

func (m *Microphone) Capture(ctx context.Context, wait, phraseLimit time.Duration) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	det := newDetector(m.threshold, wait, phraseLimit)
	if err := m.stream(ctx, det.feed); err != nil {
		return nil, err
	}

	pcm := det.pcm()
	if len(pcm) == 0 {
		return nil, speech.ErrTimeout
	}
	return pcm, nil
}

// stream feeds 20ms frames to fn until it returns true or ctx ends.
func (m *Microphone) stream(ctx context.Context, fn func([]float32) bool) error {
	buf := make([]float32, frameSize)

	s, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer s.Close()

	if err := s.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	defer s.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Read(); err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		frame := make([]float32, len(buf))
		copy(frame, buf)
		if fn(frame) {
			return nil
		}
	}
}

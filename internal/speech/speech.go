package speech

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"
)

var (
	// ErrTimeout means no speech started within the capture bound.
	ErrTimeout = errors.New("no speech within timeout")
	// ErrUnintelligible means audio was captured but decoded to nothing.
	ErrUnintelligible = errors.New("speech unintelligible")
	// ErrServiceUnavailable means the recognition backend failed.
	ErrServiceUnavailable = errors.New("recognition service unavailable")
)

// Source captures mono 16 kHz float32 PCM.
type Source interface {
	Calibrate(ctx context.Context, d time.Duration) error
	// Capture waits at most wait for speech to start (ErrTimeout otherwise)
	// and records at most phraseLimit once it has.
	Capture(ctx context.Context, wait, phraseLimit time.Duration) ([]float32, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32, language string) (string, error)
}

type Recognizer interface {
	Listen(ctx context.Context, b Bounds) (string, error)
}

type Speaker interface {
	Speak(text string) error
}

type Bounds struct {
	Calibrate   time.Duration
	Wait        time.Duration
	PhraseLimit time.Duration
	Decode      time.Duration
	Language    string
}

// HotwordBounds are the short per-cycle bounds of the background listener.
func HotwordBounds() Bounds {
	return Bounds{
		Calibrate:   500 * time.Millisecond,
		Wait:        10 * time.Second,
		PhraseLimit: 5 * time.Second,
		Decode:      30 * time.Second,
		Language:    "en",
	}
}

// CommandBounds give the user time for long questions.
func CommandBounds() Bounds {
	return Bounds{
		Calibrate:   500 * time.Millisecond,
		Wait:        60 * time.Second,
		PhraseLimit: 45 * time.Second,
		Decode:      60 * time.Second,
		Language:    "en",
	}
}

// Adapter joins a capture source and a transcriber into a Recognizer.
type Adapter struct {
	Source      Source
	Transcriber Transcriber
}

func (a *Adapter) Listen(ctx context.Context, b Bounds) (string, error) {
	if b.Calibrate > 0 {
		if err := a.Source.Calibrate(ctx, b.Calibrate); err != nil {
			log.Warn("Ambient calibration failed", "err", err)
		}
	}

	pcm, err := a.Source.Capture(ctx, b.Wait, b.PhraseLimit)
	if err != nil {
		return "", err
	}
	if len(pcm) == 0 {
		return "", ErrTimeout
	}

	dctx := ctx
	if b.Decode > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, b.Decode)
		defer cancel()
	}

	text, err := a.Transcriber.Transcribe(dctx, pcm, b.Language)
	if err != nil {
		if errors.Is(err, ErrUnintelligible) || errors.Is(err, ErrServiceUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	text = Normalize(text)
	if text == "" {
		return "", ErrUnintelligible
	}

	return text, nil
}

// Utterance is one unit of recognised or typed input.
type Utterance struct {
	Raw        string
	Normalized string
}

func NewUtterance(raw string) Utterance {
	return Utterance{Raw: raw, Normalized: Normalize(raw)}
}

func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

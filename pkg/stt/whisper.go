// Package stt runs offline speech-to-text with whisper.cpp.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type Options struct {
	Threads       int // <=0 => NumCPU()
	InitialPrompt string
	BeamSize      int // 0 = greedy
}

type Segment struct {
	Text     string
	StartSec float64
	EndSec   float64
}

type Result struct {
	Text     string
	Segments []Segment
	Language string
}

// Transcriber owns one model. Calls are serialized.
type Transcriber struct {
	mu    sync.Mutex
	model whisper.Model
	opt   Options
}

func NewTranscriber(modelPath string, opt Options) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Transcriber{model: m, opt: opt}, nil
}

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// Transcribe returns the cleaned text of pcm, which must be mono 16 kHz.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []float32, language string) (string, error) {
	res, err := t.TranscribePCM(ctx, pcm, language)
	if err != nil {
		return "", err
	}
	return Clean(res.Text), nil
}

func (t *Transcriber) TranscribePCM(ctx context.Context, pcm []float32, language string) (Result, error) {
	if t.model == nil {
		return Result{}, errors.New("nil model")
	}
	if len(pcm) == 0 {
		return Result{}, errors.New("no audio samples provided")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	wctx, err := t.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("new context: %w", err)
	}

	if language == "" {
		language = "auto"
	}
	if err := wctx.SetLanguage(language); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}

	threads := t.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if t.opt.BeamSize > 0 {
		wctx.SetBeamSize(t.opt.BeamSize)
	}
	if t.opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(t.opt.InitialPrompt)
	}

	if err := wctx.Process(pcm, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("process: %w", err)
	}

	var (
		segs  []Segment
		texts []string
	)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("next segment: %w", err)
		}
		segs = append(segs, Segment{Text: s.Text, StartSec: s.Start.Seconds(), EndSec: s.End.Seconds()})
		texts = append(texts, s.Text)
	}

	lang := wctx.DetectedLanguage()
	if lang == "" {
		lang = wctx.Language()
	}

	return Result{Text: strings.Join(texts, " "), Segments: segs, Language: lang}, nil
}

// whisper marks non-speech as [BLANK_AUDIO], (music), *coughs* and so on.
var markerRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\*[^*]*\*`)

// Clean drops non-speech markers and collapses whitespace.
func Clean(text string) string {
	text = markerRe.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

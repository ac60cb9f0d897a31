package assistant

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"strings"
	"time"

	"purple/internal/router"
	"purple/internal/speech"
)

type Mode string

const (
	ModeVoice Mode = "voice"
	ModeText  Mode = "text"
	// ModeAsk prompts for voice or text on start.
	ModeAsk Mode = "ask"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeVoice, ModeText, ModeAsk:
		return m, nil
	default:
		return "", fmt.Errorf("unknown input mode %q", s)
	}
}

type Dispatcher interface {
	Dispatch(ctx context.Context, u speech.Utterance) (router.Decision, router.Outcome, error)
}

// Voice is the assistant's spoken output.
type Voice interface {
	Speak(text string)
	Greet()
}

type Publisher interface {
	Publish(ctx context.Context, kind, content string) error
}

type Ducker interface {
	Duck(ctx context.Context, factor float64, fade time.Duration) error
	Restore(ctx context.Context, fade time.Duration) error
}

type Config struct {
	Mode   Mode
	Bounds speech.Bounds
	// In supplies typed commands, one per line; Out shows prompts.
	In  io.Reader
	Out io.Writer
}

type Option func(*Service)

func WithPublisher(p Publisher) Option { return func(s *Service) { s.bus = p } }

func WithDucker(d Ducker) Option { return func(s *Service) { s.ducker = d } }

// Service runs one assistant session: it greets, then feeds voice or typed
// utterances to the router until an exit decision or cancellation.
type Service struct {
	cfg    Config
	rec    speech.Recognizer
	router Dispatcher
	voice  Voice
	bus    Publisher
	ducker Ducker

	mode  Mode
	lines <-chan string
}

func New(cfg Config, rec speech.Recognizer, d Dispatcher, voice Voice, opts ...Option) *Service {
	if cfg.Mode == "" {
		cfg.Mode = ModeAsk
	}
	if cfg.Bounds == (speech.Bounds{}) {
		cfg.Bounds = speech.CommandBounds()
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}

	s := &Service{cfg: cfg, rec: rec, router: d, voice: voice}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Mode() Mode { return s.mode }

// Run returns nil on an exit decision, on cancellation, and when typed
// input ends in text mode.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.lines = readLines(ctx, s.cfg.In)

	s.voice.Greet()
	s.voice.Speak("You can now speak your commands. Say 'exit' to quit. If voice recognition fails, you can also type commands.")

	s.mode = s.cfg.Mode
	if s.mode == ModeAsk {
		s.mode = s.askMode(ctx)
	}
	if s.mode == ModeVoice && s.rec == nil {
		log.Warn("No recognizer, using text input")
		s.mode = ModeText
	}
	log.Info("Assistant ready", "mode", s.mode)

	for {
		text, err := s.next(ctx)
		switch {
		case ctx.Err() != nil:
			s.voice.Speak("Goodbye boss!")
			return nil
		case errors.Is(err, io.EOF):
			log.Info("Input closed")
			return nil
		case err != nil:
			continue
		}

		if s.switchMode(text) {
			continue
		}

		if s.step(ctx, text) == router.Exit {
			return nil
		}
	}
}

func (s *Service) askMode(ctx context.Context) Mode {
	fmt.Fprintln(s.cfg.Out, "\nOptions:")
	fmt.Fprintln(s.cfg.Out, "1. Voice commands (requires working microphone)")
	fmt.Fprintln(s.cfg.Out, "2. Text commands (recommended if voice doesn't work)")
	fmt.Fprint(s.cfg.Out, "\nEnter '1' or '2', or press Enter for voice (default): ")

	line, err := s.readLine(ctx)
	if err == nil && line == "2" {
		return ModeText
	}
	return ModeVoice
}

func (s *Service) switchMode(text string) bool {
	switch {
	case text == "text" && s.mode == ModeVoice:
		s.mode = ModeText
	case text == "voice" && s.mode == ModeText:
		s.mode = ModeVoice
	default:
		return false
	}
	log.Info("Switched input mode", "mode", s.mode)
	fmt.Fprintf(s.cfg.Out, "Switched to %s input mode.\n", s.mode)
	return true
}

var errRetry = errors.New("retry")

// next yields one normalized utterance.
func (s *Service) next(ctx context.Context) (string, error) {
	if s.mode == ModeText {
		fmt.Fprint(s.cfg.Out, "\nEnter your command: ")
		line, err := s.readLine(ctx)
		if err != nil {
			return "", err
		}
		if line == "" {
			return "", errRetry
		}
		return speech.Normalize(line), nil
	}

	text, err := s.listen(ctx)
	if err == nil {
		return speech.Normalize(text), nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	log.Debug("Voice capture failed", "err", err)
	return s.typedFallback(ctx)
}

func (s *Service) listen(ctx context.Context) (string, error) {
	if s.ducker != nil {
		if err := s.ducker.Duck(ctx, 0.3, 150*time.Millisecond); err != nil {
			log.Debug("Failed to duck", "err", err)
		}
		defer func() {
			if err := s.ducker.Restore(context.WithoutCancel(ctx), 300*time.Millisecond); err != nil {
				log.Debug("Failed to restore", "err", err)
			}
		}()
	}
	return s.rec.Listen(ctx, s.cfg.Bounds)
}

// typedFallback offers one typed line after a failed capture. An empty
// line, or no typed input at all, retries voice.
func (s *Service) typedFallback(ctx context.Context) (string, error) {
	fmt.Fprintln(s.cfg.Out, "\nVoice recognition failed. Options:")
	fmt.Fprintln(s.cfg.Out, "   1. Wait and try speaking again")
	fmt.Fprintln(s.cfg.Out, "   2. Type 'text' to switch to text input")
	fmt.Fprintln(s.cfg.Out, "   3. Type 'test' to test Google opening")
	fmt.Fprint(s.cfg.Out, "\n   Or type command here (press Enter to retry voice): ")

	line, err := s.readLine(ctx)
	switch {
	case errors.Is(err, io.EOF):
		return "", errRetry
	case err != nil:
		return "", err
	}

	switch line = speech.Normalize(line); line {
	case "":
		return "", errRetry
	case "test":
		return "open google", nil
	default:
		return line, nil
	}
}

func (s *Service) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

// step dispatches one utterance. Panics and action errors end the step,
// never the session.
func (s *Service) step(ctx context.Context, text string) (out router.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic", "text", text, "panic", r)
			s.voice.Speak("Sorry boss, there was an error")
			out = router.Continue
		}
	}()

	log.Info("Heard", "text", text)

	d, out, err := s.router.Dispatch(ctx, speech.NewUtterance(text))
	if err != nil {
		log.Warn("Action failed", "rule", d.Rule, "target", d.Target, "err", err)
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, "route", string(d.Rule)); err != nil {
			log.Warn("Failed to publish", "err", err)
		}
	}

	return out
}

// readLines feeds r line by line until EOF or cancellation. A nil reader
// yields a closed channel.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	if r == nil {
		close(lines)
		return lines
	}

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			log.Warn("Failed to read input", "err", err)
		}
	}()

	return lines
}

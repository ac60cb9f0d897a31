package hotword

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"purple/internal/speech"
	"purple/internal/supervisor"
)

const (
	DefaultHotword  = "hello purple"
	DefaultCooldown = 10 * time.Second
	DefaultBackoff  = 5 * time.Second
)

type Launcher interface {
	LaunchOnce(ctx context.Context, sig supervisor.Signature, cmd supervisor.Command) (supervisor.LaunchResult, error)
}

type Config struct {
	Hotword   string
	Signature supervisor.Signature
	Command   supervisor.Command
	Bounds    speech.Bounds
	Cooldown  time.Duration
	Backoff   time.Duration
}

func (c *Config) setDefaults() {
	c.Hotword = speech.Normalize(c.Hotword)
	if c.Hotword == "" {
		c.Hotword = DefaultHotword
	}
	if c.Bounds == (speech.Bounds{}) {
		c.Bounds = speech.HotwordBounds()
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.Signature == "" {
		c.Signature = supervisor.Signature(c.Command.Path)
	}
}

type Option func(*Listener)

// WithChime plays a cue when the hotword is heard.
func WithChime(chime func() error) Option {
	return func(l *Listener) { l.chime = chime }
}

func WithClock(now func() time.Time) Option {
	return func(l *Listener) { l.now = now }
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Listener) { l.sleep = sleep }
}

// Listener waits for the hotword and launches the assistant once per match.
type Listener struct {
	cfg      Config
	rec      speech.Recognizer
	launcher Launcher

	chime func() error
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu            sync.Mutex
	state         State
	cooldownUntil time.Time
	launching     bool
	launches      int
}

func New(cfg Config, rec speech.Recognizer, launcher Launcher, opts ...Option) *Listener {
	cfg.setDefaults()

	l := &Listener{
		cfg:      cfg,
		rec:      rec,
		launcher: launcher,
		now:      time.Now,
		sleep:    sleepCtx,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Run cycles until ctx is cancelled. A single failing cycle never ends it.
func (l *Listener) Run(ctx context.Context) error {
	log.Info("Listening for hotword", "hotword", l.cfg.Hotword)

	for {
		if ctx.Err() != nil {
			log.Info("Hotword listener stopping")
			l.setState(StateIdle)
			return nil
		}

		pause := l.Cycle(ctx)
		if pause <= 0 {
			continue
		}
		if err := l.sleep(ctx, pause); err != nil {
			log.Info("Hotword listener stopping")
			l.setState(StateIdle)
			return nil
		}
	}
}

// Cycle runs one listen, recognise and match step. It returns how long the
// caller should pause before the next cycle.
func (l *Listener) Cycle(ctx context.Context) (pause time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Hotword cycle panicked", "panic", r)
			l.setState(StateRecognitionError)
			pause = l.cfg.Backoff
		}
	}()

	l.setState(StateListening)

	text, err := l.rec.Listen(ctx, l.cfg.Bounds)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return 0
	case errors.Is(err, speech.ErrTimeout):
		log.Debug("No speech heard")
		l.setState(StateTimeout)
		return 0
	case errors.Is(err, speech.ErrUnintelligible):
		log.Debug("Speech not understood")
		l.setState(StateRecognitionError)
		return 0
	case errors.Is(err, speech.ErrServiceUnavailable):
		log.Warn("Speech recognition error", "err", err, "backoff", l.cfg.Backoff)
		l.setState(StateRecognitionError)
		return l.cfg.Backoff
	default:
		log.Error("Hotword cycle failed", "err", err, "backoff", l.cfg.Backoff)
		l.setState(StateRecognitionError)
		return l.cfg.Backoff
	}

	text = speech.Normalize(text)
	log.Debug("Heard", "text", text)

	if !strings.Contains(text, l.cfg.Hotword) {
		return 0
	}

	log.Info("Hotword detected", "hotword", l.cfg.Hotword)
	return l.Trigger(ctx)
}

// Trigger launches the assistant and enters the cooldown whether or not a
// new process was spawned. Inside an active cooldown, or while another
// trigger is launching, it does nothing and returns the time left to wait.
func (l *Listener) Trigger(ctx context.Context) time.Duration {
	l.mu.Lock()
	if l.launching {
		l.mu.Unlock()
		log.Info("Trigger ignored, launch in progress")
		return l.cfg.Cooldown
	}
	if remaining := l.cooldownUntil.Sub(l.now()); remaining > 0 {
		l.mu.Unlock()
		log.Info("Trigger ignored during cooldown", "remaining", remaining)
		return remaining
	}
	l.launching = true
	l.state = StateMatched
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.launching = false
		l.mu.Unlock()
	}()

	if l.chime != nil {
		if err := l.chime(); err != nil {
			log.Warn("Failed to play chime", "err", err)
		}
	}

	res, err := l.launcher.LaunchOnce(ctx, l.cfg.Signature, l.cfg.Command)
	if err != nil {
		log.Error("Failed to launch assistant", "reason", res.Reason, "err", err)
	} else if res.Launched {
		log.Info("Assistant launched", "pid", res.PID)
	}

	l.mu.Lock()
	if res.Launched {
		l.launches++
	}
	l.state = StateCooldown
	l.cooldownUntil = l.now().Add(l.cfg.Cooldown)
	l.mu.Unlock()

	return l.cfg.Cooldown
}

type Status struct {
	State    State
	Cooldown time.Duration
	Launches int
}

func (l *Listener) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := Status{State: l.state, Launches: l.launches}
	if remaining := l.cooldownUntil.Sub(l.now()); remaining > 0 {
		st.Cooldown = remaining
	}
	return st
}

func (l *Listener) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

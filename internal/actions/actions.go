package actions

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/browser"

	"purple/internal/catalog"
	"purple/internal/mixer"
	"purple/internal/router"
	"purple/internal/settings"
	"purple/internal/speech"
	"purple/internal/supervisor"
)

var ErrNotInstalled = errors.New("application not installed")

const (
	DefaultWeatherURL = "https://wttr.in/?format=3"
	closeGrace        = 3 * time.Second
)

type Volume interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Mute(ctx context.Context) error
}

type Terminator interface {
	Terminate(ctx context.Context, names []string, grace time.Duration) (int, error)
}

type Config struct {
	Catalog  *catalog.Catalog
	Store    *settings.Store
	Settings settings.Settings
	Prober   settings.Prober
	// Client is used for the weather report.
	Client     *http.Client
	WeatherURL string
}

type Option func(*Handlers)

func WithTerminator(t Terminator) Option { return func(h *Handlers) { h.procs = t } }

func WithSpawner(s supervisor.Spawner) Option { return func(h *Handlers) { h.spawner = s } }

func WithVolume(v Volume) Option { return func(h *Handlers) { h.volume = v } }

func WithBrowser(open func(url string) error) Option { return func(h *Handlers) { h.openURL = open } }

func WithKeys(send func(ctx context.Context, keys string) error) Option {
	return func(h *Handlers) { h.sendKeys = send }
}

func WithLookPath(look func(file string) (string, error)) Option {
	return func(h *Handlers) { h.lookPath = look }
}

func WithStats(stats func(ctx context.Context) (Stats, error)) Option {
	return func(h *Handlers) { h.stats = stats }
}

func WithClock(now func() time.Time) Option { return func(h *Handlers) { h.now = now } }

// Handlers performs the side effects of routed decisions.
type Handlers struct {
	cfg     Config
	speaker speech.Speaker

	procs    Terminator
	spawner  supervisor.Spawner
	volume   Volume
	openURL  func(string) error
	sendKeys func(ctx context.Context, keys string) error
	lookPath func(string) (string, error)
	stats    func(ctx context.Context) (Stats, error)
	now      func() time.Time
}

var _ router.Actions = (*Handlers)(nil)

func New(cfg Config, speaker speech.Speaker, opts ...Option) *Handlers {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Store == nil {
		cfg.Store = settings.NewStore("")
	}
	if cfg.Settings == nil {
		cfg.Settings = settings.Defaults()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.WeatherURL == "" {
		cfg.WeatherURL = DefaultWeatherURL
	}

	h := &Handlers{
		cfg:      cfg,
		speaker:  speaker,
		procs:    supervisor.New(),
		spawner:  supervisor.DetachedSpawner{},
		volume:   mixer.New(),
		openURL:  browser.OpenURL,
		sendKeys: xdotool,
		lookPath: exec.LookPath,
		stats:    SystemStats,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func xdotool(ctx context.Context, keys string) error {
	return exec.CommandContext(ctx, "xdotool", "key", keys).Run()
}

func (h *Handlers) Speak(text string) {
	log.Info("Purple", "says", text)
	if h.speaker == nil {
		return
	}
	if err := h.speaker.Speak(text); err != nil {
		log.Warn("Failed to speak", "err", err)
	}
}

// Greet speaks the time-of-day greeting and the introduction.
func (h *Handlers) Greet() {
	h.Speak(Greeting(h.now()))
	h.Speak("I am purple, your personal assistant")
}

func Greeting(t time.Time) string {
	part := "Evening"
	switch {
	case t.Hour() < 12:
		part = "Morning"
	case t.Hour() < 18:
		part = "Afternoon"
	}
	return fmt.Sprintf("Good %s boss! It's %s and the time is %s",
		part, strings.ToUpper(t.Weekday().String()), t.Format(time.TimeOnly))
}

func (h *Handlers) Schedule(context.Context) error {
	plan, ok := h.cfg.Catalog.ScheduleFor(h.now().Weekday().String())
	if !ok {
		h.Speak("No schedule found for today")
		return nil
	}
	h.Speak("boss today's schedule is")
	h.Speak(plan)
	return nil
}

func (h *Handlers) Volume(ctx context.Context, op router.VolumeOp) error {
	var (
		err  error
		done string
	)
	switch op {
	case router.VolumeUp:
		err = h.volume.Up(ctx)
		done = "boss your volume increased"
	case router.VolumeDown:
		err = h.volume.Down(ctx)
		done = "boss your volume decreased"
	case router.VolumeMute:
		err = h.volume.Mute(ctx)
		done = "boss your volume muted"
	default:
		return fmt.Errorf("unknown volume op %q", op)
	}
	if err != nil {
		return fmt.Errorf("volume %s: %w", op, err)
	}
	h.Speak(done)
	return nil
}

func (h *Handlers) EnableWeather(ctx context.Context, allowOffline bool) error {
	_, msg := h.cfg.Store.EnableWeather(ctx, h.cfg.Settings, h.cfg.Prober, allowOffline)
	h.Speak(msg)
	return nil
}

// OpenApp starts the first launch candidate found on PATH. A candidate may
// carry arguments ("code --new-window").
func (h *Handlers) OpenApp(_ context.Context, app catalog.App) error {
	h.Speak(fmt.Sprintf("boss your %s is opening", app.Name))

	for _, candidate := range app.Launch {
		argv := strings.Fields(candidate)
		if len(argv) == 0 {
			continue
		}
		path, err := h.lookPath(argv[0])
		if err != nil {
			continue
		}
		pid, err := h.spawner.Spawn(supervisor.Command{Path: path, Args: argv[1:]})
		if err != nil {
			log.Warn("Failed to start application", "app", app.Key, "path", path, "err", err)
			continue
		}
		log.Info("Opened application", "app", app.Key, "pid", pid)
		return nil
	}

	h.Speak("I couldn't find that application")
	return fmt.Errorf("%w: %s", ErrNotInstalled, app.Key)
}

func (h *Handlers) CloseApp(ctx context.Context, app catalog.App) error {
	h.Speak(fmt.Sprintf("boss closing %s", app.Name))

	n, err := h.procs.Terminate(ctx, app.Processes, closeGrace)
	switch {
	case err != nil:
		h.Speak(fmt.Sprintf("I tried to close %s, but couldn't verify it. Please check manually.", app.Name))
		return fmt.Errorf("close %s: %w", app.Key, err)
	case n == 0:
		h.Speak(fmt.Sprintf("%s is not running", app.Name))
	default:
		h.Speak(fmt.Sprintf("%s has been closed", app.Name))
	}
	return nil
}

func (h *Handlers) OpenSite(_ context.Context, site catalog.Site) error {
	h.Speak(fmt.Sprintf("opening your %s", site.Name))
	if err := h.openURL(site.URL); err != nil {
		return fmt.Errorf("open %s: %w", site.URL, err)
	}
	return nil
}

// CloseSite closes the focused browser tab.
func (h *Handlers) CloseSite(ctx context.Context, site catalog.Site) error {
	h.Speak(fmt.Sprintf("boss closing %s", site.Name))
	if err := h.sendKeys(ctx, "ctrl+w"); err != nil {
		return fmt.Errorf("close tab: %w", err)
	}
	h.Speak(fmt.Sprintf("%s tab has been closed", site.Name))
	return nil
}

func SearchURL(term string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(term)
}

func (h *Handlers) Search(_ context.Context, term string) error {
	if err := h.openURL(SearchURL(term)); err != nil {
		h.Speak("Sorry boss, I couldn't open the search")
		return fmt.Errorf("open search: %w", err)
	}
	h.Speak("Opening search for " + term)
	return nil
}

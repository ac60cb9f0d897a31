package router

import (
	"context"
	"errors"
	log "log/slog"
	"strings"

	"purple/internal/catalog"
	"purple/internal/intent"
	"purple/internal/settings"
	"purple/internal/speech"
)

// DefaultThreshold is the classifier confidence that must be exceeded.
const DefaultThreshold = 0.6

type RuleID string

const (
	RuleExit           RuleID = "exit"
	RuleOverride       RuleID = "override"
	RuleSchedule       RuleID = "schedule"
	RuleVolumeUp       RuleID = "volume_up"
	RuleVolumeDown     RuleID = "volume_down"
	RuleVolumeMute     RuleID = "volume_mute"
	RuleWeather        RuleID = "weather"
	RuleCloseApp       RuleID = "close_app"
	RuleCloseSite      RuleID = "close_site"
	RuleOpenApp        RuleID = "open_app"
	RuleOpenSite       RuleID = "open_site"
	RuleSearch         RuleID = "search"
	RuleStatus         RuleID = "system_status"
	RuleDebris         RuleID = "debris"
	RuleChat           RuleID = "chat"
	RuleFallbackSearch RuleID = "fallback_search"
	RuleSilent         RuleID = "silent"
)

type Outcome int

const (
	Continue Outcome = iota
	Exit
)

type VolumeOp string

const (
	VolumeUp   VolumeOp = "up"
	VolumeDown VolumeOp = "down"
	VolumeMute VolumeOp = "mute"
)

// Actions are the side effects a decision can trigger.
type Actions interface {
	Speak(text string)
	Schedule(ctx context.Context) error
	Volume(ctx context.Context, op VolumeOp) error
	Weather(ctx context.Context) error
	EnableWeather(ctx context.Context, allowOffline bool) error
	OpenApp(ctx context.Context, app catalog.App) error
	CloseApp(ctx context.Context, app catalog.App) error
	OpenSite(ctx context.Context, site catalog.Site) error
	CloseSite(ctx context.Context, site catalog.Site) error
	Search(ctx context.Context, term string) error
	SystemStatus(ctx context.Context) error
}

type Config struct {
	Catalog    *catalog.Catalog
	Settings   settings.Settings
	Classifier intent.Classifier
	Intents    *intent.Intents
	Threshold  float64
	// StayAfterSearch keeps the session open after a search was opened.
	StayAfterSearch bool
}

// Decision is the single winning rule for an utterance.
type Decision struct {
	Rule   RuleID
	Target string
	Term   string
	Reply  string

	run func(ctx context.Context) (Outcome, error)
}

func (d Decision) Run(ctx context.Context) (Outcome, error) {
	if d.run == nil {
		return Continue, nil
	}
	return d.run(ctx)
}

type rule struct {
	id    RuleID
	match func(ctx context.Context, u speech.Utterance) (Decision, bool)
}

// Router resolves utterances through an ordered rule table; the first
// matching rule wins and later rules are never evaluated.
type Router struct {
	cfg     Config
	actions Actions
	rules   []rule

	classifierDown bool
}

func New(cfg Config, actions Actions) *Router {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Settings == nil {
		cfg.Settings = settings.Defaults()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Classifier == nil {
		cfg.Classifier = intent.Unavailable{}
	}

	r := &Router{cfg: cfg, actions: actions}
	r.rules = r.table()
	return r
}

func (r *Router) table() []rule {
	return []rule{
		{RuleExit, r.matchExit},
		{RuleOverride, r.matchOverride},
		{RuleSchedule, r.fixed(RuleSchedule, []string{"your timetable", "my schedule", "schedule"}, r.schedule)},
		{RuleVolumeUp, r.fixed(RuleVolumeUp, []string{"volume up", "increase the volume"}, r.volume(VolumeUp))},
		{RuleVolumeDown, r.fixed(RuleVolumeDown, []string{"volume down", "decrease the volume"}, r.volume(VolumeDown))},
		{RuleVolumeMute, r.fixed(RuleVolumeMute, []string{"volume mute", "mute the sound"}, r.volume(VolumeMute))},
		{RuleWeather, r.matchWeather},
		{RuleCloseApp, r.matchCloseApp},
		{RuleCloseSite, r.matchCloseSite},
		{RuleOpenApp, r.matchOpenApp},
		{RuleOpenSite, r.matchOpenSite},
		{RuleSearch, r.matchSearch},
		{RuleStatus, r.matchStatus},
		{RuleDebris, r.matchDebris},
		{RuleChat, r.matchClassifier},
	}
}

// Route picks exactly one decision for u.
func (r *Router) Route(ctx context.Context, u speech.Utterance) Decision {
	for _, rl := range r.rules {
		if d, ok := rl.match(ctx, u); ok {
			log.Debug("Routed", "rule", d.Rule, "text", u.Normalized)
			return d
		}
	}
	return silent()
}

// Dispatch routes u and runs the winning handler.
func (r *Router) Dispatch(ctx context.Context, u speech.Utterance) (Decision, Outcome, error) {
	d := r.Route(ctx, u)
	out, err := d.Run(ctx)
	return d, out, err
}

func silent() Decision {
	return Decision{Rule: RuleSilent}
}

var closingVerbs = []string{"close", "stop", "exit"}

func (r *Router) matchExit(_ context.Context, u speech.Utterance) (Decision, bool) {
	if !catalog.ContainsWord(u.Normalized, "exit") && !catalog.ContainsWord(u.Normalized, "quit") {
		return Decision{}, false
	}
	return Decision{Rule: RuleExit, run: func(context.Context) (Outcome, error) {
		r.actions.Speak("Goodbye boss!")
		return Exit, nil
	}}, true
}

const overridePhrase = "hello purple"

func (r *Router) matchOverride(_ context.Context, u speech.Utterance) (Decision, bool) {
	if !strings.Contains(u.Normalized, overridePhrase) {
		return Decision{}, false
	}
	return Decision{Rule: RuleOverride, run: func(ctx context.Context) (Outcome, error) {
		return Continue, r.actions.EnableWeather(ctx, true)
	}}, true
}

func (r *Router) fixed(id RuleID, phrases []string, act func(ctx context.Context) error) func(context.Context, speech.Utterance) (Decision, bool) {
	return func(_ context.Context, u speech.Utterance) (Decision, bool) {
		if !containsAnyPhrase(u.Normalized, phrases) {
			return Decision{}, false
		}
		return Decision{Rule: id, run: func(ctx context.Context) (Outcome, error) {
			return Continue, act(ctx)
		}}, true
	}
}

func (r *Router) schedule(ctx context.Context) error {
	return r.actions.Schedule(ctx)
}

func (r *Router) volume(op VolumeOp) func(ctx context.Context) error {
	return func(ctx context.Context) error { return r.actions.Volume(ctx, op) }
}

func (r *Router) matchWeather(_ context.Context, u speech.Utterance) (Decision, bool) {
	if !catalog.ContainsWord(u.Normalized, "weather") {
		return Decision{}, false
	}
	return Decision{Rule: RuleWeather, run: func(ctx context.Context) (Outcome, error) {
		if !r.cfg.Settings.WeatherEnabled() {
			r.actions.Speak("Weather is turned off. Say hello purple to enable it.")
			return Continue, nil
		}
		return Continue, r.actions.Weather(ctx)
	}}, true
}

func hasClosingVerb(text string) bool {
	for _, v := range closingVerbs {
		if catalog.ContainsWord(text, v) {
			return true
		}
	}
	return false
}

// Close is tested before open: an app name alone matches both.
func (r *Router) matchCloseApp(_ context.Context, u speech.Utterance) (Decision, bool) {
	if !hasClosingVerb(u.Normalized) {
		return Decision{}, false
	}
	app, ok := r.cfg.Catalog.FindApp(u.Normalized)
	if !ok {
		return Decision{}, false
	}
	return Decision{Rule: RuleCloseApp, Target: app.Key, run: func(ctx context.Context) (Outcome, error) {
		return Continue, r.actions.CloseApp(ctx, app)
	}}, true
}

func (r *Router) matchCloseSite(_ context.Context, u speech.Utterance) (Decision, bool) {
	if !hasClosingVerb(u.Normalized) {
		return Decision{}, false
	}
	site, ok := r.cfg.Catalog.FindSite(u.Normalized)
	if !ok {
		return Decision{}, false
	}
	return Decision{Rule: RuleCloseSite, Target: site.Key, run: func(ctx context.Context) (Outcome, error) {
		return Continue, r.actions.CloseSite(ctx, site)
	}}, true
}

func (r *Router) matchOpenApp(_ context.Context, u speech.Utterance) (Decision, bool) {
	app, ok := r.cfg.Catalog.FindApp(u.Normalized)
	if !ok {
		return Decision{}, false
	}
	return Decision{Rule: RuleOpenApp, Target: app.Key, run: func(ctx context.Context) (Outcome, error) {
		return Continue, r.actions.OpenApp(ctx, app)
	}}, true
}

func (r *Router) matchOpenSite(_ context.Context, u speech.Utterance) (Decision, bool) {
	site, ok := r.cfg.Catalog.FindSite(u.Normalized)
	if !ok {
		return Decision{}, false
	}
	return Decision{Rule: RuleOpenSite, Target: site.Key, run: func(ctx context.Context) (Outcome, error) {
		return Continue, r.actions.OpenSite(ctx, site)
	}}, true
}

func (r *Router) matchSearch(_ context.Context, u speech.Utterance) (Decision, bool) {
	if !IsSearch(u.Normalized) {
		return Decision{}, false
	}
	return r.searchDecision(RuleSearch, u, ""), true
}

func (r *Router) searchDecision(id RuleID, u speech.Utterance, preface string) Decision {
	term := ExtractSearchTerm(u.Normalized)
	return Decision{Rule: id, Term: term, run: func(ctx context.Context) (Outcome, error) {
		if preface != "" {
			r.actions.Speak(preface)
		}
		if err := r.actions.Search(ctx, term); err != nil {
			return Continue, err
		}
		if r.cfg.StayAfterSearch {
			return Continue, nil
		}
		r.actions.Speak("Search results are now open in your browser. Goodbye boss!")
		return Exit, nil
	}}
}

var statusPhrases = []string{"system condition", "system status", "system information"}

func (r *Router) matchStatus(_ context.Context, u speech.Utterance) (Decision, bool) {
	text := u.Normalized
	single := text == "condition" || text == "status" || text == "information"
	if !single && !containsAnyPhrase(text, statusPhrases) {
		return Decision{}, false
	}
	return Decision{Rule: RuleStatus, run: func(ctx context.Context) (Outcome, error) {
		return Continue, r.actions.SystemStatus(ctx)
	}}, true
}

func (r *Router) matchDebris(_ context.Context, u speech.Utterance) (Decision, bool) {
	if !IsDebris(u.Normalized) {
		return Decision{}, false
	}
	log.Debug("Ignoring recognition debris", "text", u.Normalized)
	return Decision{Rule: RuleDebris}, true
}

// matchClassifier always matches; it is the last rule in the table.
func (r *Router) matchClassifier(ctx context.Context, u speech.Utterance) (Decision, bool) {
	if !r.classifierDown {
		p, err := r.cfg.Classifier.Classify(ctx, u.Normalized)
		switch {
		case errors.Is(err, intent.ErrUnavailable):
			log.Warn("Classifier unavailable for this session", "err", err)
			r.classifierDown = true
		case err != nil:
			log.Warn("Classifier failed", "err", err)
		case p.Confidence > r.cfg.Threshold:
			if reply, ok := r.cfg.Intents.Reply(p.Tag); ok {
				return Decision{Rule: RuleChat, Target: p.Tag, Reply: reply, run: func(context.Context) (Outcome, error) {
					r.actions.Speak(reply)
					return Continue, nil
				}}, true
			}
			log.Debug("No response for tag", "tag", p.Tag)
		default:
			log.Debug("Low confidence, staying silent", "tag", p.Tag, "confidence", p.Confidence)
		}
	}

	if IsInterrogative(u.Normalized) {
		return r.searchDecision(RuleFallbackSearch, u, "I don't have that information. Let me search Google for you."), true
	}

	return silent(), true
}

func containsAnyPhrase(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

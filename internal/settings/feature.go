package settings

import (
	"context"
	log "log/slog"
	"net/http"
	"time"
)

const (
	DefaultProbeURL     = "http://clients3.google.com/generate_204"
	DefaultProbeTimeout = 3 * time.Second
)

// Prober reports whether the backing service of a feature is reachable.
type Prober interface {
	Reachable(ctx context.Context) bool
}

// HTTPProber expects a 204 from URL within Timeout.
type HTTPProber struct {
	Client  *http.Client
	URL     string
	Timeout time.Duration
}

func (p HTTPProber) Reachable(ctx context.Context) bool {
	url := p.URL
	if url == "" {
		url = DefaultProbeURL
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Debug("Probe failed", "url", url, "err", err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusNoContent
}

const (
	msgWeatherOnline  = "Weather enabled and online, I'll fetch weather when requested."
	msgWeatherOffline = "Weather enabled in offline mode. I will use cached data when available."
	msgWeatherDenied  = "No internet connection. Weather not enabled."
)

// EnableWeather turns weather_enabled on when the probe succeeds, or
// unconditionally when allowOffline is set. On refusal s is left untouched.
func (st *Store) EnableWeather(ctx context.Context, s Settings, probe Prober, allowOffline bool) (bool, string) {
	online := probe != nil && probe.Reachable(ctx)

	switch {
	case online:
		s[KeyWeatherEnabled] = true
		st.persist(s)
		log.Info("Weather enabled", "mode", "online")
		return true, msgWeatherOnline
	case allowOffline:
		s[KeyWeatherEnabled] = true
		st.persist(s)
		log.Info("Weather enabled", "mode", "offline")
		return true, msgWeatherOffline
	default:
		log.Warn("Cannot enable weather, offline")
		return false, msgWeatherDenied
	}
}

func (st *Store) persist(s Settings) {
	if err := st.Save(s); err != nil {
		log.Warn("Failed to save settings", "path", st.path, "err", err)
	}
}

package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"maps"
	"os"
	"path/filepath"
)

const (
	KeyWeatherEnabled = "weather_enabled"
	DefaultPath       = "settings.json"
)

// Settings is the persisted option document. Unknown keys are kept as-is.
type Settings map[string]any

func Defaults() Settings {
	return Settings{
		KeyWeatherEnabled: false,
	}
}

func (s Settings) Bool(key string) bool {
	v, ok := s[key].(bool)
	return ok && v
}

func (s Settings) WeatherEnabled() bool {
	return s.Bool(KeyWeatherEnabled)
}

func (s Settings) Clone() Settings {
	return maps.Clone(s)
}

type Store struct {
	path string
}

func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

func (st *Store) Path() string { return st.path }

// Load reads the document, back-filling missing keys with defaults.
// A missing file is created with the defaults. Any I/O or decode failure
// degrades to in-memory defaults.
func (st *Store) Load() Settings {
	raw, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		s := Defaults()
		if err := st.Save(s); err != nil {
			log.Warn("Failed to create settings", "path", st.path, "err", err)
		}
		return s
	}
	if err != nil {
		log.Warn("Failed to read settings", "path", st.path, "err", err)
		return Defaults()
	}

	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil || s == nil {
		log.Warn("Malformed settings, using defaults", "path", st.path, "err", err)
		return Defaults()
	}

	filled := false
	for k, v := range Defaults() {
		if _, ok := s[k]; !ok {
			s[k] = v
			filled = true
		}
	}
	if filled {
		if err := st.Save(s); err != nil {
			log.Warn("Failed to persist back-filled settings", "path", st.path, "err", err)
		}
	}

	return s
}

// Save replaces the document through a temp file and rename, so readers
// see either the old or the new document.
func (st *Store) Save(s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(st.path)
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, st.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProbe bool

func (p staticProbe) Reachable(context.Context) bool { return bool(p) }

func readDoc(t *testing.T, path string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	st := NewStore(path)

	s := st.Load()
	assert.Equal(t, Defaults(), s)
	assert.Equal(t, map[string]any{"weather_enabled": false}, readDoc(t, path))
}

func TestLoadIsIdempotent(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "settings.json"))

	first := st.Load()
	second := st.Load()
	assert.Equal(t, first, second)
}

func TestLoadBackfillsAndPreservesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"theme":"dark"}`), 0o644))

	s := NewStore(path).Load()
	assert.Equal(t, "dark", s["theme"])
	assert.Equal(t, false, s[KeyWeatherEnabled])

	doc := readDoc(t, path)
	assert.Equal(t, "dark", doc["theme"])
	assert.Equal(t, false, doc[KeyWeatherEnabled])
}

func TestLoadAfterSaveReflectsSavedValues(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "settings.json"))

	require.NoError(t, st.Save(Settings{"volume": 3.0}))
	s := st.Load()
	assert.Equal(t, Settings{"volume": 3.0, KeyWeatherEnabled: false}, s)
}

func TestLoadMalformedFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	assert.Equal(t, Defaults(), NewStore(path).Load())
}

func TestLoadUnreadableDirFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "settings.json")

	assert.Equal(t, Defaults(), NewStore(path).Load())
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(filepath.Join(dir, "settings.json"))

	require.NoError(t, st.Save(Settings{KeyWeatherEnabled: true}))
	require.NoError(t, st.Save(Settings{KeyWeatherEnabled: false}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "settings.json", entries[0].Name())
}

func TestEnableWeather(t *testing.T) {
	tests := []struct {
		name         string
		online       bool
		allowOffline bool
		wantEnabled  bool
	}{
		{"online", true, false, true},
		{"online with override", true, true, true},
		{"offline refused", false, false, false},
		{"offline override", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.json")
			st := NewStore(path)
			s := st.Load()

			enabled, msg := st.EnableWeather(context.Background(), s, staticProbe(tt.online), tt.allowOffline)
			assert.Equal(t, tt.wantEnabled, enabled)
			assert.NotEmpty(t, msg)
			assert.Equal(t, tt.wantEnabled, s.WeatherEnabled())
			assert.Equal(t, tt.wantEnabled, readDoc(t, path)[KeyWeatherEnabled])
		})
	}
}

func TestEnableWeatherRefusedLeavesStateUnchanged(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	s := Settings{KeyWeatherEnabled: false, "other": "x"}
	before := s.Clone()

	enabled, _ := st.EnableWeather(context.Background(), s, staticProbe(false), false)
	assert.False(t, enabled)
	assert.Equal(t, before, s)
}

func TestHTTPProber(t *testing.T) {
	noContent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer noContent.Close()

	captive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer captive.Close()

	ctx := context.Background()
	assert.True(t, HTTPProber{URL: noContent.URL}.Reachable(ctx))
	assert.False(t, HTTPProber{URL: captive.URL}.Reachable(ctx))

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	assert.False(t, HTTPProber{URL: dead.URL}.Reachable(ctx))
}

func TestStorePath(t *testing.T) {
	assert.Equal(t, DefaultPath, NewStore("").Path())
	assert.Equal(t, "/etc/purple.json", NewStore("/etc/purple.json").Path())
}

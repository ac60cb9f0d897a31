package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindApp(t *testing.T) {
	c := Default()

	tests := []struct {
		text string
		key  string
		ok   bool
	}{
		{"open notepad", "notepad", true},
		{"close the calculator please", "calculator", true},
		{"launch visual studio code", "vscode", true},
		{"open spotify", "", false},
	}

	for _, tt := range tests {
		app, ok := c.FindApp(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.key, app.Key, tt.text)
	}
}

func TestFindSite(t *testing.T) {
	c := Default()

	tests := []struct {
		text string
		key  string
		ok   bool
	}{
		{"open youtube", "youtube", true},
		{"close whatsapp", "whatsapp", true},
		{"open google", "google", true},
		{"google", "google", true},
		{"google the weather in paris", "", false},
		{"edge", "edge", true},
		{"open microsoft edge", "edge", true},
		{"search in edge for cats", "", false},
	}

	for _, tt := range tests {
		site, ok := c.FindSite(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.key, site.Key, tt.text)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
apps:
  - key: notepad
    name: notes
    aliases: [notepad, notes]
    launch: [mousepad]
    processes: [mousepad]
  - key: terminal
    name: terminal
    aliases: [terminal]
    launch: [x-terminal-emulator]
sites:
  - key: github
    name: GitHub
    url: https://github.com/
    aliases: [github]
schedule:
  Monday: java class at eight
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	app, ok := c.FindApp("open notes")
	require.True(t, ok)
	assert.Equal(t, []string{"mousepad"}, app.Launch)
	assert.Len(t, c.Apps, len(Default().Apps)+1)

	site, ok := c.FindSite("open github")
	require.True(t, ok)
	assert.Equal(t, "https://github.com/", site.URL)

	plan, ok := c.ScheduleFor("monday")
	require.True(t, ok)
	assert.Equal(t, "java class at eight", plan)

	plan, ok = c.ScheduleFor("tuesday")
	require.True(t, ok)
	assert.Contains(t, plan, "llm training")
}

func TestDefaultScheduleCoversEveryDay(t *testing.T) {
	c := Default()
	for d := time.Sunday; d <= time.Saturday; d++ {
		plan, ok := c.ScheduleFor(d.String())
		assert.True(t, ok, d.String())
		assert.NotEmpty(t, plan, d.String())
	}

	_, ok := c.ScheduleFor("someday")
	assert.False(t, ok)
}

func TestLoadRejectsKeylessEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apps:\n  - name: nameless\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text, phrase string
		want         bool
	}{
		{"open word", "word", true},
		{"what is my password", "word", false},
		{"word", "word", true},
		{"close facebook's tab", "facebook", true},
		{"stopwatch", "stop", false},
		{"please stop, notepad", "stop", true},
		{"passwords and word", "word", true},
		{"anything", "", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ContainsWord(tt.text, tt.phrase), "%q in %q", tt.phrase, tt.text)
	}
}

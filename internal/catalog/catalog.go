package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// App is a local application the assistant can open and close.
type App struct {
	Key       string   `yaml:"key"`
	Name      string   `yaml:"name"`
	Aliases   []string `yaml:"aliases"`
	Launch    []string `yaml:"launch"`
	Processes []string `yaml:"processes"`
}

// Site is a web destination. Aliases match anywhere in the utterance;
// Phrases only match as "open <phrase>" or the bare phrase.
type Site struct {
	Key     string   `yaml:"key"`
	Name    string   `yaml:"name"`
	URL     string   `yaml:"url"`
	Aliases []string `yaml:"aliases"`
	Phrases []string `yaml:"phrases"`
}

type Catalog struct {
	Apps     []App             `yaml:"apps"`
	Sites    []Site            `yaml:"sites"`
	Schedule map[string]string `yaml:"schedule"`
}

func Default() *Catalog {
	return &Catalog{
		Apps: []App{
			{
				Key: "calculator", Name: "calculator",
				Aliases:   []string{"calculator"},
				Launch:    []string{"gnome-calculator", "kcalc", "calc.exe"},
				Processes: []string{"gnome-calculator", "kcalc", "Calculator.exe", "calc.exe"},
			},
			{
				Key: "notepad", Name: "notepad",
				Aliases:   []string{"notepad"},
				Launch:    []string{"gnome-text-editor", "gedit", "kate", "notepad.exe"},
				Processes: []string{"gnome-text-editor", "gedit", "kate", "notepad.exe"},
			},
			{
				Key: "paint", Name: "paint",
				Aliases:   []string{"paint"},
				Launch:    []string{"pinta", "kolourpaint", "mspaint.exe"},
				Processes: []string{"pinta", "kolourpaint", "mspaint.exe"},
			},
			{
				Key: "word", Name: "ms word",
				Aliases:   []string{"word"},
				Launch:    []string{"lowriter", "winword.exe"},
				Processes: []string{"soffice.bin", "WINWORD.EXE"},
			},
			{
				Key: "excel", Name: "ms excel",
				Aliases:   []string{"excel"},
				Launch:    []string{"localc", "excel.exe"},
				Processes: []string{"soffice.bin", "EXCEL.EXE"},
			},
			{
				Key: "vscode", Name: "visual studio code",
				Aliases:   []string{"visual studio code", "vscode"},
				Launch:    []string{"code", "Code.exe"},
				Processes: []string{"code", "Code.exe", "Code - Insiders.exe"},
			},
			{
				Key: "cursor", Name: "cursor",
				Aliases:   []string{"cursor"},
				Launch:    []string{"cursor", "Cursor.exe"},
				Processes: []string{"cursor", "Cursor.exe"},
			},
		},
		Sites: []Site{
			{Key: "facebook", Name: "Facebook", URL: "https://www.facebook.com/", Aliases: []string{"facebook"}},
			{Key: "whatsapp", Name: "WhatsApp", URL: "https://web.whatsapp.com/", Aliases: []string{"whatsapp"}},
			{Key: "instagram", Name: "Instagram", URL: "https://www.instagram.com/", Aliases: []string{"instagram"}},
			{Key: "youtube", Name: "YouTube", URL: "https://www.youtube.com/", Aliases: []string{"youtube"}},
			{Key: "chatgpt", Name: "ChatGPT", URL: "https://chatgpt.com/", Aliases: []string{"chatgpt"}},
			{Key: "google", Name: "Google", URL: "https://www.google.com/", Phrases: []string{"google"}},
			{Key: "edge", Name: "Microsoft Edge", URL: "https://www.microsoft.com/edge", Phrases: []string{"edge", "microsoft edge"}},
		},
		Schedule: defaultSchedule(),
	}
}

func defaultSchedule() map[string]string {
	weekday := "boss, from 5:30 pm to 6:30 pm you have llm training, from 6:30 pm to 7:30 pm you have to verify the python backend class is going smoothly, from 7:30 pm to 8:00 pm is your dinner time, from 8:10 pm to 9:10 pm you have java class."
	return map[string]string{
		"monday":    weekday,
		"tuesday":   weekday,
		"wednesday": "boss you have an epic work",
		"thursday":  "boss your exams are going to come, kindly prepare for it.",
		"friday":    "boss you need to take a survey of the class.",
		"saturday":  "boss you are free to work",
		"sunday":    "boss you can relax today, but your exam is tomorrow so kindly prepare for it.",
	}
}

// Load merges the YAML file at path over the defaults. Entries with a known
// key replace the default entry; new keys are appended. A missing file
// yields the defaults.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var over Catalog
	if err := yaml.Unmarshal(raw, &over); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	for _, a := range over.Apps {
		if a.Key == "" {
			return nil, fmt.Errorf("catalog app without key: %q", a.Name)
		}
		c.Apps = mergeByKey(c.Apps, a, func(x App) string { return x.Key })
	}
	for _, s := range over.Sites {
		if s.Key == "" {
			return nil, fmt.Errorf("catalog site without key: %q", s.Name)
		}
		c.Sites = mergeByKey(c.Sites, s, func(x Site) string { return x.Key })
	}
	for day, plan := range over.Schedule {
		c.Schedule[strings.ToLower(day)] = plan
	}

	return c, nil
}

func mergeByKey[T any](list []T, item T, key func(T) string) []T {
	for i := range list {
		if key(list[i]) == key(item) {
			list[i] = item
			return list
		}
	}
	return append(list, item)
}

// FindApp returns the first app any of whose aliases occurs as whole words
// in text.
func (c *Catalog) FindApp(text string) (App, bool) {
	for _, a := range c.Apps {
		if containsAny(text, a.Aliases) {
			return a, true
		}
	}
	return App{}, false
}

// FindSite returns the first site named in text, either by alias anywhere
// or by phrase as "open <phrase>" or the bare phrase.
func (c *Catalog) FindSite(text string) (Site, bool) {
	for _, s := range c.Sites {
		if s.Matches(text) {
			return s, true
		}
	}
	return Site{}, false
}

func (s Site) Matches(text string) bool {
	if containsAny(text, s.Aliases) {
		return true
	}
	trimmed := strings.TrimSpace(text)
	for _, p := range s.Phrases {
		if trimmed == p || ContainsWord(text, "open "+p) {
			return true
		}
	}
	return false
}

func (c *Catalog) ScheduleFor(weekday string) (string, bool) {
	plan, ok := c.Schedule[strings.ToLower(weekday)]
	return plan, ok && strings.TrimSpace(plan) != ""
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if ContainsWord(text, n) {
			return true
		}
	}
	return false
}

// ContainsWord reports whether phrase occurs in text on word boundaries,
// so "word" is found in "open word" but not in "password".
func ContainsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for i := 0; ; {
		j := strings.Index(text[i:], phrase)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(phrase)
		if !isWordByte(text, start-1) && !isWordByte(text, end) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return false
	}
	c := text[i]
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

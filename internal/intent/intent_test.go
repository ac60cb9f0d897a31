package intent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIntents = `{
  "intents": [
    {"tag": "greeting", "patterns": ["hi there", "good morning", "hey purple"], "responses": ["Hello boss", "Hi boss"]},
    {"tag": "thanks", "patterns": ["thank you", "thanks a lot"], "responses": ["Happy to help"]},
    {"tag": "silent", "patterns": ["nothing"], "responses": []}
  ]
}`

func loadSample(t *testing.T) *Intents {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intents.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleIntents), 0o644))
	doc, err := LoadIntents(path)
	require.NoError(t, err)
	return doc
}

func TestIntentsReply(t *testing.T) {
	doc := loadSample(t)

	assert.Equal(t, []string{"greeting", "thanks", "silent"}, doc.Tags())

	reply, ok := doc.Reply("greeting")
	require.True(t, ok)
	assert.Contains(t, []string{"Hello boss", "Hi boss"}, reply)

	_, ok = doc.Reply("silent")
	assert.False(t, ok)
	_, ok = doc.Reply("weather")
	assert.False(t, ok)

	var none *Intents
	assert.Nil(t, none.Responses("greeting"))
}

func TestLoadIntentsErrors(t *testing.T) {
	_, err := LoadIntents(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadIntents(bad)
	assert.Error(t, err)
}

func TestKeywordsClassify(t *testing.T) {
	k := NewKeywords(loadSample(t))
	ctx := context.Background()

	p, err := k.Classify(ctx, "Thank you!")
	require.NoError(t, err)
	assert.Equal(t, "thanks", p.Tag)
	assert.InDelta(t, 1.0, p.Confidence, 1e-9)

	p, err = k.Classify(ctx, "good morning purple")
	require.NoError(t, err)
	assert.Equal(t, "greeting", p.Tag)
	assert.InDelta(t, 2.0/3.0, p.Confidence, 1e-9)

	p, err = k.Classify(ctx, "quantum chromodynamics")
	require.NoError(t, err)
	assert.Zero(t, p.Confidence)
}

func TestKeywordsWithoutPatternsIsUnavailable(t *testing.T) {
	_, err := NewKeywords(&Intents{}).Classify(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.Classify(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrUnavailable)
}

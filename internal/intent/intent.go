package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
)

// ErrUnavailable marks a classifier that cannot serve for the rest of the
// session.
var ErrUnavailable = errors.New("classifier unavailable")

type Prediction struct {
	Tag        string  `json:"tag"`
	Confidence float64 `json:"confidence"`
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Prediction, error)
}

type Intent struct {
	Tag       string   `json:"tag"`
	Patterns  []string `json:"patterns"`
	Responses []string `json:"responses"`
}

// Intents is the tag → responses document the classifier was trained on.
type Intents struct {
	Intents []Intent `json:"intents"`
}

func LoadIntents(path string) (*Intents, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intents: %w", err)
	}

	var doc Intents
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse intents: %w", err)
	}

	return &doc, nil
}

func (d *Intents) Tags() []string {
	tags := make([]string, 0, len(d.Intents))
	for _, in := range d.Intents {
		tags = append(tags, in.Tag)
	}
	return tags
}

func (d *Intents) Responses(tag string) []string {
	if d == nil {
		return nil
	}
	for _, in := range d.Intents {
		if in.Tag == tag {
			return in.Responses
		}
	}
	return nil
}

// Reply picks one response for tag at random.
func (d *Intents) Reply(tag string) (string, bool) {
	rs := d.Responses(tag)
	if len(rs) == 0 {
		return "", false
	}
	return rs[rand.IntN(len(rs))], true
}

// Unavailable always fails with ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Classify(context.Context, string) (Prediction, error) {
	return Prediction{}, ErrUnavailable
}

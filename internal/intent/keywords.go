package intent

import (
	"context"
	"strings"
	"unicode"
)

// Keywords scores an utterance against the intent patterns by token
// overlap (Jaccard). It runs offline and needs no model weights.
type Keywords struct {
	patterns []scoredPattern
}

type scoredPattern struct {
	tag    string
	tokens map[string]struct{}
}

func NewKeywords(doc *Intents) *Keywords {
	k := &Keywords{}
	for _, in := range doc.Intents {
		for _, p := range in.Patterns {
			toks := tokenSet(p)
			if len(toks) == 0 {
				continue
			}
			k.patterns = append(k.patterns, scoredPattern{tag: in.Tag, tokens: toks})
		}
	}
	return k
}

func (k *Keywords) Classify(_ context.Context, text string) (Prediction, error) {
	if len(k.patterns) == 0 {
		return Prediction{}, ErrUnavailable
	}

	in := tokenSet(text)
	var best Prediction
	for _, p := range k.patterns {
		score := jaccard(in, p.tokens)
		if score > best.Confidence {
			best = Prediction{Tag: p.tag, Confidence: score}
		}
	}

	return best, nil
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

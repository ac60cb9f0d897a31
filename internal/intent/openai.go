package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
)

const promptTemplate = `
You are PURPLE-NLU, the intent classifier of a personal voice assistant.
Your ONLY job is to map the user's utterance to one of the known tags.

GENERAL RULES:
1. Do NOT converse.
2. Do NOT answer the question.
3. Output ONLY JSON. No markdown.
4. Never invent tags that are not listed.

OUTPUT FORMAT:
{
  "tag": "<one of the known tags, or \"unknown\">",
  "confidence": <number between 0 and 1>
}

KNOWN TAGS:
%s

If the utterance does not clearly belong to one tag, answer "unknown" with a
low confidence.
`

// OpenAI classifies through a chat completion restricted to the known tags.
type OpenAI struct {
	client  openai.Client
	model   openai.ChatModel
	prompt  string
	timeout time.Duration
}

func NewOpenAI(client openai.Client, doc *Intents) *OpenAI {
	var b strings.Builder
	for _, in := range doc.Intents {
		fmt.Fprintf(&b, "- %q", in.Tag)
		if len(in.Patterns) > 0 {
			fmt.Fprintf(&b, " (e.g. %s)", strings.Join(in.Patterns[:min(3, len(in.Patterns))], "; "))
		}
		b.WriteByte('\n')
	}

	return &OpenAI{
		client:  client,
		model:   openai.ChatModelGPT5Nano,
		prompt:  fmt.Sprintf(promptTemplate, b.String()),
		timeout: 15 * time.Second,
	}
}

func (o *OpenAI) Classify(ctx context.Context, text string) (Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(o.prompt),
			openai.UserMessage(text),
		},
		Model: o.model,
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return Prediction{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return Prediction{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Prediction{}, fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return Prediction{}, fmt.Errorf("empty message content")
	}

	log.Debug("Classified", "data", content)

	var out Prediction
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return Prediction{}, fmt.Errorf("unmarshal prediction: %w (raw: %s)", err, content)
	}
	if out.Tag == "unknown" {
		out.Confidence = 0
	}

	return out, nil
}

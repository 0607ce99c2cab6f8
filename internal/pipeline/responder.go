// Package pipeline runs one chat turn up to the upstream call: classify the
// last user message, select matching days, compose the prompt and build the
// request.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/designdays/internal/composer"
	"github.com/kalambet/designdays/internal/corpus"
	"github.com/kalambet/designdays/internal/intent"
	"github.com/kalambet/designdays/internal/proxy"
	"github.com/kalambet/designdays/internal/ranking"
)

// ErrInvalidHistory is returned when the messages array is empty, malformed,
// or does not end with a user message.
var ErrInvalidHistory = errors.New("invalid chat history")

// DayProvider supplies the merged daily records.
type DayProvider interface {
	Days(ctx context.Context) []corpus.DailyContext
}

// Options tunes a Responder.
type Options struct {
	Model  string
	Limits ranking.Limits
}

// Metadata captures diagnostics about one Prepare call.
type Metadata struct {
	DurationMs   int64
	Results      int
	PromptTokens int
}

// Prepared is everything needed to answer one chat turn.
type Prepared struct {
	Request   proxy.ChatRequest
	Text      string
	Selection ranking.Selection
	Prompt    composer.Prompt
	Meta      Metadata
}

// Responder wires the classifier, ranking and composer together.
type Responder struct {
	days     DayProvider
	composer *composer.Composer
	opts     Options
}

// NewResponder creates a Responder.
func NewResponder(days DayProvider, comp *composer.Composer, opts Options) *Responder {
	return &Responder{days: days, composer: comp, opts: opts}
}

// Prepare builds the upstream request for messages, a JSON array of
// {role, content} objects. It fails only with ErrInvalidHistory; an empty
// corpus yields a "nothing found" prompt rather than an error.
func (r *Responder) Prepare(ctx context.Context, messages json.RawMessage) (out Prepared, err error) {
	start := time.Now()
	defer func() {
		out.Meta.DurationMs = time.Since(start).Milliseconds()
	}()

	text, ok := intent.LastUserMessage(messages)
	if !ok {
		return Prepared{}, fmt.Errorf("%w: messages must be a non-empty array ending with a user message", ErrInvalidHistory)
	}

	q := intent.Classify(text)
	sel := ranking.Select(r.days.Days(ctx), q, r.opts.Limits)
	prompt := r.composer.Compose(sel)

	req, err := r.composer.Request(r.opts.Model, messages, prompt)
	if err != nil {
		return Prepared{}, fmt.Errorf("%w: %v", ErrInvalidHistory, err)
	}

	slog.Debug("chat turn prepared",
		"query_type", q.Type,
		"term", q.Term,
		"results", len(sel.Results),
		"remaining", sel.Remaining,
	)

	return Prepared{
		Request:   req,
		Text:      text,
		Selection: sel,
		Prompt:    prompt,
		Meta: Metadata{
			Results:      len(sel.Results),
			PromptTokens: composer.EstimateTokens(prompt.System),
		},
	}, nil
}

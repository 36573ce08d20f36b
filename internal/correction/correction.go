// Package correction turns a learner's utterance into a correction record:
// grammar-corrected, coherence-corrected and rewritten variants in the
// learner's own language, plus a similarity score.
//
// Editing always happens in English. Non-English input is translated to
// English first and every variant is translated back, one call per field.
// The pipeline is strictly sequential and never retries.
package correction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/tiktalk/pkg/language"
	"github.com/MrWong99/tiktalk/pkg/provider/textedit"
	"github.com/MrWong99/tiktalk/pkg/provider/translate"
)

var (
	// ErrEmptyText is returned for blank input before any model is called.
	ErrEmptyText = errors.New("correction: empty text")

	// ErrUpstream marks a failed model call.
	ErrUpstream = errors.New("correction: upstream model failure")
)

// Stage names reported to a [StageObserver].
const (
	StageToEnglish   = "to_english"
	StageGrammar     = "grammar"
	StageCoherence   = "coherence"
	StageRewrite     = "rewrite"
	StageFromEnglish = "from_english"
)

// Record is the result of correcting one utterance. All text fields are in
// the learner's language.
type Record struct {
	Original           string `json:"original"`
	GrammarCorrected   string `json:"grammar_corrected"`
	CoherenceCorrected string `json:"coherence_corrected"`
	Rewritten          string `json:"rewritten"`
	Score              int    `json:"score"`
	Language           string `json:"language"`
}

// StageObserver is told how long each model call took.
type StageObserver func(ctx context.Context, stage string, d time.Duration, err error)

// Option is a functional option for Corrector.
type Option func(*Corrector)

// WithStageObserver installs obs. Default: none.
func WithStageObserver(obs StageObserver) Option {
	return func(c *Corrector) { c.observe = obs }
}

// Corrector runs the correction pipeline. It holds no per-call state and is
// safe for concurrent use.
type Corrector struct {
	pivot   *translate.Pivot
	editor  textedit.Provider
	observe StageObserver
}

// New returns a Corrector that translates with pivot and edits with editor.
func New(pivot *translate.Pivot, editor textedit.Provider, opts ...Option) *Corrector {
	c := &Corrector{pivot: pivot, editor: editor}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct runs the pipeline for text spoken in lang (a code or display
// name). Unsupported languages and blank text fail before any model call.
func (c *Corrector) Correct(ctx context.Context, text, lang string) (Record, error) {
	l, err := language.Parse(lang)
	if err != nil {
		return Record{}, fmt.Errorf("correction: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Record{}, ErrEmptyText
	}

	english, err := c.stage(ctx, StageToEnglish, func() (string, error) {
		return c.pivot.ToEnglish(ctx, text, l)
	}, !l.IsEnglish())
	if err != nil {
		return Record{}, err
	}

	edited := make(map[textedit.Task]string, 3)
	input := english
	for _, task := range textedit.Tasks() {
		out, err := c.stage(ctx, string(task), func() (string, error) {
			return c.editor.Edit(ctx, task, input)
		}, true)
		if err != nil {
			return Record{}, err
		}
		edited[task] = out
		input = out
	}

	rec := Record{Original: text, Language: l.Code}
	// Rewritten first; the other two are for display only.
	for _, f := range []struct {
		task textedit.Task
		dst  *string
	}{
		{textedit.TaskRewrite, &rec.Rewritten},
		{textedit.TaskGrammar, &rec.GrammarCorrected},
		{textedit.TaskCoherence, &rec.CoherenceCorrected},
	} {
		out, err := c.stage(ctx, StageFromEnglish, func() (string, error) {
			return c.pivot.FromEnglish(ctx, edited[f.task], l)
		}, !l.IsEnglish())
		if err != nil {
			return Record{}, err
		}
		*f.dst = out
	}

	rec.Score = Score(rec.Original, rec.GrammarCorrected, rec.CoherenceCorrected, rec.Rewritten)
	return rec, nil
}

// stage runs fn, timing it when observed is true, and classifies failures.
func (c *Corrector) stage(ctx context.Context, name string, fn func() (string, error), observed bool) (string, error) {
	start := time.Now()
	out, err := fn()
	if observed && c.observe != nil {
		c.observe(ctx, name, time.Since(start), err)
	}
	if err == nil {
		return out, nil
	}
	if errors.Is(err, language.ErrUnsupported) || ctx.Err() != nil {
		return "", fmt.Errorf("correction: %s: %w", name, err)
	}
	return "", fmt.Errorf("correction: %s: %w: %w", name, ErrUpstream, err)
}

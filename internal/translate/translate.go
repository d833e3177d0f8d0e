// Package translate groups newly committed text into sentences and
// dispatches each complete sentence to the external model.Translator
// capability, never re-translating a sentence already sent.
package translate

import (
	"context"
	"fmt"

	"github.com/transcriberd/transcriberd/internal/model"
	"github.com/transcriberd/transcriberd/internal/transcript"
	"golang.org/x/text/language"
)

// Config selects the source/target languages for a session.
type Config struct {
	SourceLang string
	TargetLang string
}

// Translator batches committed text into sentence groups and translates
// each exactly once.
type Translator struct {
	cfg   Config
	model model.Translator

	pendingText  string  // committed text not yet split into a full sentence
	pendingStart float64 // audio start of pendingText's first token
	sentEndSec   float64 // audio end of the last text folded into pendingText
	haveStart    bool
}

// New constructs a Translator, validating the configured language tags
// via golang.org/x/text/language. The tags are kept as given.
func New(m model.Translator, cfg Config) (*Translator, error) {
	if _, err := language.Parse(cfg.SourceLang); err != nil {
		return nil, fmt.Errorf("translate: source lang %q: %w", cfg.SourceLang, err)
	}
	if _, err := language.Parse(cfg.TargetLang); err != nil {
		return nil, fmt.Errorf("translate: target lang %q: %w", cfg.TargetLang, err)
	}
	return &Translator{cfg: cfg, model: m}, nil
}

// Feed appends newly committed text spanning [startSec, endSec] and
// returns any complete sentences it can now translate, each carrying the
// audio range it covers so the aligner can attach it to the matching
// segment.
func (t *Translator) Feed(ctx context.Context, newText string, startSec, endSec float64) ([]transcript.Translation, error) {
	if newText == "" {
		return nil, nil
	}
	if t.pendingText != "" {
		t.pendingText += " " + newText
	} else {
		t.pendingText = newText
	}
	if !t.haveStart {
		t.pendingStart = startSec
		t.haveStart = true
	}
	t.sentEndSec = endSec

	sentences, remainder := transcript.SplitSentences(t.pendingText)
	if len(sentences) == 0 {
		return nil, nil
	}

	segStart := t.pendingStart
	out := make([]transcript.Translation, 0, len(sentences))
	for _, s := range sentences {
		translated, err := t.model.Translate(ctx, s, t.cfg.SourceLang, t.cfg.TargetLang)
		if err != nil {
			t.pendingText = remainder
			return out, fmt.Errorf("translate: %w", err)
		}
		out = append(out, transcript.Translation{
			StartSec: segStart,
			EndSec:   endSec,
			Text:     translated,
			Language: t.cfg.TargetLang,
		})
		segStart = endSec
	}
	t.pendingText = remainder
	t.haveStart = remainder != ""
	if t.haveStart {
		t.pendingStart = endSec
	}
	return out, nil
}

// Flush translates any remaining partial sentence, used at session end.
func (t *Translator) Flush(ctx context.Context) (*transcript.Translation, error) {
	if t.pendingText == "" {
		return nil, nil
	}
	text := t.pendingText
	t.pendingText = ""

	translated, err := t.model.Translate(ctx, text, t.cfg.SourceLang, t.cfg.TargetLang)
	if err != nil {
		return nil, fmt.Errorf("translate: flush: %w", err)
	}
	return &transcript.Translation{StartSec: t.pendingStart, EndSec: t.sentEndSec, Text: translated, Language: t.cfg.TargetLang}, nil
}

// Package session wires the pipeline stages — decoder, VAD gate,
// transcriber, diarizer, translator, aligner, publisher — into one
// supervised session per connection, following the teacher's
// producer/consumer goroutine idiom generalized to a multi-stage
// pipeline supervised by golang.org/x/sync/errgroup rather than a single
// ad hoc sync.WaitGroup.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/transcriberd/transcriberd/internal/align"
	"github.com/transcriberd/transcriberd/internal/diarize"
	"github.com/transcriberd/transcriberd/internal/metrics"
	"github.com/transcriberd/transcriberd/internal/model"
	"github.com/transcriberd/transcriberd/internal/publish"
	"github.com/transcriberd/transcriberd/internal/transcribe"
	"github.com/transcriberd/transcriberd/internal/translate"
	"github.com/transcriberd/transcriberd/internal/transcript"
	"github.com/transcriberd/transcriberd/internal/vad"
)

const (
	vadToTranscriberCap = 256
	diarizeToAlignCap   = 256
	translateToAlignCap = 64
)

// Config describes one session's wiring: which transcriber policy to
// use, whether diarization/translation are enabled, and the languages in
// play. Mirrors spec §6's Configuration object.
type Config struct {
	SessionID        string
	Policy           transcribe.Policy
	Vad              model.Vad
	VadConfig        vad.Config
	Diarizer         model.Diarizer
	DiarizeConfig    diarize.Config
	Translator       model.Translator
	TranslateConfig  *translateConfig // nil disables translation
	PublishConfig    publish.Config
	SampleRate       int
	// MaxAsrFailures is how many consecutive transcriber-tick failures to
	// tolerate before escalating to a fatal AsrPersistent error. Zero
	// disables escalation (the session runs indefinitely on a wedged
	// backend, matching the teacher's original no-circuit-breaker
	// behavior) and is only meant for tests.
	MaxAsrFailures int
}

type translateConfig struct {
	SourceLang, TargetLang string
}

// TranslateConfig constructs the optional translation sub-config.
func TranslateConfig(sourceLang, targetLang string) *translateConfig {
	return &translateConfig{SourceLang: sourceLang, TargetLang: targetLang}
}

// Snapshot is delivered to Subscribe callbacks whenever the publisher
// decides a new snapshot is due.
type Snapshot = transcript.SessionState

// Session runs one pipeline instance end to end.
type Session struct {
	cfg   Config
	gate  *vad.Gate
	diar  *diarize.Diarizer
	trans *translatorStage
	pub   *publish.Publisher

	mu    sync.Mutex
	state *transcript.SessionState

	subMu sync.Mutex
	subs  []func(Snapshot)
}

// translatorStage exists so Session can remain agnostic of whether
// translation is enabled; it is nil when Config.TranslateConfig is nil.
type translatorStage struct {
	feed  func(ctx context.Context, text string, startSec, endSec float64) ([]transcript.Translation, error)
	flush func(ctx context.Context) (*transcript.Translation, error)
}

// New constructs a Session. If cfg.Translator is set and translation is
// enabled, a translate.Translator is built and any language-tag error is
// returned.
func New(cfg Config) (*Session, error) {
	s := &Session{
		cfg:   cfg,
		gate:  vad.New(cfg.Vad, cfg.VadConfig),
		diar:  diarize.New(cfg.Diarizer, cfg.DiarizeConfig),
		pub:   publish.New(cfg.PublishConfig),
		state: transcript.NewSessionState(cfg.SessionID),
	}
	if cfg.TranslateConfig != nil && cfg.Translator != nil {
		tr, err := translate.New(cfg.Translator, translate.Config{
			SourceLang: cfg.TranslateConfig.SourceLang,
			TargetLang: cfg.TranslateConfig.TargetLang,
		})
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		s.trans = &translatorStage{feed: tr.Feed, flush: tr.Flush}
	}
	return s, nil
}

// Subscribe registers a callback invoked with every published snapshot.
// Not safe to call concurrently with Run.
func (s *Session) Subscribe(fn func(Snapshot)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Session) publish(snap Snapshot) {
	s.subMu.Lock()
	subs := append([]func(Snapshot){}, s.subs...)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// audioFrame flows from the VAD gate to the transcriber.
type audioFrame struct {
	samples []float32
	endSec  float64
	end     bool // true if this frame closes an utterance
}

// Run drives the session until ctx is cancelled or frames is closed and
// fully drained, then emits one final, unconditional snapshot.
//
// frames delivers raw 16 kHz mono PCM in fixed windows (already decoded);
// the decoder's own process-supervision lifecycle lives one level up, in
// the caller that feeds this channel.
func (s *Session) Run(ctx context.Context, frames <-chan []float32) error {
	g, ctx := errgroup.WithContext(ctx)
	// The publisher ticker has no input channel to drain, so it is stopped
	// once the aligner has consumed everything upstream.
	pubCtx, stopPub := context.WithCancel(ctx)
	defer stopPub()

	gated := make(chan audioFrame, vadToTranscriberCap)
	committed := make(chan []transcript.Token, diarizeToAlignCap)

	g.Go(func() error { return s.runGate(ctx, frames, gated) })
	g.Go(func() error { return s.runTranscriber(ctx, gated, committed) })
	g.Go(func() error { defer stopPub(); return s.runAligner(ctx, committed) })
	g.Go(func() error { return s.runPublisherTicker(pubCtx) })

	err := g.Wait()

	s.mu.Lock()
	final := s.pub.Final(s.state)
	s.mu.Unlock()
	s.publish(final)

	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

func (s *Session) runGate(ctx context.Context, frames <-chan []float32, out chan<- audioFrame) error {
	defer close(out)
	audioEnd := 0.0
	secPerFrame := float64(512) / float64(nonZero(s.cfg.SampleRate, 16000))

	for {
		select {
		case <-ctx.Done():
			return nil
		case samples, ok := <-frames:
			if !ok {
				return nil
			}
			res, err := s.gate.Feed(ctx, samples)
			if err != nil {
				slog.Warn("vad gate error, treating frame as silent", "session_id", s.cfg.SessionID, "error", err)
				metrics.Errors.WithLabelValues("vad", VadFailure.String()).Inc()
				continue
			}
			audioEnd += secPerFrame
			if res.SpeechEnd {
				metrics.SpeechSegmentsDetected.Inc()
			}
			if len(res.Samples) == 0 {
				continue
			}
			frame := audioFrame{samples: res.Samples, endSec: audioEnd, end: res.SpeechEnd}
			select {
			case out <- frame:
				metrics.QueueDepth.WithLabelValues("gated").Set(float64(len(out)))
			case <-ctx.Done():
				return nil
			default:
				slog.Warn("transcriber input full, dropping frame", "session_id", s.cfg.SessionID)
				metrics.Errors.WithLabelValues("vad", Backpressure.String()).Inc()
			}
		}
	}
}

func (s *Session) runTranscriber(ctx context.Context, in <-chan audioFrame, out chan<- []transcript.Token) error {
	defer close(out)
	consecutiveFailures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-in:
			if !ok {
				return nil
			}
			start := time.Now()
			res, err := s.cfg.Policy.Tick(ctx, frame.samples, frame.endSec)
			metrics.StageDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())
			if err != nil {
				consecutiveFailures++
				if s.cfg.MaxAsrFailures > 0 && consecutiveFailures >= s.cfg.MaxAsrFailures {
					metrics.Errors.WithLabelValues("transcribe", AsrPersistent.String()).Inc()
					return NewStageError("transcribe", AsrPersistent, err)
				}
				slog.Error("transcriber tick failed", "session_id", s.cfg.SessionID, "error", err)
				metrics.Errors.WithLabelValues("transcribe", AsrTransient.String()).Inc()
				continue
			}
			consecutiveFailures = 0
			s.applyTentative(res.Tentative)
			if len(res.Committed) > 0 {
				s.enqueue(ctx, out, res.Committed)
			}
			if frame.end {
				flushed, err := s.cfg.Policy.Flush(ctx)
				if err != nil {
					slog.Error("transcriber flush failed", "session_id", s.cfg.SessionID, "error", err)
					continue
				}
				if len(flushed.Committed) > 0 {
					s.enqueue(ctx, out, flushed.Committed)
				}
			}
			if err := s.diar.Assign(ctx, frame.samples, nonZero(s.cfg.SampleRate, 16000), frame.endSec-s.cfg.DiarizeConfig.WindowSec, frame.endSec); err != nil {
				slog.Warn("diarizer assign failed", "session_id", s.cfg.SessionID, "error", err)
				metrics.Errors.WithLabelValues("diarize", DiarizerFailure.String()).Inc()
			} else {
				s.setEndOfDiarizedAudio(frame.endSec)
			}
		}
	}
}

func (s *Session) enqueue(ctx context.Context, out chan<- []transcript.Token, tokens []transcript.Token) {
	select {
	case out <- tokens:
		metrics.QueueDepth.WithLabelValues("committed").Set(float64(len(out)))
	case <-ctx.Done():
	default:
		slog.Warn("aligner input full, dropping committed tokens", "session_id", s.cfg.SessionID)
		metrics.Errors.WithLabelValues("transcribe", Backpressure.String()).Inc()
	}
}

func (s *Session) runAligner(ctx context.Context, in <-chan []transcript.Token) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case tokens, ok := <-in:
			if !ok {
				return nil
			}
			s.applyCommitted(tokens)
		}
	}
}

func (s *Session) runPublisherTicker(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PublishConfig.Rate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.mu.Lock()
			snap, ok := s.pub.Tick(now, s.state)
			s.mu.Unlock()
			if ok {
				s.publish(snap)
			}
		}
	}
}

func (s *Session) applyTentative(t transcript.TentativeBuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Tentative = t
}

// setEndOfDiarizedAudio advances the session's diarization frontier, used
// to gate speaker assignment in align.Build. It never moves backwards.
func (s *Session) setEndOfDiarizedAudio(endSec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if endSec > s.state.EndOfDiarizedAudio {
		s.state.EndOfDiarizedAudio = endSec
	}
}

func (s *Session) applyCommitted(tokens []transcript.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.AppendCommitted(tokens)

	var translations []transcript.Translation
	if s.trans != nil {
		text := ""
		for i, t := range tokens {
			if i > 0 {
				text += " "
			}
			text += t.Text
		}
		out, err := s.trans.feed(context.Background(), text, tokens[0].StartSec, tokens[len(tokens)-1].EndSec)
		if err != nil {
			slog.Warn("translator feed failed", "session_id", s.cfg.SessionID, "error", err)
			metrics.Errors.WithLabelValues("translate", TranslatorFailure.String()).Inc()
		} else {
			translations = out
		}
	}
	if len(translations) > 0 {
		s.state.Translations = append(s.state.Translations, translations...)
	}

	s.state.Speakers = s.diar.Intervals()
	s.state.Segments = align.Build(s.state.Committed, s.state.Speakers, s.state.Translations, s.state.EndOfDiarizedAudio)
}

func nonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

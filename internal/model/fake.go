package model

import "context"

// FakeVad is a scriptable Vad for tests: it returns one queued event per
// Feed call and then VadEvent{} once exhausted.
type FakeVad struct {
	Events []VadEvent
	pos    int
}

func (f *FakeVad) Feed(_ context.Context, _ []float32) (VadEvent, error) {
	if f.pos >= len(f.Events) {
		return VadEvent{}, nil
	}
	ev := f.Events[f.pos]
	f.pos++
	return ev, nil
}

func (f *FakeVad) Reset() { f.pos = 0 }

// FakeWholeChunkASR returns its scripted Results one per call, in order,
// repeating the last once exhausted (an empty result if none are
// scripted), regardless of input, for exercising LocalAgreement's reconciliation
// logic without a real model.
type FakeWholeChunkASR struct {
	Results []WholeChunkResult
	pos     int
}

func (f *FakeWholeChunkASR) Transcribe(_ context.Context, _ []float32, _ int) (WholeChunkResult, error) {
	if len(f.Results) == 0 {
		return WholeChunkResult{}, nil
	}
	if f.pos >= len(f.Results) {
		return f.Results[len(f.Results)-1], nil
	}
	r := f.Results[f.pos]
	f.pos++
	return r, nil
}

// FakeEncoderDecoder pairs a no-op encoder with a scripted decoder, for
// exercising AlignAtt without a real attention model.
type FakeEncoderDecoder struct {
	Scores []AttentionScores
	pos    int
}

func (f *FakeEncoderDecoder) Encode(_ context.Context, _ []float32, prevState EncoderState) (EncoderState, error) {
	n, _ := prevState.(int)
	return n + 1, nil
}

func (f *FakeEncoderDecoder) Decode(_ context.Context, _ EncoderState) (AttentionScores, error) {
	if len(f.Scores) == 0 {
		return AttentionScores{}, nil
	}
	if f.pos >= len(f.Scores) {
		return f.Scores[len(f.Scores)-1], nil
	}
	s := f.Scores[f.pos]
	f.pos++
	return s, nil
}

// FakeDiarizer assigns speaker IDs round-robin from a fixed list, cycling
// if exhausted, for exercising diarizer post-processing deterministically.
type FakeDiarizer struct {
	SpeakerIDs []int
	pos        int
}

func (f *FakeDiarizer) Assign(_ context.Context, _ []float32, _ int, _, _ float64) (int, error) {
	if len(f.SpeakerIDs) == 0 {
		return 0, nil
	}
	id := f.SpeakerIDs[f.pos%len(f.SpeakerIDs)]
	f.pos++
	return id, nil
}

// FakeTranslator appends a fixed suffix to the source text, so tests can
// assert the translation reached the wire without a real model.
type FakeTranslator struct {
	Suffix string
}

func (f *FakeTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	suffix := f.Suffix
	if suffix == "" {
		suffix = " [translated]"
	}
	return text + suffix, nil
}

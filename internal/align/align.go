// Package align builds display-ready Segments from committed tokens,
// speaker intervals, and translations. Speaker change is the strongest
// segment boundary; sentence-terminal punctuation is the next strongest;
// a segment never spans a speaker change even mid-sentence.
package align

import (
	"github.com/transcriberd/transcriberd/internal/transcript"
)

// Build assigns each committed token a speaker (via intervals), groups
// tokens into segments at speaker-change or sentence-terminal boundaries,
// and attaches the translations whose audio range lies within a segment's
// range. It is a pure function of its inputs — callers own how often to
// call it and how to merge its result into SessionState.Segments.
//
// endOfDiarizedAudio gates speaker assignment: only tokens whose EndSec is
// at or before it are eligible, since the diarizer hasn't yet finalized
// intervals past that frontier. Later tokens keep speaker 0.
func Build(tokens []transcript.Token, speakers []transcript.SpeakerInterval, translations []transcript.Translation, endOfDiarizedAudio float64) []transcript.Segment {
	assigned := assignSpeakers(tokens, speakers, endOfDiarizedAudio)
	segments := groupSegments(assigned)
	attachTranslations(segments, translations)
	return segments
}

// assignSpeakers returns a copy of tokens with SpeakerID set to whichever
// interval has the largest intersection with the token's span, ties
// breaking to the earlier interval (spec §4.7 step 2). Tokens past
// endOfDiarizedAudio, or with no intersecting interval at all, keep
// speaker 0.
func assignSpeakers(tokens []transcript.Token, speakers []transcript.SpeakerInterval, endOfDiarizedAudio float64) []transcript.Token {
	out := make([]transcript.Token, len(tokens))
	copy(out, tokens)
	for i := range out {
		if out[i].EndSec > endOfDiarizedAudio {
			continue
		}
		// speakers is in audio-time order, so the first interval to reach a
		// given overlap is always the earliest — a strict improvement check
		// is enough to implement "ties break to the earlier interval".
		bestOverlap := 0.0
		found := false
		for _, iv := range speakers {
			overlap := intersect(out[i].StartSec, out[i].EndSec, iv.StartSec, iv.EndSec)
			if overlap <= 0 {
				continue
			}
			if !found || overlap > bestOverlap {
				found = true
				bestOverlap = overlap
				out[i].SpeakerID = iv.SpeakerID
			}
		}
	}
	return out
}

// intersect returns the length of the overlap between [aStart, aEnd) and
// [bStart, bEnd), or 0 (or negative) when they don't overlap.
func intersect(aStart, aEnd, bStart, bEnd float64) float64 {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	return end - start
}

// groupSegments walks tokens in order, starting a new segment whenever
// the speaker changes (strongest boundary) or the previous token ended a
// sentence (weaker boundary, only checked when speaker is unchanged).
func groupSegments(tokens []transcript.Token) []transcript.Segment {
	if len(tokens) == 0 {
		return nil
	}

	var segments []transcript.Segment
	cur := transcript.Segment{SpeakerID: tokens[0].SpeakerID, StartSec: tokens[0].StartSec}
	curText := ""

	flush := func(endSec float64) {
		cur.EndSec = endSec
		cur.Text = curText
		cur.Final = true
		segments = append(segments, cur)
	}

	for i, tok := range tokens {
		boundary := false
		if i > 0 {
			speakerChanged := tok.SpeakerID != tokens[i-1].SpeakerID
			sentenceEnded := transcript.EndsSentence(tokens[i-1].Text)
			boundary = speakerChanged || sentenceEnded
		}
		if boundary {
			flush(tokens[i-1].EndSec)
			cur = transcript.Segment{SpeakerID: tok.SpeakerID, StartSec: tok.StartSec}
			curText = ""
		}
		if curText != "" {
			curText += " "
		}
		curText += tok.Text
	}
	flush(tokens[len(tokens)-1].EndSec)
	return segments
}

// translationToleranceSec is the slack allowed at either end of a segment
// when deciding whether a translation's range lies within it.
const translationToleranceSec = 0.1

// attachTranslations attaches to each segment the translations whose range
// lies within the segment's range (give or take translationToleranceSec),
// joining several in order into one. Translation stays nil when none fits
// (the translator has not caught up to that segment yet).
func attachTranslations(segments []transcript.Segment, translations []transcript.Translation) {
	for i := range segments {
		var joined *transcript.Translation
		for _, tr := range translations {
			if tr.StartSec < segments[i].StartSec-translationToleranceSec || tr.EndSec > segments[i].EndSec+translationToleranceSec {
				continue
			}
			if joined == nil {
				c := tr
				joined = &c
				continue
			}
			joined.Text += " " + tr.Text
			joined.EndSec = tr.EndSec
		}
		segments[i].Translation = joined
	}
}

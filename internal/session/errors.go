package session

// ErrorKind classifies a stage failure for recovery-policy purposes. See
// StageError for how each kind is handled.
type ErrorKind int

const (
	// DecoderMissing: the configured decode command could not be
	// launched at all (binary not found, bad arguments). Fatal.
	DecoderMissing ErrorKind = iota
	// DecoderCrash: the decode process exited unexpectedly mid-session.
	// Recoverable up to the decoder's configured restart budget.
	DecoderCrash
	// VadFailure: the external Vad capability returned an error on a
	// frame. Recoverable: the gate treats the frame as silent and
	// continues.
	VadFailure
	// AsrTransient: a transcriber policy call failed in a way that may
	// succeed on the next tick (timeout, rate limit). Recoverable.
	AsrTransient
	// AsrPersistent: the transcriber policy has failed repeatedly and is
	// no longer expected to recover within this session. Fatal.
	AsrPersistent
	// DiarizerFailure: a diarizer Assign call failed. Recoverable: the
	// window is treated as speaker-unknown (speaker 0).
	DiarizerFailure
	// TranslatorFailure: a translation call failed. Recoverable: the
	// failed sentence (and any later sentences from the same batch) is
	// skipped, not retried, and its segment ships without a translation.
	TranslatorFailure
	// Backpressure: a downstream stage's input channel was full and the
	// producer could not enqueue within its budget. Recoverable: the
	// producer drops the item and continues, per spec's bounded-channel
	// backpressure policy.
	Backpressure
)

func (k ErrorKind) String() string {
	switch k {
	case DecoderMissing:
		return "decoder_missing"
	case DecoderCrash:
		return "decoder_crash"
	case VadFailure:
		return "vad_failure"
	case AsrTransient:
		return "asr_transient"
	case AsrPersistent:
		return "asr_persistent"
	case DiarizerFailure:
		return "diarizer_failure"
	case TranslatorFailure:
		return "translator_failure"
	case Backpressure:
		return "backpressure"
	default:
		return "unknown"
	}
}

// Fatal reports whether this error kind terminates the session rather
// than being absorbed by the owning stage.
func (k ErrorKind) Fatal() bool {
	return k == DecoderMissing || k == AsrPersistent
}

// StageError wraps a stage-local error with its classification. A
// non-fatal StageError must never be allowed to mutate SessionState; the
// stage that produced it is responsible for skipping the affected item
// and continuing.
type StageError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError constructs a StageError.
func NewStageError(stage string, kind ErrorKind, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

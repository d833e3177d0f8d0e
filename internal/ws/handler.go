// Package ws implements the subscriber-facing transport: a WebSocket
// connection carries a JSON handshake Configuration frame, binary PCM
// audio frames in, and JSON SessionState snapshots (plus a terminal
// "ready_to_stop" frame) out. Shaped after the teacher's
// upgrade→handshake→per-message-dispatch→drain session loop.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/transcriberd/transcriberd/internal/audio"
	"github.com/transcriberd/transcriberd/internal/config"
	"github.com/transcriberd/transcriberd/internal/decoder"
	"github.com/transcriberd/transcriberd/internal/denoise"
	"github.com/transcriberd/transcriberd/internal/diag"
	"github.com/transcriberd/transcriberd/internal/diarize"
	"github.com/transcriberd/transcriberd/internal/ingress"
	"github.com/transcriberd/transcriberd/internal/metrics"
	"github.com/transcriberd/transcriberd/internal/model"
	"github.com/transcriberd/transcriberd/internal/publish"
	"github.com/transcriberd/transcriberd/internal/session"
	"github.com/transcriberd/transcriberd/internal/transcribe"
	"github.com/transcriberd/transcriberd/internal/vad"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Backends holds the shared, possibly-expensive-to-construct model
// adapters used by every session on this deployment.
type Backends struct {
	Vad            func() (model.Vad, error)
	Diarizer       model.Diarizer
	Translator     model.Translator
	EncoderDecoder func() (model.AsrEncoder, model.AsrDecoder)
	WholeChunkASR  func() model.AsrWholeChunkTranscriber
}

// HandlerConfig holds shared backends and deployment tuning.
type HandlerConfig struct {
	Backends       Backends
	Tuning         config.Tuning
	Diag           *diag.Store
	DecoderCommand string
}

// Handler manages WebSocket transcription sessions.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler creates a WebSocket handler over the given backends.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

// handshake is the first text frame a subscriber sends, mirroring spec
// §6's Configuration object.
type handshake struct {
	Language       string `json:"language"`
	TargetLanguage string `json:"target_language"`
	Diarization    *bool  `json:"diarization"`
	Translation    *bool  `json:"translation"`
	BackendPolicy  string `json:"backend_policy"`
	SampleRate     int    `json:"sample_rate"`
	Codec          string `json:"codec"`
}

// ServeHTTP upgrades the connection and runs the session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.runSession(conn)
}

func (h *Handler) runSession(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hs, err := readHandshake(conn)
	if err != nil {
		slog.Error("read handshake", "error", err)
		return
	}
	tuning := resolveTuning(hs, h.cfg.Tuning)
	if err := tuning.Validate(); err != nil {
		slog.Error("invalid session configuration", "error", err)
		sendError(conn, err)
		return
	}

	sessionID := uuid.NewString()
	metrics.SessionsTotal.Inc()
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	tracer := diag.NewTracer(h.cfg.Diag, sessionID)
	defer tracer.Close()

	sess, err := buildSession(sessionID, tuning, h.cfg.Backends)
	if err != nil {
		slog.Error("build session", "session_id", sessionID, "error", err)
		sendError(conn, err)
		return
	}

	sendLocked := newEventSender(conn)
	sess.Subscribe(func(snap session.Snapshot) {
		metrics.PublishedSnapshots.Inc()
		sendLocked(snap)
	})

	codec := audio.Codec(hs.Codec)
	if codec == "" {
		codec = audio.CodecPCM
	}
	inputRate := hs.SampleRate
	if inputRate == 0 {
		inputRate = 16000
	}

	var denoiser *denoise.Denoiser
	if tuning.Denoise {
		denoiser = denoise.New()
		defer denoiser.Close()
	}

	var dec *decoder.Decoder
	if !tuning.PCMInput {
		decCfg := decoder.DefaultConfig()
		if h.cfg.DecoderCommand != "" {
			decCfg.Command = h.cfg.DecoderCommand
		}
		decCfg.ChunkSamples = vadFrameSize
		dec = decoder.New(decCfg)
		if err := dec.Start(ctx); err != nil {
			stageErr := session.NewStageError("decoder", session.DecoderMissing, err)
			slog.Error("start decoder", "session_id", sessionID, "error", stageErr)
			metrics.Errors.WithLabelValues("decoder", session.DecoderMissing.String()).Inc()
			sendError(conn, stageErr)
			return
		}
		go func() {
			if werr := dec.Wait(ctx); werr != nil {
				slog.Error("decoder exited", "session_id", sessionID, "error", werr)
				metrics.DecoderRestarts.Inc()
			}
		}()
	}

	ing := ingress.New(ingress.Config{PCMInput: tuning.PCMInput, Codec: codec, SampleRate: inputRate}, dec, denoiser)

	frames := make(chan []float32, 256)
	go readAudioFrames(ctx, conn, ing, dec, frames)

	slog.Info("session started", "session_id", sessionID, "policy", tuning.BackendPolicy, "diarization", tuning.Diarization, "translation", tuning.Translation)
	if err := sess.Run(ctx, frames); err != nil {
		slog.Error("session run failed", "session_id", sessionID, "error", err)
	}
	slog.Info("session ended", "session_id", sessionID)
}

func resolveTuning(hs *handshake, base config.Tuning) config.Tuning {
	t := base
	if hs.Language != "" {
		t.Language = hs.Language
	}
	if hs.TargetLanguage != "" {
		t.TargetLanguage = hs.TargetLanguage
	}
	if hs.Diarization != nil {
		t.Diarization = *hs.Diarization
	}
	if hs.Translation != nil {
		t.Translation = *hs.Translation
	}
	if hs.BackendPolicy != "" {
		t.BackendPolicy = hs.BackendPolicy
	}
	return t
}

func buildSession(sessionID string, tuning config.Tuning, backends Backends) (*session.Session, error) {
	var policy transcribe.Policy
	if tuning.BackendPolicy == "align_att" {
		if backends.EncoderDecoder == nil {
			return nil, fmt.Errorf("build session: no streaming encoder/decoder backend configured for align_att policy")
		}
		enc, dec := backends.EncoderDecoder()
		cfg := transcribe.DefaultAlignAttConfig()
		cfg.FrameThreshold = tuning.FrameThreshold
		cfg.FireThreshold = tuning.FireThreshold
		cfg.BeamSize = tuning.BeamSize
		policy = transcribe.NewAlignAtt(enc, dec, cfg)
	} else {
		if backends.WholeChunkASR == nil {
			return nil, fmt.Errorf("build session: no whole-chunk ASR backend configured for local_agreement policy")
		}
		cfg := transcribe.DefaultLocalAgreementConfig()
		cfg.BufferTrimSec = tuning.BufferTrimmingSec
		policy = transcribe.NewLocalAgreement(backends.WholeChunkASR(), cfg)
	}

	v, err := backends.Vad()
	if err != nil {
		return nil, err
	}

	var diarizer model.Diarizer
	if tuning.Diarization {
		diarizer = backends.Diarizer
	}

	sessCfg := session.Config{
		SessionID:      sessionID,
		Policy:         policy,
		Vad:            v,
		VadConfig:      vad.DefaultConfig(),
		Diarizer:       diarizer,
		DiarizeConfig:  diarize.DefaultConfig(),
		Translator:     backends.Translator,
		PublishConfig:  publish.Config{Rate: tuning.PublishRate},
		SampleRate:     16000,
		MaxAsrFailures: tuning.MaxAsrFailures,
	}
	if tuning.Translation {
		sessCfg.TranslateConfig = session.TranslateConfig(tuning.Language, tuning.TargetLanguage)
	}
	return session.New(sessCfg)
}

// vadFrameSize must match the VAD gate's expected frame size (512
// samples); arbitrary-sized WebSocket binary messages are rebuffered to
// this boundary before being forwarded downstream. PCM-input sessions
// read raw samples directly here; sessions carrying a compressed codec
// are decoded by internal/decoder, read in chunks of this size (see
// drainDecoder).
const vadFrameSize = 512

// readAudioFrames reads binary frames off the WebSocket and hands them to
// Ingress. For PCM sessions Ingress returns decoded samples synchronously
// and this loop rebuffers them into fixed vadFrameSize chunks; for
// decoded sessions Ingress only forwards bytes into the decoder's stdin,
// and a second goroutine drains decoder.ReadChunk to produce frames. A
// zero-length WebSocket binary frame is treated as the ingress
// end-of-stream sentinel. For PCM sessions out is then closed; trailing
// samples that do not fill a whole vadFrameSize frame are not forwarded.
func readAudioFrames(ctx context.Context, conn *websocket.Conn, ing *ingress.Ingress, dec *decoder.Decoder, out chan<- []float32) {
	if dec != nil {
		go drainDecoder(ctx, dec, ing, out)
	} else {
		defer close(out)
	}

	var carry []float32
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if dec != nil {
				_, _, _ = ing.Feed(nil)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		samples, end, err := ing.Feed(data)
		if err != nil {
			slog.Error("ingress feed failed", "error", err)
			continue
		}
		if end {
			if dec == nil {
				return
			}
			continue
		}
		if dec != nil {
			continue // decoded samples arrive via drainDecoder
		}

		carry = append(carry, samples...)
		for len(carry) >= vadFrameSize {
			frame := make([]float32, vadFrameSize)
			copy(frame, carry[:vadFrameSize])
			carry = carry[vadFrameSize:]

			select {
			case out <- frame:
				metrics.AudioFramesProcessed.Inc()
			case <-ctx.Done():
				return
			}
		}
	}
}

// drainDecoder reads fixed-size int16 PCM chunks from the decoder until
// it reports io.EOF (after Ingress closes its stdin), converting each
// chunk to the pipeline's float32 sample domain.
func drainDecoder(ctx context.Context, dec *decoder.Decoder, ing *ingress.Ingress, out chan<- []float32) {
	defer close(out)
	for {
		chunk, err := dec.ReadChunk()
		if len(chunk) > 0 {
			frame := ing.Int16ToSamples(chunk)
			select {
			case out <- frame:
				metrics.AudioFramesProcessed.Inc()
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func newEventSender(conn *websocket.Conn) func(session.Snapshot) {
	var mu sync.Mutex
	return func(snap session.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		b, err := json.Marshal(snap)
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			slog.Error("write snapshot", "error", err)
			return
		}
		if snap.Ended {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ready_to_stop"}`))
		}
	}
}

func sendError(conn *websocket.Conn, err error) {
	b, _ := json.Marshal(map[string]string{"type": "error", "message": err.Error()})
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func readHandshake(conn *websocket.Conn) (*handshake, error) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var hs handshake
	if err = json.Unmarshal(data, &hs); err != nil {
		return nil, err
	}
	return &hs, nil
}

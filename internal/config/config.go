// Package config layers deployment configuration: environment variables
// for secrets/URLs/ports (via internal/env), and a static YAML file for
// tunable defaults, mirroring the teacher's env-vars-plus-JSON-tuning-file
// split but in YAML per the rest of the example pack's go-yaml usage.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/transcriberd/transcriberd/internal/env"
)

// Env holds deployment knobs read from the process environment.
type Env struct {
	Port           string
	DecoderCommand string
	SileroModelPath string
	PostgresURL    string
}

// LoadEnv reads deployment env vars with sensible local defaults.
func LoadEnv() Env {
	return Env{
		Port:            env.Str("TRANSCRIBERD_PORT", "8080"),
		DecoderCommand:  env.Str("TRANSCRIBERD_DECODER_CMD", "ffmpeg"),
		SileroModelPath: env.Str("TRANSCRIBERD_SILERO_MODEL", "/models/silero_vad.onnx"),
		PostgresURL:     env.Str("TRANSCRIBERD_POSTGRES_URL", ""),
	}
}

// Tuning holds per-deployment defaults for session-tunable knobs, loaded
// from a YAML file and overridden per-session by the Configuration object
// a subscriber sends at connect time.
type Tuning struct {
	BackendPolicy    string        `yaml:"backend_policy"`
	Language         string        `yaml:"language"`
	TargetLanguage   string        `yaml:"target_language"`
	Diarization      bool          `yaml:"diarization"`
	Translation      bool          `yaml:"translation"`
	PCMInput         bool          `yaml:"pcm_input"`
	Denoise          bool          `yaml:"denoise"`
	// FrameThreshold is the number of trailing encoder frames AlignAtt
	// treats as "too close to the stream tail" (~500ms at 25 default frames).
	FrameThreshold   int           `yaml:"frame_threshold"`
	// FireThreshold is AlignAtt's tail-mass commit threshold: a token
	// commits once its attention distribution's tail mass falls to or
	// below this probability.
	FireThreshold    float64       `yaml:"fire_threshold"`
	BeamSize         int           `yaml:"beam_size"`
	BufferTrimmingSec float64      `yaml:"buffer_trimming_sec"`
	PublishRate      time.Duration `yaml:"publish_rate"`
	// MaxAsrFailures is how many consecutive transcriber-tick failures a
	// session tolerates before escalating from recoverable AsrTransient
	// to fatal AsrPersistent and tearing the session down.
	MaxAsrFailures int `yaml:"max_asr_failures"`
}

// Defaults returns the published defaults for every tunable.
func Defaults() Tuning {
	return Tuning{
		BackendPolicy:     "local_agreement",
		Language:          "en",
		TargetLanguage:    "",
		Diarization:       false,
		Translation:       false,
		PCMInput:          true,
		Denoise:           false,
		FrameThreshold:    25,
		FireThreshold:     0.25,
		BeamSize:          1,
		BufferTrimmingSec: 1.0,
		PublishRate:       50 * time.Millisecond,
		MaxAsrFailures:    20,
	}
}

// Load reads a YAML tuning file if present, falling back to Defaults on
// any read or parse error rather than failing startup.
func Load(path string) Tuning {
	t := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Info("no tuning file, using defaults", "path", path)
		return t
	}
	if err = yaml.Unmarshal(data, &t); err != nil {
		slog.Warn("bad tuning file, using defaults", "path", path, "error", err)
		return Defaults()
	}
	slog.Info("loaded tuning", "path", path)
	return t
}

// Validate reports an error for tuning combinations that cannot be
// satisfied (e.g. translation requested without a target language).
func (t Tuning) Validate() error {
	if t.Translation && t.TargetLanguage == "" {
		return fmt.Errorf("config: translation enabled without target_language")
	}
	if t.BackendPolicy != "align_att" && t.BackendPolicy != "local_agreement" {
		return fmt.Errorf("config: unknown backend_policy %q", t.BackendPolicy)
	}
	return nil
}

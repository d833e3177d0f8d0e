package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// pooledTransport mirrors the teacher's NewPooledHTTPClient idiom: a
// tuned transport reused across every request to one ASR backend rather
// than the default client's unbounded per-host connection behavior.
func pooledTransport(poolSize int) *http.Transport {
	return &http.Transport{
		MaxIdleConns:        poolSize,
		MaxIdleConnsPerHost: poolSize,
		IdleConnTimeout:     90 * time.Second,
	}
}

// HTTPWholeChunkASR adapts a whole-chunk ASR HTTP backend to
// AsrWholeChunkTranscriber, posting raw 16 kHz mono float32 samples as
// JSON and parsing a word-timed response.
type HTTPWholeChunkASR struct {
	url    string
	client *http.Client
}

// NewHTTPWholeChunkASR constructs a client with a pooled transport sized
// for poolSize concurrent in-flight requests.
func NewHTTPWholeChunkASR(url string, poolSize int) *HTTPWholeChunkASR {
	return &HTTPWholeChunkASR{
		url:    url,
		client: &http.Client{Transport: pooledTransport(poolSize), Timeout: 30 * time.Second},
	}
}

type wholeChunkRequest struct {
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
}

type wholeChunkResponse struct {
	Words []struct {
		Text       string  `json:"text"`
		StartSec   float64 `json:"start_sec"`
		EndSec     float64 `json:"end_sec"`
		Confidence float64 `json:"confidence"`
	} `json:"words"`
	Language string `json:"language"`
}

// Transcribe posts samples to the configured backend URL and parses its
// word-timed JSON response.
func (c *HTTPWholeChunkASR) Transcribe(ctx context.Context, samples []float32, sampleRate int) (WholeChunkResult, error) {
	body, err := json.Marshal(wholeChunkRequest{Samples: samples, SampleRate: sampleRate})
	if err != nil {
		return WholeChunkResult{}, fmt.Errorf("http asr: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return WholeChunkResult{}, fmt.Errorf("http asr: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return WholeChunkResult{}, fmt.Errorf("http asr: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WholeChunkResult{}, fmt.Errorf("http asr: status %d", resp.StatusCode)
	}

	var wcr wholeChunkResponse
	if err = json.NewDecoder(resp.Body).Decode(&wcr); err != nil {
		return WholeChunkResult{}, fmt.Errorf("http asr: decode response: %w", err)
	}

	words := make([]Word, len(wcr.Words))
	for i, w := range wcr.Words {
		words[i] = Word{Text: w.Text, StartSec: w.StartSec, EndSec: w.EndSec, Confidence: w.Confidence}
	}
	return WholeChunkResult{Words: words, Language: wcr.Language}, nil
}

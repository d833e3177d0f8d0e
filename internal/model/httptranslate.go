package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPTranslator adapts a translation HTTP backend to the Translator
// capability, following the same pooled-client shape as HTTPWholeChunkASR.
type HTTPTranslator struct {
	url    string
	client *http.Client
}

// NewHTTPTranslator constructs a client with a pooled transport.
func NewHTTPTranslator(url string, poolSize int) *HTTPTranslator {
	return &HTTPTranslator{
		url:    url,
		client: &http.Client{Transport: pooledTransport(poolSize), Timeout: 10 * time.Second},
	}
}

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	Text string `json:"text"`
}

// Translate posts source text and returns the backend's translation.
func (c *HTTPTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	body, err := json.Marshal(translateRequest{Text: text, SourceLang: sourceLang, TargetLang: targetLang})
	if err != nil {
		return "", fmt.Errorf("http translate: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("http translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http translate: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http translate: status %d", resp.StatusCode)
	}

	var tr translateResponse
	if err = json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("http translate: decode response: %w", err)
	}
	return tr.Text, nil
}

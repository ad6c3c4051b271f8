package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNoGenerator = errors.New("summary generator not configured")

// Generator produces summary text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HTTPGenerator posts the prompt to an external text generation endpoint that
// answers {"text": "..."}.
type HTTPGenerator struct {
	url    string
	client *http.Client
}

func NewHTTPGenerator(url string) *HTTPGenerator {
	return &HTTPGenerator{url: strings.TrimSpace(url), client: &http.Client{Timeout: 60 * time.Second}}
}

func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.url == "" {
		return "", ErrNoGenerator
	}
	payload, err := json.Marshal(map[string]string{"system": systemPrompt, "prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("encode generator request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("generator returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode generator response: %w", err)
	}
	return strings.TrimSpace(body.Text), nil
}

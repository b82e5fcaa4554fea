package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/satyashodhak/factcheck-api/src/webclient"
)

// Tiered upstream failures. Handlers map these onto distinct status codes so
// the client can tell "try again later" from "contact support".
var (
	ErrRateLimited    = errors.New("gemini: rate limit exceeded")
	ErrQuotaExhausted = errors.New("gemini: credits exhausted")
	ErrRequestFailed  = errors.New("gemini: request failed")
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	defaults   Options
}

type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

func NewClient(apiKey string, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: webclient.NewDefault(120 * time.Second),
		defaults: Options{
			Model:           "gemini-pro",
			Temperature:     0.7,
			MaxOutputTokens: 2000,
		},
	}
}

// Generate sends one prompt and returns the model's text output.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	merged := c.merge(opts)

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     merged.Temperature,
			"maxOutputTokens": merged.MaxOutputTokens,
		},
	}
	b, _ := json.Marshal(reqBody)

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, merged.Model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		return "", ErrQuotaExhausted
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no response from model", ErrRequestFailed)
	}
	text := result.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", fmt.Errorf("%w: no response from model", ErrRequestFailed)
	}
	return text, nil
}

func (c *Client) merge(opts Options) Options {
	out := c.defaults
	if opts.Model != "" {
		out.Model = opts.Model
	}
	if opts.Temperature != 0 {
		out.Temperature = opts.Temperature
	}
	if opts.MaxOutputTokens != 0 {
		out.MaxOutputTokens = opts.MaxOutputTokens
	}
	return out
}

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```")
	fencedAny  = regexp.MustCompile("(?s)```\\s*\\n?(.*?)```")
)

// ExtractJSON peels a JSON object out of model prose. Models routinely wrap
// the object in a fenced code block, with or without a language tag.
func ExtractJSON(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := fencedAny.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

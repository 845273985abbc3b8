package generation

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

	"github.com/google/uuid"
)

const responseBodyReadLimit int64 = 1 << 20

var errProviderURLRequired = errors.New("generation provider base url is required")

// HTTPProvider talks to the external music generation API.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// ProviderOption configures optional provider behavior.
type ProviderOption func(*HTTPProvider)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *HTTPProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewHTTPProvider builds the provider client for the configured endpoint.
func NewHTTPProvider(baseURL, apiKey string, opts ...ProviderOption) (*HTTPProvider, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errProviderURLRequired
	}

	provider := &HTTPProvider{
		baseURL:    trimmed,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	return provider, nil
}

type generatePayload struct {
	JobID  string `json:"job_id"`
	Prompt string `json:"prompt"`
	Title  string `json:"title"`
	Genre  string `json:"genre"`
	Mood   string `json:"mood"`
}

type artifactPayload struct {
	AudioURL        string `json:"audio_url"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Generate submits the prompt and blocks until the provider returns the
// finished artifact or the context expires. The job id is sent as the
// provider-side idempotency key.
func (p *HTTPProvider) Generate(ctx context.Context, req GenerateRequest) (*Artifact, error) {
	payload, err := json.Marshal(generatePayload{
		JobID:  req.JobID.String(),
		Prompt: req.Prompt,
		Title:  req.Title,
		Genre:  string(req.Genre),
		Mood:   string(req.Mood),
	})
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.JobID.String())
	p.authorize(httpReq)

	return p.do(httpReq)
}

// Lookup recovers the artifact for a previously submitted job. A 404 from
// the provider means nothing is recoverable.
func (p *HTTPProvider) Lookup(ctx context.Context, jobID uuid.UUID) (*Artifact, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/generations/"+jobID.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build lookup request: %w", err)
	}
	p.authorize(httpReq)

	return p.do(httpReq)
}

func (p *HTTPProvider) authorize(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

func (p *HTTPProvider) do(req *http.Request) (*Artifact, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrResultUnknown
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload artifactPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if payload.AudioURL == "" {
		return nil, errors.New("provider response missing audio url")
	}
	return &Artifact{
		AudioURL:        payload.AudioURL,
		DurationSeconds: payload.DurationSeconds,
	}, nil
}

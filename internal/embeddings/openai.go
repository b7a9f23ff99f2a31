package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	pgvector "github.com/pgvector/pgvector-go"
)

// OpenAIProvider generates embeddings using OpenAI's API.
type OpenAIProvider struct {
	apiKey string
	model  string
	client *http.Client
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIProvider{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{},
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

type openAIRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding using the OpenAI API.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	body, err := json.Marshal(openAIRequest{
		Input:      text,
		Model:      p.model,
		Dimensions: Dimensions, // request 768 dims to match the index
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("calling OpenAI: %w: %w", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return pgvector.Vector{}, fmt.Errorf("OpenAI returned 429: %w", ErrRateLimited)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return pgvector.Vector{}, fmt.Errorf("OpenAI returned %d: %w", resp.StatusCode, ErrProviderUnavailable)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("reading response: %w: %w", ErrMalformedResponse, err)
	}

	var result openAIResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return pgvector.Vector{}, fmt.Errorf("parsing response: %w: %w", ErrMalformedResponse, err)
	}

	if result.Error != nil {
		return pgvector.Vector{}, fmt.Errorf("OpenAI error: %s: %w", result.Error.Message, ErrProviderUnavailable)
	}

	if len(result.Data) == 0 {
		return pgvector.Vector{}, fmt.Errorf("no embeddings returned: %w", ErrMalformedResponse)
	}
	if len(result.Data[0].Embedding) != Dimensions {
		return pgvector.Vector{}, fmt.Errorf("expected %d dimensions, got %d: %w",
			Dimensions, len(result.Data[0].Embedding), ErrMalformedResponse)
	}

	return pgvector.NewVector(result.Data[0].Embedding), nil
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// defaultGeminiEndpoint is the public Generative Language API base URL.
const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"

// geminiAdapter speaks the generateContent wire format: the API key travels
// as a query parameter and the model name is part of the URL path.
type geminiAdapter struct {
	provider string
	endpoint string
	apiKey   string
	client   *http.Client
}

func newGeminiAdapter(provider, endpoint, apiKey string, client *http.Client) *geminiAdapter {
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	return &geminiAdapter{
		provider: provider,
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   client,
	}
}

// geminiRequest is the generateContent request body. A single user turn
// carrying the full assembled prompt.
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// geminiResponse is the subset of the generateContent response we read.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate performs one generateContent call and returns the first
// candidate's text, whitespace-trimmed.
func (a *geminiAdapter) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
	})
	if err != nil {
		return "", &ProviderError{Provider: a.provider, Model: req.Model, Kind: KindPermanent,
			Message: fmt.Sprintf("marshal request: %v", err)}
	}

	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		a.endpoint, url.PathEscape(req.Model), url.QueryEscape(a.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", &ProviderError{Provider: a.provider, Model: req.Model, Kind: KindPermanent,
			Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Provider: a.provider, Model: req.Model, Kind: KindTransient,
			Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &ProviderError{Provider: a.provider, Model: req.Model, Kind: KindTransient,
			Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		var parsed geminiResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", &ProviderError{Provider: a.provider, Model: req.Model,
			StatusCode: resp.StatusCode, Kind: classifyStatus(resp.StatusCode), Message: msg}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProviderError{Provider: a.provider, Model: req.Model, Kind: KindTransient,
			Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &ProviderError{Provider: a.provider, Model: req.Model, Kind: KindTransient,
			Message: "response contained no candidates"}
	}

	return strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text), nil
}

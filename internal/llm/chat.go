package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// chatAdapter speaks the OpenAI-style chat-completions wire format used by
// DeepSeek and compatible backends: bearer authentication, the model named
// in the body, and the answer in the first choice's message content.
type chatAdapter struct {
	provider string
	endpoint string
	apiKey   string
	client   *http.Client
}

func newChatAdapter(provider, endpoint, apiKey string, client *http.Client) *chatAdapter {
	return &chatAdapter{provider: provider, endpoint: endpoint, apiKey: apiKey, client: client}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the subset of the chat-completions response we read.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate performs one chat-completions call and returns the first choice's
// message content, whitespace-trimmed.
func (a *chatAdapter) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return "", &ProviderError{Provider: a.provider, Model: req.Model, Kind: KindPermanent,
			Message: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &ProviderError{Provider: a.provider, Model: req.Model, Kind: KindPermanent,
			Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

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
		var parsed chatResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", &ProviderError{Provider: a.provider, Model: req.Model,
			StatusCode: resp.StatusCode, Kind: classifyStatus(resp.StatusCode), Message: msg}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProviderError{Provider: a.provider, Model: req.Model, Kind: KindTransient,
			Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Provider: a.provider, Model: req.Model, Kind: KindTransient,
			Message: "response contained no choices"}
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

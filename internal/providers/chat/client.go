// Package chat implements the OpenAI-compatible chat completions wire
// format shared by several providers.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"screenplay-backend/internal/providers"
)

// Client posts chat completion requests to one OpenAI-compatible endpoint.
type Client struct {
	Provider   string
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes one completion request.
type Options struct {
	Temperature *float32
	JSONObject  bool
	MaxTokens   int
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends one chat completion request and returns the assistant's content.
func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (string, providers.Usage, error) {
	var usage providers.Usage

	reqBody := chatRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONObject {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", usage, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", usage, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", usage, providers.NewCallError(c.Provider, providers.ClassifyTransportError(err), 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", usage, providers.NewCallError(c.Provider, providers.KindServerError, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := providers.ClassifyHTTPStatus(resp.StatusCode)
		return "", usage, providers.NewCallError(c.Provider, kind, resp.StatusCode,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", usage, providers.NewCallError(c.Provider, providers.KindInvalidResponse, resp.StatusCode,
			fmt.Errorf("response parse: %w", err))
	}
	if parsed.Usage != nil {
		usage = providers.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		}
	}
	if parsed.Error != nil {
		return "", usage, providers.NewCallError(c.Provider, providers.KindServerError, resp.StatusCode,
			fmt.Errorf("%s (%s)", parsed.Error.Message, parsed.Error.Type))
	}
	if len(parsed.Choices) == 0 {
		return "", usage, providers.NewCallError(c.Provider, providers.KindInvalidResponse, resp.StatusCode,
			fmt.Errorf("response missing choices"))
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", usage, providers.NewCallError(c.Provider, providers.KindInvalidResponse, resp.StatusCode,
			fmt.Errorf("response empty content"))
	}
	return content, usage, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package xai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"screenplay-backend/internal/providers"
	"screenplay-backend/internal/providers/chat"
)

const (
	apiURL       = "https://api.x.ai/v1/chat/completions"
	providerName = "xai"
)

// Client runs the reality-check analysis against the xAI API.
type Client struct {
	chat *chat.Client
}

// NewClient constructs a new xAI client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("XAI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("XAI_MODEL is required")
	}
	timeout := 90 * time.Second
	if raw := strings.TrimSpace(os.Getenv("XAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		chat: &chat.Client{
			Provider:   providerName,
			BaseURL:    apiURL,
			APIKey:     apiKey,
			Model:      model,
			HTTPClient: &http.Client{Timeout: timeout},
		},
	}, nil
}

func (c *Client) Name() string { return providerName }

// Analyze checks the script's internal logic and real-world plausibility.
func (c *Client) Analyze(ctx context.Context, input providers.Input) (json.RawMessage, providers.Usage, error) {
	temp := float32(0)
	messages := []chat.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildUserPrompt(input)},
	}
	content, usage, err := c.chat.Complete(ctx, messages, chat.Options{Temperature: &temp, JSONObject: true})
	if err != nil {
		return nil, usage, err
	}

	raw, ok := providers.ExtractJSONObject(content)
	if !ok {
		return json.RawMessage(content), usage, providers.NewCallError(providerName, providers.KindInvalidResponse, http.StatusOK,
			fmt.Errorf("content is not valid JSON"))
	}
	return raw, usage, nil
}

var _ providers.Adapter = (*Client)(nil)

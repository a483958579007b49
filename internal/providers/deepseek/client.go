package deepseek

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
	apiURL       = "https://api.deepseek.com/chat/completions"
	providerName = "deepseek"
)

// Client runs the financial analysis against the DeepSeek API. Reasoning
// models are slow, so the default timeout is generous.
type Client struct {
	chat *chat.Client
}

// NewClient constructs a new DeepSeek client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("DEEPSEEK_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("DEEPSEEK_MODEL is required")
	}
	timeout := 180 * time.Second
	if raw := strings.TrimSpace(os.Getenv("DEEPSEEK_TIMEOUT_SECONDS")); raw != "" {
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

// Analyze estimates production budget and return on investment.
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

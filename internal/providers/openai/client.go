package openai

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
	apiURL       = "https://api.openai.com/v1/chat/completions"
	providerName = "openai"
	detectorName = "detector"
)

// Client runs the commercial-viability analysis against the OpenAI API.
type Client struct {
	chat *chat.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("OPENAI_MODEL is required")
	}
	return &Client{
		chat: &chat.Client{
			Provider:   providerName,
			BaseURL:    apiURL,
			APIKey:     apiKey,
			Model:      model,
			HTTPClient: &http.Client{Timeout: timeoutFromEnv("OPENAI_TIMEOUT_SECONDS", 60*time.Second)},
		},
	}, nil
}

func (c *Client) Name() string { return providerName }

// Analyze assesses the script's commercial prospects.
func (c *Client) Analyze(ctx context.Context, input providers.Input) (json.RawMessage, providers.Usage, error) {
	temp := float32(0)
	messages := []chat.Message{
		{Role: "system", Content: commercialSystemPrompt},
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

// Detector checks whether a script adapts existing source material. It runs
// before the main provider fan-out so adaptation context can be fed into
// the other prompts.
type Detector struct {
	chat *chat.Client
}

// NewDetector constructs the source-material detector.
func NewDetector(apiKey, model string) (*Detector, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("DETECTOR_MODEL is required")
	}
	return &Detector{
		chat: &chat.Client{
			Provider:   detectorName,
			BaseURL:    apiURL,
			APIKey:     apiKey,
			Model:      model,
			HTTPClient: &http.Client{Timeout: timeoutFromEnv("DETECTOR_TIMEOUT_SECONDS", 60*time.Second)},
		},
	}, nil
}

func (d *Detector) Name() string { return detectorName }

// Detect returns the source-material verdict along with token usage.
func (d *Detector) Detect(ctx context.Context, title, scriptText string) (*providers.SourceDetection, providers.Usage, error) {
	temp := float32(0)
	messages := []chat.Message{
		{Role: "system", Content: detectorSystemPrompt},
		{Role: "user", Content: buildDetectorPrompt(title, scriptText)},
	}
	content, usage, err := d.chat.Complete(ctx, messages, chat.Options{Temperature: &temp, JSONObject: true})
	if err != nil {
		return nil, usage, err
	}

	raw, ok := providers.ExtractJSONObject(content)
	if !ok {
		return nil, usage, providers.NewCallError(detectorName, providers.KindInvalidResponse, http.StatusOK,
			fmt.Errorf("content is not valid JSON"))
	}
	var det providers.SourceDetection
	if err := json.Unmarshal(raw, &det); err != nil {
		return nil, usage, providers.NewCallError(detectorName, providers.KindInvalidResponse, http.StatusOK,
			fmt.Errorf("detection parse: %w", err))
	}
	return &det, usage, nil
}

func timeoutFromEnv(key string, def time.Duration) time.Duration {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Second
		}
	}
	return def
}

var _ providers.Adapter = (*Client)(nil)

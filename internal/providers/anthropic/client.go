package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"screenplay-backend/internal/providers"
)

const (
	apiURL           = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
	providerName     = "anthropic"
)

// Client runs the craft and genre analysis against the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a new Anthropic client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("ANTHROPIC_MODEL is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("ANTHROPIC_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Name() string { return providerName }

type messageRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Analyze scores the script's craft and identifies its genre.
func (c *Client) Analyze(ctx context.Context, input providers.Input) (json.RawMessage, providers.Usage, error) {
	var usage providers.Usage

	reqBody := messageRequest{
		Model:     c.model,
		MaxTokens: 4096,
		System:    systemPrompt,
		Messages: []chatMessage{
			{Role: "user", Content: buildUserPrompt(input)},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, usage, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, usage, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, usage, providers.NewCallError(providerName, providers.ClassifyTransportError(err), 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, usage, providers.NewCallError(providerName, providers.KindServerError, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := providers.ClassifyHTTPStatus(resp.StatusCode)
		return nil, usage, providers.NewCallError(providerName, kind, resp.StatusCode,
			fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed messageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, usage, providers.NewCallError(providerName, providers.KindInvalidResponse, resp.StatusCode,
			fmt.Errorf("response parse: %w", err))
	}
	if parsed.Usage != nil {
		usage = providers.Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		}
	}
	if parsed.Error != nil {
		return nil, usage, providers.NewCallError(providerName, providers.KindServerError, resp.StatusCode,
			fmt.Errorf("%s (%s)", parsed.Error.Message, parsed.Error.Type))
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return nil, usage, providers.NewCallError(providerName, providers.KindInvalidResponse, resp.StatusCode,
			fmt.Errorf("response empty content"))
	}

	raw, ok := providers.ExtractJSONObject(content)
	if !ok {
		// Raw text is still returned so callers can salvage a score from it.
		return json.RawMessage(content), usage, providers.NewCallError(providerName, providers.KindInvalidResponse, resp.StatusCode,
			fmt.Errorf("content is not valid JSON"))
	}
	return raw, usage, nil
}

var _ providers.Adapter = (*Client)(nil)

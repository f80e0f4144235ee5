package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultClaudeModel = "claude-3-haiku-20240307"
	claudeMaxTokens    = 1024
)

// statusError builds a ProviderError from a failed response, keeping a short
// body excerpt for the logs.
func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	status := http.StatusText(resp.StatusCode)
	if status == "" {
		status = resp.Status
	}
	return &ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Status:     status,
		Err:        errors.New(strings.TrimSpace(string(body))),
	}
}

// ── Local (Ollama) ──────────────────────────────────────────

type localDriver struct {
	client *http.Client
}

type localRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type localResponse struct {
	Response string `json:"response"`
}

func (d *localDriver) Kind() models.Provider { return models.ProviderLocal }

func (d *localDriver) Complete(ctx context.Context, cfg models.LLMConfig, prompt string) (string, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = models.DefaultLocalEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = models.DefaultLocalModel
	}

	body, _ := json.Marshal(localRequest{Model: model, Prompt: prompt, Stream: false})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return "", statusError("Ollama", httpResp)
	}

	var out localResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	return out.Response, nil
}

// ── OpenAI ──────────────────────────────────────────────────

type openAIDriver struct {
	client  *http.Client
	baseURL string
}

func (d *openAIDriver) Kind() models.Provider { return models.ProviderOpenAI }

func (d *openAIDriver) Complete(ctx context.Context, cfg models.LLMConfig, prompt string) (string, error) {
	if cfg.APIKey == "" {
		return "", errors.New("openai: api key not configured")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	occ := openai.DefaultConfig(cfg.APIKey)
	if d.baseURL != "" {
		occ.BaseURL = strings.TrimRight(d.baseURL, "/")
	}
	occ.HTTPClient = d.client
	client := openai.NewClientWithConfig(occ)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &ProviderError{
			Provider:   "OpenAI",
			StatusCode: apiErr.HTTPStatusCode,
			Status:     http.StatusText(apiErr.HTTPStatusCode),
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &ProviderError{
			Provider:   "OpenAI",
			StatusCode: reqErr.HTTPStatusCode,
			Status:     http.StatusText(reqErr.HTTPStatusCode),
			Err:        err,
		}
	}
	return fmt.Errorf("openai: request failed: %w", err)
}

// ── Claude ──────────────────────────────────────────────────

type claudeDriver struct {
	client  *http.Client
	baseURL string
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (d *claudeDriver) Kind() models.Provider { return models.ProviderClaude }

func (d *claudeDriver) Complete(ctx context.Context, cfg models.LLMConfig, prompt string) (string, error) {
	if cfg.APIKey == "" {
		return "", errors.New("claude: api key not configured")
	}
	endpoint := strings.TrimRight(d.baseURL, "/")
	if endpoint == "" {
		endpoint = "https://api.anthropic.com"
	}
	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}

	body, _ := json.Marshal(claudeRequest{
		Model:     model,
		MaxTokens: claudeMaxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("claude: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("claude: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return "", statusError("Claude", httpResp)
	}

	var out claudeResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("claude: decode response: %w", err)
	}
	if len(out.Content) == 0 {
		return "", errors.New("claude: empty response")
	}
	return out.Content[0].Text, nil
}

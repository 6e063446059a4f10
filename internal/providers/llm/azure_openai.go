package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eclipselink/handoff-backend/internal/utils"
)

const defaultCompletionTimeout = 120 * time.Second

// AzureOpenAI calls a chat-completion deployment on Azure OpenAI.
type AzureOpenAI struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	httpClient *http.Client
	logger     *logrus.Logger
}

type AzureOption func(*AzureOpenAI)

func WithHTTPClient(c *http.Client) AzureOption {
	return func(a *AzureOpenAI) {
		if c != nil {
			a.httpClient = c
		}
	}
}

func WithLogger(l *logrus.Logger) AzureOption {
	return func(a *AzureOpenAI) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAzureOpenAI(endpoint, apiKey, deployment, apiVersion string, opts ...AzureOption) (*AzureOpenAI, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" || strings.TrimSpace(apiKey) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, "llm.NewAzureOpenAI", "endpoint and api key are required", nil)
	}
	if deployment == "" {
		deployment = "gpt4-deployment-1"
	}
	if apiVersion == "" {
		apiVersion = "2024-02-15-preview"
	}

	a := &AzureOpenAI{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(apiKey),
		deployment: deployment,
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: defaultCompletionTimeout},
		logger:     logrus.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *AzureOpenAI) Close() error { return nil }

type chatCompletionRequest struct {
	Messages         []Message `json:"messages"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens"`
	TopP             float64   `json:"top_p"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
	PresencePenalty  float64   `json:"presence_penalty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *AzureOpenAI) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	start := time.Now()

	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrCompletionFailed)
	}

	reqBody := chatCompletionRequest{
		Messages:         messages,
		Temperature:      opts.Temperature,
		MaxTokens:        opts.MaxTokens,
		TopP:             opts.TopP,
		FrequencyPenalty: opts.FrequencyPenalty,
		PresencePenalty:  opts.PresencePenalty,
	}
	if reqBody.MaxTokens <= 0 {
		reqBody.MaxTokens = 2000
	}
	if reqBody.TopP <= 0 {
		reqBody.TopP = 0.95
	}

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrCompletionFailed, err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		a.endpoint, a.deployment, a.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	req.Header.Set("api-key", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrCompletionFailed, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: http %d: %s", ErrCompletionFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrCompletionFailed, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: api error: %s", ErrCompletionFailed, strings.TrimSpace(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrCompletionFailed)
	}

	choice := parsed.Choices[0]
	model := parsed.Model
	if model == "" {
		model = a.deployment
	}
	finish := choice.FinishReason
	if finish == "" {
		finish = "stop"
	}

	out := &Completion{
		Content:          choice.Message.Content,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
		Model:            model,
		FinishReason:     finish,
	}

	a.logger.WithFields(logrus.Fields{
		"model":             out.Model,
		"prompt_tokens":     out.PromptTokens,
		"completion_tokens": out.CompletionTokens,
		"total_tokens":      out.TotalTokens,
		"estimated_cost":    EstimateCost(out.PromptTokens, out.CompletionTokens),
		"finish_reason":     out.FinishReason,
		"duration_ms":       time.Since(start).Milliseconds(),
	}).Info("chat completion generated")

	return out, nil
}

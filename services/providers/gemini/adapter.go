package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tradelens/ai-gateway/services/providers"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-1.5-flash"
)

// GeminiAdapter implements the Provider interface for the Google Gemini
// generateContent REST API
type GeminiAdapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

// NewGeminiAdapter creates a new Gemini adapter
func NewGeminiAdapter(config providers.ProviderConfig) *GeminiAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.Model == "" {
		config.Model = defaultModel
	}

	return &GeminiAdapter{
		config:     config,
		httpClient: providers.HTTPClient(config),
	}
}

// Name returns the provider name
func (a *GeminiAdapter) Name() string {
	return "gemini"
}

// Model returns the default model
func (a *GeminiAdapter) Model() string {
	return a.config.Model
}

// IsConfigured reports whether an API key is set
func (a *GeminiAdapter) IsConfigured() bool {
	return a.config.APIKey != ""
}

// Generate calls models/{model}:generateContent with the prompt as a single user turn
func (a *GeminiAdapter) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	if !a.IsConfigured() {
		return nil, providers.NewProviderError(a.Name(), "NOT_CONFIGURED", "API key missing", 0, false, providers.ErrNotConfigured)
	}

	startTime := time.Now()
	model := providers.ResolveModel(req, a.config.Model)

	reqBody, err := json.Marshal(buildContentRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", a.config.BaseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.config.APIKey)
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "READ_ERROR", "failed to read response", httpResp.StatusCode, true, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var contentResp ContentResponse
	if err := json.Unmarshal(respBody, &contentResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", httpResp.StatusCode, false, err)
	}

	if contentResp.PromptFeedback != nil && contentResp.PromptFeedback.BlockReason != "" {
		return nil, providers.NewProviderError(a.Name(), "BLOCKED", "prompt blocked: "+contentResp.PromptFeedback.BlockReason, httpResp.StatusCode, false, nil)
	}

	text := contentResp.Text()
	if text == "" {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "response contained no candidates", httpResp.StatusCode, true, nil)
	}

	if contentResp.ModelVersion != "" {
		model = contentResp.ModelVersion
	}

	return &providers.GenerateResponse{
		Content: text,
		Model:   model,
		Usage: providers.Usage{
			PromptTokens:     contentResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: contentResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      contentResp.UsageMetadata.TotalTokenCount,
		},
		Latency: time.Since(startTime),
	}, nil
}

func buildContentRequest(req *providers.GenerateRequest) *ContentRequest {
	contentReq := &ContentRequest{
		Contents: []Content{
			{Role: "user", Parts: []Part{{Text: req.Prompt}}},
		},
	}

	if req.MaxTokens > 0 || req.Temperature > 0 {
		contentReq.GenerationConfig = &GenerationConfig{}
		if req.MaxTokens > 0 {
			contentReq.GenerationConfig.MaxOutputTokens = &req.MaxTokens
		}
		if req.Temperature > 0 {
			contentReq.GenerationConfig.Temperature = &req.Temperature
		}
	}

	return contentReq
}

func (a *GeminiAdapter) handleErrorResponse(statusCode int, body []byte) error {
	retryable := providers.RetryableStatus(statusCode)

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", fmt.Sprintf("status %d", statusCode), statusCode, retryable, errors.New(strings.TrimSpace(string(body))))
	}

	return providers.NewProviderError(
		a.Name(),
		errResp.Error.Status,
		fmt.Sprintf("status %d", statusCode),
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

// Gemini-specific request/response types

type ContentRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

type GenerationConfig struct {
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type ContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  UsageMetadata   `json:"usageMetadata"`
	ModelVersion   string          `json:"modelVersion"`
}

// Text concatenates the parts of the first candidate
func (r *ContentResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type PromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type ErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

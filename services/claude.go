package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultClaudeBaseURL = "https://api.anthropic.com/v1"
	claudeAPIVersion     = "2023-06-01"
)

// ClaudeProvider talks to the Anthropic Messages API over plain HTTP.
// Images are always sent inline; remote URIs are downloaded first because the
// API only accepts base64 sources.
type ClaudeProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClaudeProvider(apiKey, baseURL string) *ClaudeProvider {
	if baseURL == "" {
		baseURL = defaultClaudeBaseURL
	}
	return &ClaudeProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (p *ClaudeProvider) Name() string {
	return ProviderClaude
}

type claudeImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeContentBlock struct {
	Type   string             `json:"type"`
	Text   string             `json:"text,omitempty"`
	Source *claudeImageSource `json:"source,omitempty"`
}

type claudeMessage struct {
	Role    string               `json:"role"`
	Content []claudeContentBlock `json:"content"`
}

type claudeMessageRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int32           `json:"max_tokens"`
	Temperature float32         `json:"temperature"`
	TopP        *float32        `json:"top_p,omitempty"`
	TopK        *int            `json:"top_k,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int32 `json:"input_tokens"`
		OutputTokens int32 `json:"output_tokens"`
	} `json:"usage"`
}

func (p *ClaudeProvider) Complete(ctx context.Context, prompt string, params GenerationParams) (*ProviderResponse, error) {
	blocks := []claudeContentBlock{{Type: "text", Text: prompt}}
	return p.send(ctx, blocks, params)
}

func (p *ClaudeProvider) CompleteWithImage(ctx context.Context, prompt string, image ImageInput, params GenerationParams) (*ProviderResponse, error) {
	data := image.Data
	mimeType := image.MIMEType
	if !image.IsInline() {
		fetched, contentType, err := ReadFileFromUrl(image.URI)
		if err != nil {
			return nil, fmt.Errorf("fetching image %v: %w", image.URI, err)
		}
		data = fetched
		if mimeType == "" {
			mimeType = contentType
		}
	}
	blocks := []claudeContentBlock{
		{
			Type: "image",
			Source: &claudeImageSource{
				Type:      "base64",
				MediaType: mimeType,
				Data:      base64.StdEncoding.EncodeToString(data),
			},
		},
		{Type: "text", Text: prompt},
	}
	return p.send(ctx, blocks, params)
}

func (p *ClaudeProvider) send(ctx context.Context, blocks []claudeContentBlock, params GenerationParams) (*ProviderResponse, error) {
	reqBody := claudeMessageRequest{
		Model:       params.Model,
		MaxTokens:   params.MaxOutputTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		Messages: []claudeMessage{
			{Role: "user", Content: blocks},
		},
	}
	if params.TopK != nil {
		topK := int(*params.TopK)
		reqBody.TopK = &topK
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", claudeAPIVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("claude request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed claudeMessageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding claude response: %w", err)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return &ProviderResponse{
		Text:             text,
		InputTokenCount:  parsed.Usage.InputTokens,
		OutputTokenCount: parsed.Usage.OutputTokens,
		TotalTokenCount:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}, nil
}

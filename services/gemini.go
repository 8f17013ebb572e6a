package services

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

type GeminiProvider struct {
	apiKey string
}

func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey}
}

func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

func (p *GeminiProvider) Complete(ctx context.Context, prompt string, params GenerationParams) (*ProviderResponse, error) {
	parts := []*genai.Part{{Text: prompt}}
	return p.generate(ctx, parts, params)
}

func (p *GeminiProvider) CompleteWithImage(ctx context.Context, prompt string, image ImageInput, params GenerationParams) (*ProviderResponse, error) {
	// [Image, Text]
	var parts []*genai.Part
	if image.IsInline() {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: image.MIMEType,
				Data:     image.Data,
			},
		})
	} else {
		parts = append(parts, &genai.Part{
			FileData: &genai.FileData{
				FileURI:  image.URI,
				MIMEType: image.MIMEType,
			},
		})
	}
	parts = append(parts, &genai.Part{Text: prompt})
	return p.generate(ctx, parts, params)
}

func (p *GeminiProvider) generate(ctx context.Context, parts []*genai.Part, params GenerationParams) (*ProviderResponse, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: params.MaxOutputTokens,
		Temperature:     Float32Pointer(params.Temperature),
	}
	if params.TopP != nil {
		config.TopP = params.TopP
	}
	if params.TopK != nil {
		config.TopK = params.TopK
	}

	result, err := client.Models.GenerateContent(ctx, params.Model, []*genai.Content{{Parts: parts}}, config)
	if err != nil {
		return nil, err
	}

	for _, c := range result.Candidates {
		for _, rating := range c.SafetyRatings {
			if rating.Blocked {
				return nil, fmt.Errorf("content violation: response blocked for %s", rating.Category)
			}
		}
	}

	resp := &ProviderResponse{Text: result.Text()}
	if result.UsageMetadata != nil {
		resp.InputTokenCount = result.UsageMetadata.PromptTokenCount
		resp.OutputTokenCount = result.UsageMetadata.CandidatesTokenCount
		resp.TotalTokenCount = result.UsageMetadata.TotalTokenCount
	}
	return resp, nil
}

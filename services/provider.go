package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// GenerationParams are the per-call knobs forwarded to whichever provider is
// configured.
type GenerationParams struct {
	Model           string
	MaxOutputTokens int32
	Temperature     float32
	TopP            *float32
	TopK            *float32
}

// ImageInput carries a garment photo either inline or by URI. Inline data
// wins when both are set.
type ImageInput struct {
	Data     []byte
	URI      string
	MIMEType string
}

func (i ImageInput) IsInline() bool {
	return len(i.Data) > 0
}

type ProviderResponse struct {
	Text             string
	InputTokenCount  int32
	OutputTokenCount int32
	TotalTokenCount  int32
}

// LLMProvider is the minimal surface the pipeline needs from a model vendor.
type LLMProvider interface {
	Name() string
	Complete(ctx context.Context, prompt string, params GenerationParams) (*ProviderResponse, error)
	CompleteWithImage(ctx context.Context, prompt string, image ImageInput, params GenerationParams) (*ProviderResponse, error)
}

// ErrEmptyResponse marks a call that technically succeeded but produced no
// text. Retrying these burns quota for the same answer, so they are not
// retried.
var ErrEmptyResponse = errors.New("provider returned empty response")

// ProviderError wraps vendor failures that survived the retry loop.
type ProviderError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %v failed after %v attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func isTransientProviderError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "quota", "resource exhausted", "500", "502", "503", "504", "unavailable", "overloaded", "connection", "timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// NewProviderFromConfig picks the configured vendor adapter.
func NewProviderFromConfig(cfg *PipelineConfig) (LLMProvider, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is not set")
		}
		return NewGeminiProvider(cfg.GeminiAPIKey), nil
	case ProviderClaude:
		if cfg.ClaudeAPIKey == "" {
			return nil, errors.New("CLAUDE_API_KEY is not set")
		}
		return NewClaudeProvider(cfg.ClaudeAPIKey, cfg.ClaudeBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %v", cfg.Provider)
	}
}

// CallWithRetry runs one provider call with a per-attempt timeout and
// exponential backoff on transient failures. Every attempt, failed or not,
// emits one usage event; token counts are estimated from the payload when the
// provider never reported them. Empty responses and non-transient errors are
// returned immediately.
func CallWithRetry(
	ctx context.Context,
	providerName string,
	userID uint,
	op OperationKind,
	payload string,
	cfg *PipelineConfig,
	telemetry TelemetryRecorder,
	pricing PricingFunc,
	call func(ctx context.Context) (*ProviderResponse, error),
) (*ProviderResponse, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := cfg.BackoffBase

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		start := time.Now()
		resp, err := call(attemptCtx)
		cancel()
		durationMs := time.Since(start).Milliseconds()

		inputTokens := EstimateTokens(payload)
		var outputTokens, totalTokens int32
		if resp != nil {
			if resp.InputTokenCount > 0 {
				inputTokens = resp.InputTokenCount
			}
			outputTokens = resp.OutputTokenCount
			totalTokens = resp.TotalTokenCount
		}
		if totalTokens == 0 {
			totalTokens = inputTokens + outputTokens
		}
		telemetry.RecordProviderUsage(userID, op, totalTokens, pricing(inputTokens, outputTokens), durationMs)

		if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
			err = ErrEmptyResponse
		}
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, ErrEmptyResponse) {
			return nil, &ProviderError{Provider: providerName, Attempts: attempt, Err: err}
		}
		lastErr = err
		if !isTransientProviderError(err) {
			return nil, &ProviderError{Provider: providerName, Attempts: attempt, Err: err}
		}
		if attempt < maxAttempts {
			log.Printf("[Provider] %v attempt %v/%v failed, retrying in %v: %v", providerName, attempt, maxAttempts, backoff, err)
			select {
			case <-ctx.Done():
				return nil, &ProviderError{Provider: providerName, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, &ProviderError{Provider: providerName, Attempts: maxAttempts, Err: lastErr}
}

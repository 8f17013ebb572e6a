package services

import "log"

// TelemetryRecorder receives one usage event per provider attempt (including
// failed ones) and one outcome event per pipeline run. Implementations must
// not block the calling goroutine for long.
type TelemetryRecorder interface {
	RecordProviderUsage(userID uint, op OperationKind, totalTokens int32, costEstimate float64, durationMs int64)
	RecordPipelineOutcome(userID uint, op OperationKind, success bool, itemCount int, durationMs int64)
}

type LogTelemetryRecorder struct{}

func (LogTelemetryRecorder) RecordProviderUsage(userID uint, op OperationKind, totalTokens int32, costEstimate float64, durationMs int64) {
	log.Printf("[Telemetry] provider usage user=%v op=%v tokens=%v cost=%.6f duration=%vms", userID, op, totalTokens, costEstimate, durationMs)
}

func (LogTelemetryRecorder) RecordPipelineOutcome(userID uint, op OperationKind, success bool, itemCount int, durationMs int64) {
	log.Printf("[Telemetry] pipeline outcome user=%v op=%v success=%v items=%v duration=%vms", userID, op, success, itemCount, durationMs)
}

// PricingFunc estimates the dollar cost of one provider call from its token
// counts.
type PricingFunc func(inputTokens, outputTokens int32) float64

// PricingFor returns rough per-million-token rates for the configured
// provider. Estimates only, good enough for budget telemetry.
func PricingFor(provider string) PricingFunc {
	switch provider {
	case ProviderClaude:
		return perTokenPricing(3.0, 15.0)
	default:
		return perTokenPricing(0.30, 2.50)
	}
}

func perTokenPricing(inputPerMillion, outputPerMillion float64) PricingFunc {
	return func(inputTokens, outputTokens int32) float64 {
		return float64(inputTokens)*inputPerMillion/1e6 + float64(outputTokens)*outputPerMillion/1e6
	}
}

// EstimateTokens approximates a token count from payload length for attempts
// where the provider never returned usage metadata.
func EstimateTokens(payload string) int32 {
	return int32(len(payload) / 4)
}

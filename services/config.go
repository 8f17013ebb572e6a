package services

import (
	"log"
	"strconv"
	"time"
)

const (
	ProviderGemini = "gemini"
	ProviderClaude = "claude"

	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// PipelineConfig is read once at startup from the environment and shared
// read-only between the orchestrator, providers and cache.
type PipelineConfig struct {
	Provider string

	GeminiAPIKey  string
	ClaudeAPIKey  string
	ClaudeBaseURL string

	Model           string
	ImageModel      string
	MaxOutputTokens int32
	Temperature     float32
	TopP            *float32
	TopK            *float32

	CallTimeout time.Duration
	MaxAttempts int
	BackoffBase time.Duration

	CacheBackend    string
	RedisAddr       string
	RedisPassword   string
	StylingCacheTTL time.Duration
	ImageCacheTTL   time.Duration

	FallbackConfidenceCap float64
}

func LoadConfigFromEnv() *PipelineConfig {
	cfg := &PipelineConfig{
		Provider:      GetEnv("LLM_PROVIDER", ProviderGemini),
		GeminiAPIKey:  GetEnv("GEMINI_API_KEY", ""),
		ClaudeAPIKey:  GetEnv("CLAUDE_API_KEY", ""),
		ClaudeBaseURL: GetEnv("CLAUDE_BASE_URL", ""),

		Model:           GetEnv("LLM_MODEL", "gemini-2.5-flash"),
		ImageModel:      GetEnv("LLM_IMAGE_MODEL", "gemini-2.5-flash"),
		MaxOutputTokens: int32(envInt("LLM_MAX_OUTPUT_TOKENS", 4096)),
		Temperature:     float32(envFloat("LLM_TEMPERATURE", 0.4)),

		CallTimeout: envDuration("LLM_CALL_TIMEOUT", 60*time.Second),
		MaxAttempts: envInt("LLM_MAX_ATTEMPTS", 3),
		BackoffBase: envDuration("LLM_BACKOFF_BASE", 2*time.Second),

		CacheBackend:    GetEnv("CACHE_BACKEND", CacheBackendMemory),
		RedisAddr:       GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   GetEnv("REDIS_PASSWORD", ""),
		StylingCacheTTL: envDuration("STYLING_CACHE_TTL", time.Hour),
		ImageCacheTTL:   envDuration("IMAGE_CACHE_TTL", 24*time.Hour),

		FallbackConfidenceCap: envFloat("IMAGE_FALLBACK_CONFIDENCE_CAP", DefaultFallbackConfidenceCap),
	}
	if v := GetEnv("LLM_TOP_P", ""); v != "" {
		cfg.TopP = Float32Pointer(float32(parseFloatOr(v, 0.95)))
	}
	if v := GetEnv("LLM_TOP_K", ""); v != "" {
		cfg.TopK = Float32Pointer(float32(parseFloatOr(v, 40)))
	}
	return cfg
}

func envInt(key string, fallback int) int {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[Config] invalid %v=%v, using %v", key, raw, fallback)
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	return parseFloatOr(raw, fallback)
}

func parseFloatOr(raw string, fallback float64) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("[Config] invalid %v=%v, using %v", key, raw, fallback)
		return fallback
	}
	return v
}

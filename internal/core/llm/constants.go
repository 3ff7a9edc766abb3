package llm

import "time"

// Error message templates
const (
	errRateLimiter      = "rate limiter: %w"
	errOllamaCompletion = "ollama chat completion: %w"
	errGeminiCompletion = "gemini generate content: %w"
	errDuckAIHandshake  = "duckai handshake: %w"
	errDuckAIChat       = "duckai chat: %w"
	errDuckAIChallenge  = "duckai challenge: %w"
)

// Log key strings
const (
	logKeyProvider = "provider"
	logKeyModel    = "model"
	logKeyStatus   = "status"
	logKeyReason   = "reason"
	logKeyBytes    = "bytes"
)

// Session refresh reasons, used as metric labels.
const (
	refreshReasonInitial  = "initial"
	refreshReasonAuth     = "auth"
	refreshReasonRotation = "rotation"
)

const (
	rateLimiterBurst      = 1
	defaultRequestTimeout = 120 * time.Second
	maxErrorBodyBytes     = 2048
)

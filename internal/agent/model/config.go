package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	Store       string `envconfig:"CONVERSATION_STORE" default:"redis"`
	TTL         string `envconfig:"CONVERSATION_TTL" default:"30m"`
	MaxSessions int    `envconfig:"CONVERSATION_MAX_SESSIONS" default:"10000"`
	// MaxTurns caps a window that keeps the same label for a long time.
	MaxTurns int `envconfig:"CONVERSATION_MAX_TURNS" default:"20"`
}

// RouterModelConfig configures the model used for intent classification and
// slot extraction. Low temperature keeps the label replies stable.
type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"256"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

type ReasonerConfig struct {
	// MaxRounds bounds the model invocations of one reasoning session.
	// Two rounds allow exactly one tool round before the answer is forced.
	MaxRounds   int           `envconfig:"REASONER_MAX_ROUNDS" default:"2"`
	CallTimeout time.Duration `envconfig:"LLM_CALL_TIMEOUT" default:"30s"`
}

type SearchConfig struct {
	InfoLimit    int    `envconfig:"SEARCH_INFO_LIMIT" default:"5"`
	SuggestLimit int    `envconfig:"SEARCH_SUGGEST_LIMIT" default:"10"`
	Mode         string `envconfig:"SEARCH_MODE" default:"hybrid"`
}

package model

// ================ Config ================
type ConversationConfig struct {
	// TTL of 0 keeps session state until an explicit reset.
	TTL          string `envconfig:"SESSION_TTL" default:"0"`
	ResumeWindow string `envconfig:"SESSION_RESUME_WINDOW" default:"30m"`
	TurnTimeout  string `envconfig:"CONVERSATION_TURN_TIMEOUT" default:"45s"`
	History      struct {
		MaxTurns int `envconfig:"CONVERSATION_HISTORY_MAX_TURNS" default:"10"`
	}
	Search struct {
		Limit    int `envconfig:"CONVERSATION_SEARCH_LIMIT" default:"10"`
		PageSize int `envconfig:"CONVERSATION_PAGE_SIZE" default:"3"`
	}
}

type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

type ResponsePromptConfig struct {
	CompanyName string `envconfig:"PROMPT_COMPANY_NAME" default:"Chative Realty"`
	BotName     string `envconfig:"PROMPT_BOT_NAME" default:"Ava"`
	Market      string `envconfig:"PROMPT_MARKET" default:"Singapore"`
	Currency    string `envconfig:"PROMPT_CURRENCY" default:"SGD"`
	Timezone    string `envconfig:"PROMPT_TIMEZONE" default:"Asia/Singapore"`
}

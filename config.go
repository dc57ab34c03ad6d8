package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/chative-realty/leadbot/internal/agent/model"
	"github.com/chative-realty/leadbot/internal/core"
	"github.com/chative-realty/leadbot/internal/notify"
	"github.com/chative-realty/leadbot/pkg/background"
	logx "github.com/chative-realty/leadbot/pkg/logger"
	pkgredis "github.com/chative-realty/leadbot/pkg/redis"
	pkgsqlite "github.com/chative-realty/leadbot/pkg/sqlite"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`
	HTTPAddr    string           `envconfig:"HTTP_ADDR" default:":8080"`

	// Infrastructure
	Redis      pkgredis.Config
	Database   pkgsqlite.Config
	Background background.Config
	SMTP       notify.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Classifier   model.ClassifierModelConfig
	Response     model.ResponseModelConfig
	Prompt       model.ResponsePromptConfig
	Conversation model.ConversationConfig
}

func loadConfig(envFile string) (*AppConfig, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel})
	return &cfg, nil
}

func (c *AppConfig) sessionTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.Conversation.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid SESSION_TTL %q: %w", c.Conversation.TTL, err)
	}
	return ttl, nil
}

func (c *AppConfig) resumeWindow() (time.Duration, error) {
	w, err := time.ParseDuration(c.Conversation.ResumeWindow)
	if err != nil {
		return 0, fmt.Errorf("invalid SESSION_RESUME_WINDOW %q: %w", c.Conversation.ResumeWindow, err)
	}
	return w, nil
}

func (c *AppConfig) requireLLM() error {
	if c.APIKey == "" {
		return errors.New("GEMINI_API_KEY is required")
	}
	return nil
}

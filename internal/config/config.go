package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Twilio   TwilioConfig
	OpenAI   OpenAIConfig
	Call     CallConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// TwilioConfig holds Twilio account credentials and call placement settings
type TwilioConfig struct {
	AccountSID         string
	AuthToken          string
	FromNumber         string
	RingTimeoutSeconds int  // how long Twilio lets the phone ring before giving up
	ValidateSignatures bool // verify X-Twilio-Signature on webhook routes
}

// OpenAIConfig holds OpenAI API settings for the realtime and summary models
type OpenAIConfig struct {
	APIKey        string
	RealtimeModel string
	ChatModel     string
	Voice         string
}

// CallConfig holds feedback call behavior settings
type CallConfig struct {
	AnswerTimeout  time.Duration // how long a session may stay PENDING before it is failed
	MaxDuration    time.Duration // hard ceiling on a connected call
	GuidelinesPath string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port      int
	BaseURL   string // public URL Twilio reaches this service at, e.g. https://feedback.example.com
	WebAppURI string
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Twilio configuration
	if cfg.Twilio.AccountSID, err = requireEnv("TWILIO_ACCOUNT_SID"); err != nil {
		return nil, err
	}
	if cfg.Twilio.AuthToken, err = requireEnv("TWILIO_AUTH_TOKEN"); err != nil {
		return nil, err
	}
	if cfg.Twilio.FromNumber, err = requireEnv("TWILIO_FROM_NUMBER"); err != nil {
		return nil, err
	}
	ringTimeout := getEnvWithDefault("TWILIO_RING_TIMEOUT_SECONDS", "30")
	cfg.Twilio.RingTimeoutSeconds, err = strconv.Atoi(ringTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TWILIO_RING_TIMEOUT_SECONDS: %w", err)
	}
	validateSignatures := getEnvWithDefault("TWILIO_VALIDATE_SIGNATURES", "false")
	cfg.Twilio.ValidateSignatures, err = strconv.ParseBool(validateSignatures)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TWILIO_VALIDATE_SIGNATURES: %w", err)
	}

	// OpenAI configuration
	if cfg.OpenAI.APIKey, err = requireEnv("OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	cfg.OpenAI.RealtimeModel = getEnvWithDefault("OPENAI_REALTIME_MODEL", "gpt-realtime")
	cfg.OpenAI.ChatModel = getEnvWithDefault("OPENAI_CHAT_MODEL", "gpt-4o")
	cfg.OpenAI.Voice = getEnvWithDefault("OPENAI_VOICE", "marin")

	// Call behavior configuration
	answerTimeout := getEnvWithDefault("ANSWER_TIMEOUT_SECONDS", "60")
	answerTimeoutSecs, err := strconv.Atoi(answerTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ANSWER_TIMEOUT_SECONDS: %w", err)
	}
	cfg.Call.AnswerTimeout = time.Duration(answerTimeoutSecs) * time.Second

	maxDuration := getEnvWithDefault("MAX_CALL_DURATION_SECONDS", "300")
	maxDurationSecs, err := strconv.Atoi(maxDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MAX_CALL_DURATION_SECONDS: %w", err)
	}
	cfg.Call.MaxDuration = time.Duration(maxDurationSecs) * time.Second

	cfg.Call.GuidelinesPath = getEnvWithDefault("GUIDELINES_PATH", "guidelines/guidelines.txt")

	// Server configuration
	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}
	baseURL, err := requireEnv("BASE_URL")
	if err != nil {
		return nil, err
	}
	cfg.Server.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.Server.WebAppURI = getEnvWithDefault("WEBAPP_URI", "http://localhost:3000")

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Username, c.Password, c.Host, c.Name)
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

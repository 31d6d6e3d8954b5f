package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Business identity used in prompts, notifications and calendar exports.
	BusinessName  string
	BusinessPhone string
	OwnerPhone    string
	OwnerEmail    string

	// LLM provider selection: "groq", "ollama" or "gemini".
	LLMProvider  string
	GroqAPIKey   string
	GroqModel    string
	OllamaURL    string
	OllamaModel  string
	GeminiAPIKey string
	GeminiModel  string

	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioPhoneNumber  string
	TwilioWebhookCheck bool

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	AdminJWTSecret     string
	EnableDevEndpoints bool

	// Inbound SMS abuse controls.
	SMSPerMinute      int
	SMSBlockThreshold int
	SMSBlockDuration  time.Duration
	SMSDailyCap       int

	// How often expired conversations are purged.
	SweepInterval time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		BusinessName:  getEnv("BUSINESS_NAME", "Bookline"),
		BusinessPhone: getEnv("BUSINESS_PHONE", ""),
		OwnerPhone:    getEnv("OWNER_PHONE", ""),
		OwnerEmail:    getEnv("OWNER_EMAIL", ""),

		LLMProvider:  strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "ollama"))),
		GroqAPIKey:   getEnv("GROQ_API_KEY", ""),
		GroqModel:    getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:  getEnv("OLLAMA_MODEL", "llama3.1"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber:  getEnv("TWILIO_PHONE_NUMBER", ""),
		TwilioWebhookCheck: getEnvAsBool("TWILIO_WEBHOOK_CHECK", true),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Bookline"),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		EnableDevEndpoints: getEnvAsBool("ENABLE_DEV_ENDPOINTS", false),

		SMSPerMinute:      getEnvAsInt("SMS_PER_MINUTE", 10),
		SMSBlockThreshold: getEnvAsInt("SMS_BLOCK_THRESHOLD", 30),
		SMSBlockDuration:  getEnvAsDuration("SMS_BLOCK_DURATION", 24*time.Hour),
		SMSDailyCap:       getEnvAsInt("SMS_DAILY_CAP", 1000),

		SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Vault    VaultConfig
	Council  CouncilConfig
	Safety   SafetyConfig
	Pipeline PipelineConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type VaultConfig struct {
	// Backend selects the MemoryVault implementation: "redis", "postgres"
	// or "memory" (development only).
	Backend     string
	PostgresDSN string
	Namespace   string

	// Write retry policy. Keys are content/path derived, so a retried
	// write is idempotent.
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	RetryMaxRetries int
}

type CouncilConfig struct {
	// Members is a comma-separated list of "name|family|model|baseURL"
	// entries, e.g. "claude|openai|claude-3-sonnet|https://api.example.com".
	Members string
	// APIKey is the bearer token shared by chat-style backends that
	// require one. Per-member keys were not needed so far.
	APIKey      string
	CallTimeout time.Duration
	MaxTokens   int
	Temperature float64
}

type SafetyConfig struct {
	// Mode is "local" or "remote". Remote delegates to the evaluator
	// service at EndpointURL with the same request/response contract.
	Mode        string
	EndpointURL string
}

type PipelineConfig struct {
	HistoryLimit  int
	SessionLogDir string
	StageTimeout  time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/everlight.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Vault: VaultConfig{
			Backend:         getEnv("VAULT_BACKEND", "memory"),
			PostgresDSN:     getEnv("VAULT_POSTGRES_DSN", ""),
			Namespace:       getEnv("VAULT_NAMESPACE", "everlight"),
			RetryBaseDelay:  getEnvAsDuration("VAULT_RETRY_BASE_DELAY", 200*time.Millisecond),
			RetryMaxDelay:   getEnvAsDuration("VAULT_RETRY_MAX_DELAY", 5*time.Second),
			RetryMaxRetries: getEnvAsInt("VAULT_RETRY_MAX_RETRIES", 4),
		},
		Council: CouncilConfig{
			Members:     getEnv("COUNCIL_MEMBERS", "claude|openai|claude-3-sonnet|,titan|ollama|titan-text|http://localhost:11434,llama|ollama|llama3|http://localhost:11434"),
			APIKey:      getEnv("COUNCIL_API_KEY", ""),
			CallTimeout: getEnvAsDuration("COUNCIL_CALL_TIMEOUT", 30*time.Second),
			MaxTokens:   getEnvAsInt("COUNCIL_MAX_TOKENS", 1000),
			Temperature: getEnvAsFloat("COUNCIL_TEMPERATURE", 0.7),
		},
		Safety: SafetyConfig{
			Mode:        getEnv("SAFETY_MODE", "local"),
			EndpointURL: getEnv("SAFETY_ENDPOINT_URL", ""),
		},
		Pipeline: PipelineConfig{
			HistoryLimit:  getEnvAsInt("PIPELINE_HISTORY_LIMIT", 5),
			SessionLogDir: getEnv("PIPELINE_SESSION_LOG_DIR", "session_log"),
			StageTimeout:  getEnvAsDuration("PIPELINE_STAGE_TIMEOUT", 90*time.Second),
		},
	}
}

// Validate rejects configurations that would leave the pipeline unable
// to serve requests. Failures here are fatal at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Council.Members) == "" {
		return fmt.Errorf("config: COUNCIL_MEMBERS must declare at least one council member")
	}
	switch c.Vault.Backend {
	case "redis", "memory":
	case "postgres":
		if c.Vault.PostgresDSN == "" {
			return fmt.Errorf("config: VAULT_POSTGRES_DSN is required when VAULT_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("config: unsupported VAULT_BACKEND %q", c.Vault.Backend)
	}
	switch c.Safety.Mode {
	case "local":
	case "remote":
		if c.Safety.EndpointURL == "" {
			return fmt.Errorf("config: SAFETY_ENDPOINT_URL is required when SAFETY_MODE=remote")
		}
	default:
		return fmt.Errorf("config: unsupported SAFETY_MODE %q", c.Safety.Mode)
	}
	if c.Council.CallTimeout <= 0 {
		return fmt.Errorf("config: COUNCIL_CALL_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Ai       AIConfig
	Fusion   FusionConfig
	Analyzer AnalyzerConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	SessionTTL         time.Duration
}

type AIConfig struct {
	LLMProvider   string // "ollama", "openai", "huggingface"
	LLMModel      string // e.g. "llama3", "qwen2.5"
	OllamaBaseURL string
	LLMBaseURL    string // OpenAI-compatible endpoint, empty for api.openai.com
	APIKey        string
}

type FusionConfig struct {
	WindowSize            int
	HalfLife              time.Duration
	AudioWeight           float64
	VideoWeight           float64
	IncongruenceThreshold float64
}

type AnalyzerConfig struct {
	BaseURL string // audio SER + ASR sidecar, empty disables /api/analyze-audio
	Timeout time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			SessionTTL:         getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:      getEnv("LLM_MODEL", "llama3.1:8b"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMBaseURL:    getEnv("LLM_BASE_URL", ""),
			APIKey:        getEnv("LLM_API_KEY", ""),
		},
		Fusion: FusionConfig{
			WindowSize:            getEnvAsInt("FUSION_WINDOW_SIZE", 10),
			HalfLife:              getEnvAsDuration("FUSION_HALF_LIFE", 10*time.Second),
			AudioWeight:           getEnvAsFloat("FUSION_AUDIO_WEIGHT", 0.6),
			VideoWeight:           getEnvAsFloat("FUSION_VIDEO_WEIGHT", 0.4),
			IncongruenceThreshold: getEnvAsFloat("FUSION_INCONGRUENCE_THRESHOLD", 0.4),
		},
		Analyzer: AnalyzerConfig{
			BaseURL: getEnv("ANALYZER_BASE_URL", ""),
			Timeout: getEnvAsDuration("ANALYZER_TIMEOUT", 60*time.Second),
		},
	}
}

// BaseURL returns the endpoint for the configured provider.
func (c AIConfig) BaseURL() string {
	if c.LLMProvider == "ollama" {
		return c.OllamaBaseURL
	}
	return c.LLMBaseURL
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

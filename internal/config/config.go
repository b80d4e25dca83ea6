package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	TablePrefix string
	CORSOrigins string

	// Filesystem layout for generated and uploaded artifacts
	DataDir    string // base directory; the others default to subdirectories
	UploadDir  string // managed upload root for section images
	DeckDir    string // generated slide decks
	PreviewDir string // rasterized preview images

	// External rasterization process
	SofficeCommand   string
	RasterizeTimeout time.Duration

	// Deck rendering
	ImageFetchTimeout time.Duration

	// Background jobs
	JobTimeout time.Duration

	// Uploads
	MaxUploadBytes int64

	// Startup sweep of stale generated files
	TempFileMaxAge time.Duration

	// LLM configuration
	LLMProvider     string // "anthropic" or "lorem" (dev fallback)
	AnthropicAPIKey string
	LLMModel        string
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	dataDir := getEnv("DATA_DIR", "./data")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		TablePrefix: getTablePrefix(env),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173"),

		DataDir:    dataDir,
		UploadDir:  getEnv("UPLOAD_DIR", filepath.Join(dataDir, "uploaded_images")),
		DeckDir:    getEnv("DECK_DIR", filepath.Join(dataDir, "decks")),
		PreviewDir: getEnv("PREVIEW_DIR", filepath.Join(dataDir, "previews")),

		SofficeCommand:   getEnv("SOFFICE_COMMAND", "soffice"),
		RasterizeTimeout: getDuration("RASTERIZE_TIMEOUT", 30*time.Second),

		ImageFetchTimeout: getDuration("IMAGE_FETCH_TIMEOUT", 10*time.Second),

		JobTimeout: getDuration("JOB_TIMEOUT", 2*time.Minute),

		MaxUploadBytes: getInt64("MAX_UPLOAD_BYTES", 5<<20),

		TempFileMaxAge: getDuration("TEMP_FILE_MAX_AGE", 7*24*time.Hour),

		LLMProvider:     getEnv("LLM_PROVIDER", "anthropic"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "claude-haiku-4-5-20251001"),
	}
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

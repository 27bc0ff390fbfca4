package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Vector store and event backends.
const (
	VectorStoreQdrant = "qdrant"
	VectorStoreMemory = "memory"

	EventBackendMemory = "memory"
	EventBackendKafka  = "kafka"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort   string
	LogLevel  slog.Level
	LogFormat string
	DBPath    string

	LLMBaseURL     string
	LLMModelName   string
	LLMAPIKey      string
	LLMMaxTokens   int
	LLMTemperature float32

	EmbeddingBaseURL   string
	EmbeddingModelName string

	VectorStore      string
	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int
	UpsertBatchSize  int

	ChunkSize    int
	ChunkOverlap int
	DefaultTopK  int

	EventBackend     string
	KafkaBrokers     []string
	KafkaTopicPrefix string
	KafkaGroupID     string

	IngestThrottleLimit   int
	IngestThrottlePeriod  time.Duration
	IngestRateLimitPeriod time.Duration

	StepMaxAttempts int
	StepBackoff     time.Duration

	UploadDir      string
	MaxUploadBytes int64
	WatchDir       string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or up to five parents, it is loaded.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		DBPath:             getEnv("DB_PATH", "./data/pdfrag.db"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "https://api.openai.com"),
		LLMModelName:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMAPIKey:          os.Getenv("LLM_API_KEY"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "text-embedding-3-large"),
		VectorStore:        strings.ToLower(getEnv("VECTOR_STORE", VectorStoreQdrant)),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6334"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "docs"),
		EventBackend:       strings.ToLower(getEnv("EVENT_BACKEND", EventBackendMemory)),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", "rag"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "pdfrag-worker"),
		UploadDir:          getEnv("UPLOAD_DIR", "./uploads"),
		WatchDir:           getEnv("WATCH_DIR", ""),
	}
	// Embeddings default to the chat endpoint's host.
	cfg.EmbeddingBaseURL = getEnv("EMBEDDING_BASE_URL", cfg.LLMBaseURL)

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	// QDRANT_VECTOR_SIZE must match the output size of the embedding model.
	// If it changes, the collection must be recreated.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	ints := []struct {
		key string
		def int
		min int
		dst *int
	}{
		{"LLM_MAX_TOKENS", 1024, 1, &cfg.LLMMaxTokens},
		{"UPSERT_BATCH_SIZE", 64, 1, &cfg.UpsertBatchSize},
		{"CHUNK_SIZE", 1000, 1, &cfg.ChunkSize},
		{"CHUNK_OVERLAP", 200, 0, &cfg.ChunkOverlap},
		{"DEFAULT_TOP_K", 5, 1, &cfg.DefaultTopK},
		{"INGEST_THROTTLE_LIMIT", 2, 1, &cfg.IngestThrottleLimit},
		{"STEP_MAX_ATTEMPTS", 4, 1, &cfg.StepMaxAttempts},
	}
	for _, f := range ints {
		if *f.dst, err = getInt(f.key, f.def, f.min); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"INGEST_THROTTLE_PERIOD", time.Minute, &cfg.IngestThrottlePeriod},
		{"INGEST_RATE_LIMIT_PERIOD", 4 * time.Hour, &cfg.IngestRateLimitPeriod},
		{"STEP_BACKOFF", time.Second, &cfg.StepBackoff},
	}
	for _, f := range durations {
		if *f.dst, err = getDuration(f.key, f.def); err != nil {
			return nil, err
		}
	}
	if cfg.IngestThrottlePeriod <= 0 {
		return nil, fmt.Errorf("INGEST_THROTTLE_PERIOD must be greater than 0")
	}

	temperature, err := strconv.ParseFloat(getEnv("LLM_TEMPERATURE", "0.2"), 32)
	if err != nil {
		return nil, fmt.Errorf("LLM_TEMPERATURE must be a valid number: %w", err)
	}
	if temperature < 0 || temperature > 2 {
		return nil, fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}
	cfg.LLMTemperature = float32(temperature)

	maxUpload, err := getInt("MAX_UPLOAD_MB", 64, 1)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload) << 20

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be less than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	switch cfg.VectorStore {
	case VectorStoreQdrant, VectorStoreMemory:
	default:
		return nil, fmt.Errorf("VECTOR_STORE must be %s or %s, got %q", VectorStoreQdrant, VectorStoreMemory, cfg.VectorStore)
	}

	switch cfg.EventBackend {
	case EventBackendMemory:
	case EventBackendKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("KAFKA_BROKERS is required when EVENT_BACKEND is kafka")
		}
	default:
		return nil, fmt.Errorf("EVENT_BACKEND must be %s or %s, got %q", EventBackendMemory, EventBackendKafka, cfg.EventBackend)
	}

	// Create the data directory for the database file
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue, min int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if v < min {
		return 0, fmt.Errorf("%s must be at least %d, got %d", key, min, v)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

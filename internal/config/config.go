package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"chessrag/internal/chunker"
	"chessrag/internal/tokens"
)

// CorpusDir is a named directory of PGN files.
type CorpusDir struct {
	Name string
	Path string
}

// Config holds all configuration for the application.
type Config struct {
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingAPIKey    string
	EmbeddingBatchSize int
	DBPath             string
	Corpora            []CorpusDir
	QdrantURL          string
	QdrantCollection   string
	QdrantVectorSize   int
	APIPort            string
	LogLevel           slog.Level
	LogFormat          string
	Workers            int
	TokenEncoding      string
	Chunker            chunker.Config
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or a parent, it is loaded first;
// variables already set take precedence over .env values.
func Load() (*Config, error) {
	loadDotEnv()

	logLevel, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "nomic-embed-text-v1.5"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", "dummy-key"),
		DBPath:             getEnv("DB_PATH", "./data/chessrag.db"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "game_chunks"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogLevel:           logLevel,
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		TokenEncoding:      getEnv("TOKEN_ENCODING", tokens.DefaultEncoding),
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	// The vector size must match the embeddings model output; changing it requires
	// recreating the Qdrant collection.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	if cfg.QdrantVectorSize, err = positiveInt("QDRANT_VECTOR_SIZE", vectorSizeStr); err != nil {
		return nil, err
	}
	if cfg.EmbeddingBatchSize, err = positiveInt("EMBEDDING_BATCH_SIZE", getEnv("EMBEDDING_BATCH_SIZE", "32")); err != nil {
		return nil, err
	}
	if cfg.Workers, err = positiveInt("INDEX_WORKERS", getEnv("INDEX_WORKERS", "4")); err != nil {
		return nil, err
	}

	if cfg.Corpora, err = parseCorpora(getEnv("PGN_CORPORA", "")); err != nil {
		return nil, err
	}

	if cfg.Chunker, err = loadChunker(); err != nil {
		return nil, err
	}

	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// LoadChunker returns the chunker configuration alone, for tools that do not index.
func LoadChunker() (chunker.Config, error) {
	loadDotEnv()
	return loadChunker()
}

// loadChunker starts from the defaults, applies CHUNKER_TUNING_FILE, then the CHUNK_* variables.
func loadChunker() (chunker.Config, error) {
	cfg := chunker.DefaultConfig()

	if path := getEnv("CHUNKER_TUNING_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return chunker.Config{}, fmt.Errorf("failed to read chunker tuning file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return chunker.Config{}, fmt.Errorf("failed to parse chunker tuning file %s: %w", path, err)
		}
	}

	var errs []error
	overrideInt := func(key string, dst *int) {
		if v := getEnv(key, ""); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be a valid integer: %w", key, err))
				return
			}
			*dst = n
		}
	}
	overrideInt("CHUNK_TOKEN_BUDGET", &cfg.Budget)
	overrideInt("CHUNK_MIN_TOKENS", &cfg.MinChunkTokens)
	overrideInt("CHUNK_CHECKPOINT_INTERVAL", &cfg.CheckpointInterval)
	overrideInt("CHUNK_TRANSPOSITION_TOP_K", &cfg.TranspositionTopK)
	if v := getEnv("CHUNK_EVAL_SWING", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHUNK_EVAL_SWING must be a number: %w", err))
		} else {
			cfg.EvalSwing = f
		}
	}
	if len(errs) > 0 {
		return chunker.Config{}, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return chunker.Config{}, fmt.Errorf("invalid chunker configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads the nearest .env file, looking in the working directory and up to
// four parents. Missing files are not an error.
func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// parseCorpora reads "name=path,name=path". A bare path is named after its last element.
func parseCorpora(value string) ([]CorpusDir, error) {
	if strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("PGN_CORPORA is required")
	}
	var dirs []CorpusDir
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, path, ok := strings.Cut(entry, "=")
		if !ok {
			path = entry
			name = filepath.Base(filepath.Clean(entry))
		}
		name, path = strings.TrimSpace(name), strings.TrimSpace(path)
		if name == "" || path == "" {
			return nil, fmt.Errorf("invalid PGN_CORPORA entry %q", entry)
		}
		dirs = append(dirs, CorpusDir{Name: name, Path: path})
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("PGN_CORPORA is required")
	}
	return dirs, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func positiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return n, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

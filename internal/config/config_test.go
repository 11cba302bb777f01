package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"chessrag/internal/chunker"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

var managedEnv = []string{
	"PGN_CORPORA", "QDRANT_VECTOR_SIZE",
	"EMBEDDING_BASE_URL", "EMBEDDING_MODEL_NAME", "EMBEDDING_API_KEY", "EMBEDDING_BATCH_SIZE",
	"DB_PATH", "QDRANT_URL", "QDRANT_COLLECTION", "API_PORT",
	"LOG_LEVEL", "LOG_FORMAT", "INDEX_WORKERS", "TOKEN_ENCODING",
	"CHUNKER_TUNING_FILE", "CHUNK_TOKEN_BUDGET", "CHUNK_MIN_TOKENS",
	"CHUNK_CHECKPOINT_INTERVAL", "CHUNK_EVAL_SWING", "CHUNK_TRANSPOSITION_TOP_K",
}

// isolateEnv clears every variable Load reads and restores them when the test ends.
func isolateEnv(t *testing.T) {
	t.Helper()
	originalEnv := make(map[string]string)
	for _, key := range managedEnv {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	t.Cleanup(func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*testing.T, *Config)
	}{
		{
			name: "valid config with required fields",
			setupEnv: func(t *testing.T) {
				setEnv("PGN_CORPORA", "masters="+t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
			},
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.QdrantVectorSize != 768 {
					t.Errorf("QdrantVectorSize = %d, want 768", cfg.QdrantVectorSize)
				}
				if len(cfg.Corpora) != 1 || cfg.Corpora[0].Name != "masters" {
					t.Errorf("Corpora = %+v", cfg.Corpora)
				}
				if cfg.Chunker != chunker.DefaultConfig() {
					t.Errorf("Chunker = %+v, want defaults", cfg.Chunker)
				}
				if cfg.QdrantCollection != "game_chunks" {
					t.Errorf("QdrantCollection = %q", cfg.QdrantCollection)
				}
				if cfg.EmbeddingBatchSize != 32 || cfg.Workers != 4 {
					t.Errorf("EmbeddingBatchSize = %d, Workers = %d", cfg.EmbeddingBatchSize, cfg.Workers)
				}
				if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "text" {
					t.Errorf("LogLevel = %v, LogFormat = %q", cfg.LogLevel, cfg.LogFormat)
				}
			},
		},
		{
			name: "missing PGN_CORPORA",
			setupEnv: func(t *testing.T) {
				setEnv("QDRANT_VECTOR_SIZE", "768")
			},
			wantErr: true,
		},
		{
			name: "missing QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("PGN_CORPORA", t.TempDir())
			},
			wantErr: true,
		},
		{
			name: "invalid QDRANT_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("PGN_CORPORA", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "not-a-number")
			},
			wantErr: true,
		},
		{
			name: "zero INDEX_WORKERS",
			setupEnv: func(t *testing.T) {
				setEnv("PGN_CORPORA", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("INDEX_WORKERS", "0")
			},
			wantErr: true,
		},
		{
			name: "invalid LOG_LEVEL",
			setupEnv: func(t *testing.T) {
				setEnv("PGN_CORPORA", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LOG_LEVEL", "loud")
			},
			wantErr: true,
		},
		{
			name: "invalid LOG_FORMAT",
			setupEnv: func(t *testing.T) {
				setEnv("PGN_CORPORA", t.TempDir())
				setEnv("QDRANT_VECTOR_SIZE", "768")
				setEnv("LOG_FORMAT", "xml")
			},
			wantErr: true,
		},
		{
			name: "custom values",
			setupEnv: func(t *testing.T) {
				setEnv("PGN_CORPORA", "a=/data/a, b=/data/b")
				setEnv("QDRANT_VECTOR_SIZE", "1024")
				setEnv("EMBEDDING_BASE_URL", "http://custom:8081")
				setEnv("QDRANT_COLLECTION", "custom_collection")
				setEnv("API_PORT", "8080")
				setEnv("LOG_LEVEL", "debug")
				setEnv("LOG_FORMAT", "JSON")
				setEnv("CHUNK_TOKEN_BUDGET", "2000")
			},
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.EmbeddingBaseURL != "http://custom:8081" || cfg.APIPort != "8080" {
					t.Errorf("EmbeddingBaseURL = %q, APIPort = %q", cfg.EmbeddingBaseURL, cfg.APIPort)
				}
				if cfg.QdrantCollection != "custom_collection" {
					t.Errorf("QdrantCollection = %q", cfg.QdrantCollection)
				}
				if len(cfg.Corpora) != 2 || cfg.Corpora[1] != (CorpusDir{Name: "b", Path: "/data/b"}) {
					t.Errorf("Corpora = %+v", cfg.Corpora)
				}
				if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "json" {
					t.Errorf("LogLevel = %v, LogFormat = %q", cfg.LogLevel, cfg.LogFormat)
				}
				if cfg.Chunker.Budget != 2000 {
					t.Errorf("Chunker.Budget = %d, want 2000", cfg.Chunker.Budget)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			setEnv("DB_PATH", filepath.Join(t.TempDir(), "data", "test.db"))
			tt.setupEnv(t)

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if _, err := os.Stat(filepath.Dir(cfg.DBPath)); err != nil {
				t.Errorf("data directory not created: %v", err)
			}
			if tt.checkConfig != nil {
				tt.checkConfig(t, cfg)
			}
		})
	}
}

func TestParseCorpora(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    []CorpusDir
		wantErr bool
	}{
		{
			name:  "named entries",
			value: "masters=/pgn/masters,club=/pgn/club",
			want:  []CorpusDir{{Name: "masters", Path: "/pgn/masters"}, {Name: "club", Path: "/pgn/club"}},
		},
		{
			name:  "bare path uses base name",
			value: "/pgn/openings/",
			want:  []CorpusDir{{Name: "openings", Path: "/pgn/openings/"}},
		},
		{
			name:  "empty entries skipped",
			value: "a=/x,,",
			want:  []CorpusDir{{Name: "a", Path: "/x"}},
		},
		{name: "empty", value: " ", wantErr: true},
		{name: "missing name", value: "=/x", wantErr: true},
		{name: "missing path", value: "a=", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCorpora(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCorpora() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseCorpora() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseCorpora()[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLoadChunker(t *testing.T) {
	t.Run("tuning file then env overrides", func(t *testing.T) {
		isolateEnv(t)
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		yaml := "budget: 3000\nmin_chunk_tokens: 200\neval_swing: 0.5\n"
		if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
			t.Fatal(err)
		}
		setEnv("CHUNKER_TUNING_FILE", path)
		setEnv("CHUNK_MIN_TOKENS", "250")

		cfg, err := LoadChunker()
		if err != nil {
			t.Fatalf("LoadChunker() error = %v", err)
		}
		want := chunker.DefaultConfig()
		want.Budget = 3000
		want.MinChunkTokens = 250
		want.EvalSwing = 0.5
		if cfg != want {
			t.Errorf("LoadChunker() = %+v, want %+v", cfg, want)
		}
	})

	t.Run("invalid budget rejected", func(t *testing.T) {
		isolateEnv(t)
		setEnv("CHUNK_TOKEN_BUDGET", "0")
		_, err := LoadChunker()
		if !errors.Is(err, chunker.ErrInvalidBudget) {
			t.Errorf("LoadChunker() error = %v, want ErrInvalidBudget", err)
		}
	})

	t.Run("malformed override", func(t *testing.T) {
		isolateEnv(t)
		setEnv("CHUNK_EVAL_SWING", "big")
		if _, err := LoadChunker(); err == nil {
			t.Error("LoadChunker() expected error")
		}
	})

	t.Run("missing tuning file", func(t *testing.T) {
		isolateEnv(t)
		setEnv("CHUNKER_TUNING_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
		if _, err := LoadChunker(); err == nil {
			t.Error("LoadChunker() expected error")
		}
	})
}

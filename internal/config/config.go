package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"docsage"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"docsage"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	OCRServiceURL string `envconfig:"OCR_SERVICE_URL" default:"http://ocr:8000"`
	NSQLookupd    string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost      string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP      string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	EnableAPI           bool   `envconfig:"ENABLE_API" default:"true"`
	EnableReindexWorker bool   `envconfig:"ENABLE_REINDEX_WORKER" default:"true"`
	MigrationPath       string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	GeminiAPIKey        string `envconfig:"GEMINI_API_KEY"`
	RerankProvider      string `envconfig:"RERANK_PROVIDER"`
	RerankAPIKey        string `envconfig:"RERANK_API_KEY"`
	NSQMaxMsgSize       int64  `envconfig:"NSQ_MAX_MSG_SIZE" default:"10485760"` // 10MB

	// Models
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	GenerateModel  string `envconfig:"GENERATE_MODEL" default:"gemini-2.0-flash"`

	// Pipeline
	Categories         []string `envconfig:"CATEGORIES" default:"hr,finance,legal,technical,general"`
	ChunkProfile       string   `envconfig:"CHUNK_PROFILE" default:"default"`
	ChunkSize          int      `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap       int      `envconfig:"CHUNK_OVERLAP" default:"200"`
	EmbedConcurrency   int      `envconfig:"EMBED_CONCURRENCY" default:"8"`
	StepTimeoutSeconds int      `envconfig:"STEP_TIMEOUT_SECONDS" default:"120"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: CATEGORIES", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid chunking configuration: size=%d overlap=%d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.EmbedConcurrency <= 0 {
		return fmt.Errorf("invalid EMBED_CONCURRENCY: %d", c.EmbedConcurrency)
	}
	return nil
}

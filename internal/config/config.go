// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.lectern/config.yaml or ./config.yaml)
//  3. Default values
//
// A .env file in the working directory is loaded first as a convenience for
// local development (GEMINI_API_KEY lives there in most setups; the Genkit
// plugin reads it directly, not via Viper).
//
// Validation is fail-fast: Load returns an error for any out-of-range value
// rather than limping along with a half-usable configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation, checkable with errors.Is.
var (
	// ErrInvalidChunkSize indicates the chunk size is out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidChunkOverlap indicates the overlap is negative or >= chunk size.
	ErrInvalidChunkOverlap = errors.New("invalid chunk overlap")

	// ErrInvalidMaxResults indicates the search result limit is out of range.
	ErrInvalidMaxResults = errors.New("invalid max results")

	// ErrInvalidMaxHistory indicates the session history cap is out of range.
	ErrInvalidMaxHistory = errors.New("invalid max history")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidAddr indicates the serve address is malformed.
	ErrInvalidAddr = errors.New("invalid listen address")
)

// Defaults mirroring the effect each field has on the pipeline. See the
// field documentation on Config.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
	DefaultMaxResults   = 5
	DefaultMaxHistory   = 4

	DefaultModelName     = "gemini-2.5-flash"
	DefaultEmbedderModel = "gemini-embedding-001"
)

// Config stores the application configuration. It is constructed once by
// Load at startup, validated, and passed down read-only; nothing mutates it
// afterwards.
type Config struct {
	// Model configuration. ModelName is provider-qualified for Genkit when
	// it contains a slash; otherwise "googleai/" is assumed.
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// ChunkSize bounds the character length of a content chunk. A single
	// sentence longer than this still becomes one oversized chunk.
	ChunkSize int `mapstructure:"chunk_size" json:"chunk_size"`

	// ChunkOverlap bounds how many trailing characters of the previous
	// chunk are repeated at the start of the next one. Must be < ChunkSize.
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// MaxResults bounds how many chunks a single search returns, which in
	// turn bounds tool-call latency and token cost.
	MaxResults int `mapstructure:"max_results" json:"max_results"`

	// MaxHistory bounds the number of conversation exchanges kept per
	// session, which bounds context-window growth across a long
	// conversation. Zero disables history entirely.
	MaxHistory int `mapstructure:"max_history" json:"max_history"`

	// DocsDir is the course corpus directory ingested at startup.
	DocsDir string `mapstructure:"docs_dir" json:"docs_dir"`

	// IndexDir is where the vector index persists between runs. Empty means
	// in-memory only (every start re-ingests from scratch).
	IndexDir string `mapstructure:"index_dir" json:"index_dir"`

	// Serve mode configuration.
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	// Best-effort .env load; absence is the normal case in production.
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".lectern")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("max_results", DefaultMaxResults)
	v.SetDefault("max_history", DefaultMaxHistory)

	v.SetDefault("docs_dir", "./docs")
	v.SetDefault("index_dir", "")

	v.SetDefault("addr", ":8000")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_burst", 60)
}

// bindEnvVariables binds environment overrides explicitly. Hardcoded keys
// cannot fail to bind; a bind error here is a bug, so it panics.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "LECTERN_MODEL_NAME")
	mustBind("embedder_model", "LECTERN_EMBEDDER_MODEL")
	mustBind("docs_dir", "LECTERN_DOCS_DIR")
	mustBind("index_dir", "LECTERN_INDEX_DIR")
	mustBind("addr", "LECTERN_ADDR")
	mustBind("cors_origins", "LECTERN_CORS_ORIGINS")

	// NOTE: GEMINI_API_KEY is read directly by the Genkit googlegenai
	// plugin, not via Viper.
}

// Validate checks all configuration values and reports the first violation.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.ChunkSize < 100 || c.ChunkSize > 100_000 {
		return fmt.Errorf("%w: %d (must be 100..100000)", ErrInvalidChunkSize, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: %d (must be 0..chunk_size-1)", ErrInvalidChunkOverlap, c.ChunkOverlap)
	}
	if c.MaxResults < 1 || c.MaxResults > 100 {
		return fmt.Errorf("%w: %d (must be 1..100)", ErrInvalidMaxResults, c.MaxResults)
	}
	if c.MaxHistory < 0 || c.MaxHistory > 1000 {
		return fmt.Errorf("%w: %d (must be 0..1000)", ErrInvalidMaxHistory, c.MaxHistory)
	}
	if c.Addr != "" && !strings.Contains(c.Addr, ":") {
		return fmt.Errorf("%w: %q (expected host:port or :port)", ErrInvalidAddr, c.Addr)
	}
	return nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// "gemini-2.5-flash" becomes "googleai/gemini-2.5-flash"; names already
// containing a provider prefix are returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}

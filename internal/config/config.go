package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/catalog"
	"github.com/kailas-cloud/lumina/internal/domain/catalog/field"
	"github.com/kailas-cloud/lumina/internal/domain/search/request"
)

// Config holds the lumina API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Inference InferenceConfig `yaml:"inference"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Health    HealthConfig    `yaml:"health"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// DatabaseConfig holds key-value store connection settings (cache and FT index).
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Index backends.
const (
	BackendFT       = "ft"
	BackendPGVector = "pgvector"
)

// IndexConfig holds the vector index settings.
type IndexConfig struct {
	Backend         string `yaml:"backend"` // ft, pgvector (default: ft)
	Collection      string `yaml:"collection"`
	Dimensions      int    `yaml:"dimensions"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	PostgresDSN     string `yaml:"postgres_dsn"`
	PostgresSchema  string `yaml:"postgres_schema"`
	// ExtraFields adds filterable payload fields: name -> tag|numeric|bool|text.
	ExtraFields map[string]string `yaml:"extra_fields"`
}

// EmbeddingConfig holds the OpenAI-compatible text embedding provider settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	SendDimensions   bool   `yaml:"send_dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	CacheTTLSec      int    `yaml:"cache_ttl_sec"` // 0 disables the query embedding cache
}

// InferenceConfig holds the model sidecar settings (image embeddings, detection).
type InferenceConfig struct {
	Enabled         bool     `yaml:"enabled"`
	BaseURL         string   `yaml:"base_url"`
	APIKey          string   `yaml:"api_key"`
	TimeoutSec      int      `yaml:"timeout_sec"`
	ImageModel      string   `yaml:"image_model"`
	DetectModel     string   `yaml:"detect_model"`
	DetectThreshold float64  `yaml:"detect_threshold"`
	DefaultLabels   []string `yaml:"default_labels"`
}

// Rerank failure policies.
const (
	OnFailureFallback = "fallback"
	OnFailureFail     = "fail"
)

// RerankConfig holds the cross-encoder settings.
type RerankConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"` // default: inference.base_url
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	TextField string `yaml:"text_field"`
	OnFailure string `yaml:"on_failure"` // fallback, fail (default: fallback)
}

// SearchConfig tunes the search pipeline.
type SearchConfig struct {
	DefaultTopK   int  `yaml:"default_top_k"`
	MaxTopK       int  `yaml:"max_top_k"` // capped at 100
	DefaultRerank bool `yaml:"default_rerank"`
	Overfetch     int  `yaml:"overfetch"`
	TimeoutMs     int  `yaml:"timeout_ms"`
}

// CacheConfig holds the search response cache settings.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	TTLSec    int    `yaml:"ttl_sec"`
	KeyPrefix string `yaml:"key_prefix"`
}

// IngestConfig holds catalog write settings.
type IngestConfig struct {
	Workers  int `yaml:"workers"`
	MaxBatch int `yaml:"max_batch"`
}

// HealthConfig bounds the /health probes.
type HealthConfig struct {
	ProbeTimeoutMs int `yaml:"probe_timeout_ms"`
	Parallelism    int `yaml:"parallelism"`
}

// ProbeTimeout returns the per-probe deadline.
func (c HealthConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}

// Timeout returns the search request budget.
func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// TTL returns the response cache TTL.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// Schema builds the catalog schema: the product fields plus ExtraFields in name order.
func (c IndexConfig) Schema() (catalog.Schema, error) {
	fields := field.Defaults()
	names := make([]string, 0, len(c.ExtraFields))
	for name := range c.ExtraFields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, err := field.New(name, field.Type(c.ExtraFields[name]))
		if err != nil {
			return catalog.Schema{}, fmt.Errorf("extra field: %w", err)
		}
		fields = append(fields, f)
	}
	schema, err := catalog.NewSchema(c.Collection, fields, c.Dimensions)
	if err != nil {
		return catalog.Schema{}, fmt.Errorf("catalog schema: %w", err)
	}
	return schema, nil
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, when present, is loaded into the
// process environment first; variables already set win.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates a config file.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	vec := domain.DefaultVectorConfig()

	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Index.Backend == "" {
		c.Index.Backend = BackendFT
	}
	if c.Index.Collection == "" {
		c.Index.Collection = vec.Collection
	}
	if c.Index.Dimensions <= 0 {
		c.Index.Dimensions = vec.Dimensions
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.PostgresSchema == "" {
		c.Index.PostgresSchema = "public"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = vec.Model
	}

	if c.Inference.TimeoutSec <= 0 {
		c.Inference.TimeoutSec = 30
	}
	if c.Inference.ImageModel == "" {
		c.Inference.ImageModel = vec.Model
	}
	if c.Inference.DetectModel == "" {
		c.Inference.DetectModel = "google/owlv2-base-patch16-ensemble"
	}

	if c.Rerank.BaseURL == "" {
		c.Rerank.BaseURL = c.Inference.BaseURL
	}
	if c.Rerank.APIKey == "" {
		c.Rerank.APIKey = c.Inference.APIKey
	}
	if c.Rerank.Model == "" {
		c.Rerank.Model = "BAAI/bge-reranker-v2-m3"
	}
	if c.Rerank.TextField == "" {
		c.Rerank.TextField = field.Title
	}
	if c.Rerank.OnFailure == "" {
		c.Rerank.OnFailure = OnFailureFallback
	}

	if c.Search.DefaultTopK <= 0 {
		c.Search.DefaultTopK = 5
	}
	if c.Search.MaxTopK <= 0 {
		c.Search.MaxTopK = request.MaxTopK
	}
	if c.Search.Overfetch <= 0 {
		c.Search.Overfetch = 4
	}
	if c.Search.TimeoutMs <= 0 {
		c.Search.TimeoutMs = 10000
	}

	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = domain.KeyPrefix + "search_cache:"
	}

	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.MaxBatch <= 0 {
		c.Ingest.MaxBatch = 100
	}

	if c.Health.ProbeTimeoutMs <= 0 {
		c.Health.ProbeTimeoutMs = 2000
	}
	if c.Health.Parallelism <= 0 {
		c.Health.Parallelism = 4
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}

	switch c.Index.Backend {
	case BackendFT:
	case BackendPGVector:
		if c.Index.PostgresDSN == "" {
			return fmt.Errorf("index.postgres_dsn is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("index.backend must be %q or %q, got %q", BackendFT, BackendPGVector, c.Index.Backend)
	}
	for name, t := range c.Index.ExtraFields {
		if _, err := field.New(name, field.Type(t)); err != nil {
			return fmt.Errorf("index.extra_fields.%s: %w", name, err)
		}
	}

	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required")
	}
	if c.Inference.Enabled && c.Inference.BaseURL == "" {
		return fmt.Errorf("inference.base_url is required when inference is enabled")
	}
	if c.Inference.DetectThreshold < 0 || c.Inference.DetectThreshold > 1 {
		return fmt.Errorf("inference.detect_threshold must be within [0, 1], got %g", c.Inference.DetectThreshold)
	}

	switch c.Rerank.OnFailure {
	case OnFailureFallback, OnFailureFail:
	default:
		return fmt.Errorf(
			"rerank.on_failure must be %q or %q, got %q",
			OnFailureFallback, OnFailureFail, c.Rerank.OnFailure,
		)
	}
	if c.Rerank.Enabled && c.Rerank.BaseURL == "" {
		return fmt.Errorf("rerank.base_url is required when rerank is enabled")
	}

	if c.Search.MaxTopK > request.MaxTopK {
		return fmt.Errorf("search.max_top_k must not exceed %d, got %d", request.MaxTopK, c.Search.MaxTopK)
	}
	if c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf(
			"search.default_top_k (%d) must not exceed search.max_top_k (%d)",
			c.Search.DefaultTopK, c.Search.MaxTopK,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

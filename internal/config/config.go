package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/commentlens/internal/domain/search/request"
)

// Supported drivers.
const (
	ProviderOpenAI    = "openai"
	ProviderLangchain = "langchain"

	CacheFile   = "file"
	CacheBadger = "badger"
	CacheRedis  = "redis"
)

// Config holds the commentlens configuration.
type Config struct {
	Logging     LoggingConfig   `yaml:"logging"`
	Provider    ProviderConfig  `yaml:"provider"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Embedding   EmbeddingConfig `yaml:"embedding"`
	Search      SearchConfig    `yaml:"search"`
	Reassign    ReassignConfig  `yaml:"reassign"`
	Cache       CacheConfig     `yaml:"cache"`
	Ops         OpsConfig       `yaml:"ops"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	StaticSpecs []SpecConfig    `yaml:"static_specs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// ProviderConfig holds model provider settings.
type ProviderConfig struct {
	Driver           string       `yaml:"driver"` // openai (default), langchain
	APIKey           string       `yaml:"api_key"`
	BaseURL          string       `yaml:"base_url"`
	EmbeddingModel   string       `yaml:"embedding_model"`
	CompletionModel  string       `yaml:"completion_model"`
	Dimensions       int          `yaml:"dimensions"`
	QueryInstruction string       `yaml:"query_instruction"`
	MaxAttempts      int          `yaml:"max_attempts"`
	Budget           BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// RateLimitConfig holds the sliding window limits shared by every provider call.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	TokensPerMinute   int `yaml:"tokens_per_minute"`
	WindowSec         int `yaml:"window_sec"`
	MarginMs          int `yaml:"margin_ms"`
	MaxWaitSec        int `yaml:"max_wait_sec"` // 0 = wait until the window frees up
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// SearchConfig holds two-stage search settings.
type SearchConfig struct {
	DefaultTopK     int     `yaml:"default_top_k"`
	RerankBatchSize int     `yaml:"rerank_batch_size"`
	RerankMaxTokens int     `yaml:"rerank_max_tokens"`
	Temperature     float32 `yaml:"temperature"`
	ContentTruncate int     `yaml:"content_truncate"`
}

// ReassignConfig holds orphan recovery settings. Pointer fields distinguish
// "unset" from an explicit zero or false.
type ReassignConfig struct {
	Enabled               *bool    `yaml:"enabled"`
	SimilarityThreshold   *float64 `yaml:"similarity_threshold"`
	CreateUnassignedGroup *bool    `yaml:"create_unassigned_group"`
	UseCentroids          bool     `yaml:"use_centroids"`
	Workers               int      `yaml:"workers"`
}

// IsEnabled reports whether orphan recovery runs (default true).
func (r ReassignConfig) IsEnabled() bool { return r.Enabled == nil || *r.Enabled }

// Threshold returns the similarity threshold.
func (r ReassignConfig) Threshold() float64 {
	if r.SimilarityThreshold == nil {
		return defaultSimilarityThreshold
	}
	return *r.SimilarityThreshold
}

// Bucket reports whether leftover orphans go into the synthetic group (default true).
func (r ReassignConfig) Bucket() bool {
	return r.CreateUnassignedGroup == nil || *r.CreateUnassignedGroup
}

// CacheConfig holds embedding cache snapshot storage settings.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // file (default), badger, redis
	Dir              string   `yaml:"dir"`
	Key              string   `yaml:"key"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// OpsConfig holds the operational HTTP listener settings. An empty Addr disables it.
type OpsConfig struct {
	Addr            string   `yaml:"addr"`
	APIKeys         []string `yaml:"api_keys"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
}

// PipelineConfig holds run loop settings.
type PipelineConfig struct {
	SkipUnassignedInSearch bool `yaml:"skip_unassigned_in_search"`
}

// SpecConfig is a static search spec as written in the config file.
type SpecConfig struct {
	Name      string         `yaml:"name"`
	Query     string         `yaml:"query"`
	Context   string         `yaml:"context"`
	Filters   map[string]any `yaml:"filters"`
	Fields    []string       `yaml:"extract_fields"`
	TopK      int            `yaml:"top_k"`
	Rationale string         `yaml:"rationale"`
}

// Request resolves the spec into a validated static search request.
// The context doubles as the name when no name is given.
func (s SpecConfig) Request() (request.Request, error) {
	name := s.Name
	if name == "" {
		name = s.Context
	}
	return request.Parse(s.Query, s.TopK, s.Filters, s.Fields, //nolint:wrapcheck // caller adds the index
		request.WithName(name),
		request.WithContext(s.Context),
		request.Static(s.Rationale),
	)
}

// StaticRequests resolves every static spec.
func (c *Config) StaticRequests() ([]request.Request, error) {
	out := make([]request.Request, 0, len(c.StaticSpecs))
	for i, s := range c.StaticSpecs {
		r, err := s.Request()
		if err != nil {
			return nil, fmt.Errorf("static_specs[%d]: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

const defaultSimilarityThreshold = 0.7

// DefaultStaticSpecs are the specs run against every group when the config lists none.
func DefaultStaticSpecs() []SpecConfig {
	return []SpecConfig{
		{
			Query: "Find highly engaged comments in the top 10% by likes and replies " +
				"that provide constructive feedback, suggestions, or detailed experiences",
			Context:   "community_validated_feedback",
			Filters:   map[string]any{"min_length": 50, "exclude_spam": true},
			Fields:    []string{"sentiment", "suggestions"},
			TopK:      30,
			Rationale: "Community engagement signals important feedback that resonates with audience",
		},
		{
			Query: "Identify substantive unanswered questions that could inspire follow-up content " +
				"or address gaps in the original video",
			Context:   "content_gap_questions",
			Filters:   map[string]any{"require_question_mark": true, "min_length": 20},
			Fields:    []string{"topics", "question_category"},
			TopK:      30,
			Rationale: "Unanswered questions reveal audience needs and potential content opportunities",
		},
	}
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env references, decodes, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Provider.Driver == "" {
		c.Provider.Driver = ProviderOpenAI
	}
	if c.Provider.EmbeddingModel == "" {
		c.Provider.EmbeddingModel = "text-embedding-3-small"
	}
	if c.Provider.CompletionModel == "" {
		c.Provider.CompletionModel = "gpt-4-turbo"
	}
	if c.Provider.Dimensions <= 0 {
		c.Provider.Dimensions = 1536
	}
	if c.Provider.Budget.Action == "" {
		c.Provider.Budget.Action = "warn"
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 60
	}
	if c.RateLimit.TokensPerMinute == 0 {
		c.RateLimit.TokensPerMinute = 150000
	}
	if c.RateLimit.WindowSec == 0 {
		c.RateLimit.WindowSec = 60
	}
	if c.RateLimit.MarginMs == 0 {
		c.RateLimit.MarginMs = 100
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 100
	}
	if c.Search.DefaultTopK == 0 {
		c.Search.DefaultTopK = request.DefaultTopK
	}
	if c.Search.RerankBatchSize == 0 {
		c.Search.RerankBatchSize = 20
	}
	if c.Search.RerankMaxTokens == 0 {
		c.Search.RerankMaxTokens = 500
	}
	if c.Search.Temperature == 0 {
		c.Search.Temperature = 0.1
	}
	if c.Search.ContentTruncate == 0 {
		c.Search.ContentTruncate = 300
	}
	if c.Reassign.Workers == 0 {
		c.Reassign.Workers = 4
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheFile
	}
	if c.Cache.Dir == "" && c.Cache.Driver != CacheRedis {
		c.Cache.Dir = filepath.Join(".cache", "commentlens")
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Ops.ReadTimeoutSec <= 0 {
		c.Ops.ReadTimeoutSec = 10
	}
	if c.Ops.WriteTimeoutSec <= 0 {
		c.Ops.WriteTimeoutSec = 10
	}
	if c.Ops.ShutdownSec <= 0 {
		c.Ops.ShutdownSec = 10
	}
	if len(c.StaticSpecs) == 0 {
		c.StaticSpecs = DefaultStaticSpecs()
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Provider.Driver {
	case ProviderOpenAI, ProviderLangchain:
	default:
		return fmt.Errorf("provider.driver must be %q or %q, got %q", ProviderOpenAI, ProviderLangchain, c.Provider.Driver)
	}
	switch c.Provider.Budget.Action {
	case "warn", "reject":
		// ok
	default:
		return fmt.Errorf("provider.budget.action must be \"warn\" or \"reject\", got %q", c.Provider.Budget.Action)
	}

	positive := []struct {
		name string
		val  int
	}{
		{"rate_limit.requests_per_minute", c.RateLimit.RequestsPerMinute},
		{"rate_limit.tokens_per_minute", c.RateLimit.TokensPerMinute},
		{"rate_limit.window_sec", c.RateLimit.WindowSec},
		{"embedding.batch_size", c.Embedding.BatchSize},
		{"search.default_top_k", c.Search.DefaultTopK},
		{"search.rerank_batch_size", c.Search.RerankBatchSize},
		{"search.rerank_max_tokens", c.Search.RerankMaxTokens},
		{"search.content_truncate", c.Search.ContentTruncate},
		{"reassign.workers", c.Reassign.Workers},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.val)
		}
	}
	if c.RateLimit.MarginMs < 0 || c.RateLimit.MaxWaitSec < 0 {
		return fmt.Errorf("rate_limit.margin_ms and rate_limit.max_wait_sec must not be negative")
	}
	if c.Search.Temperature < 0 || c.Search.Temperature > 2 {
		return fmt.Errorf("search.temperature must be between 0 and 2, got %v", c.Search.Temperature)
	}
	if th := c.Reassign.Threshold(); th < 0 || th > 1 {
		return fmt.Errorf("reassign.similarity_threshold must be between 0 and 1, got %v", th)
	}

	switch c.Cache.Driver {
	case CacheFile, CacheBadger:
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir is required for driver %q", c.Cache.Driver)
		}
	case CacheRedis:
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required for driver %q", CacheRedis)
		}
	default:
		return fmt.Errorf("cache.driver must be one of file, badger, redis, got %q", c.Cache.Driver)
	}

	if _, err := c.StaticRequests(); err != nil {
		return err
	}
	return nil
}

// Window returns the rate limit window.
func (r RateLimitConfig) Window() time.Duration { return time.Duration(r.WindowSec) * time.Second }

// Margin returns the safety margin added to limiter waits.
func (r RateLimitConfig) Margin() time.Duration { return time.Duration(r.MarginMs) * time.Millisecond }

// MaxWait returns the limiter wait ceiling, 0 for unbounded.
func (r RateLimitConfig) MaxWait() time.Duration { return time.Duration(r.MaxWaitSec) * time.Second }

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

package config

import (
	"fmt"
	"strings"
	"time"

	"feedbrief/internal/models"

	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultOpenAIBaseURL  = "https://api.groq.com/openai/v1"
	DefaultOpenAIModel    = "llama-3.3-70b-versatile"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// SecurityConfig represents security configuration
type SecurityConfig struct {
	EnableRateLimit       bool
	RateLimitPerSecond    float64
	RateLimitBurst        int
	EnableCORS            bool
	AllowedOrigins        []string
	EnableSecurityHeaders bool
	MaxRequestSize        int64
	EnableRequestID       bool
}

// DatabaseConfig selects and locates the persisted store
type DatabaseConfig struct {
	Driver  string
	DataDir string
	URL     string
}

// AIConfig describes the hosted summarization service. An empty APIKey
// degrades enrichment instead of failing startup.
type AIConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	TargetLanguage string
}

// PipelineConfig bounds one ingestion run
type PipelineConfig struct {
	MaxArticles    int
	MaxPerRun      int
	ItemsPerFeed   int
	PromptMaxChars int
	FetchTimeout   time.Duration
}

type Config struct {
	Port          int
	LogLevel      string
	LogFormat     string
	CronSecret    string
	FeedsCacheTTL time.Duration
	PollInterval  time.Duration
	EnableSwagger bool
	Database      DatabaseConfig
	AI            AIConfig
	Pipeline      PipelineConfig
	Security      SecurityConfig
	Sources       []models.FeedSource
}

// envBindings maps viper keys to the environment variables that may set them.
// The first variable listed wins when several are present.
var envBindings = map[string][]string{
	"port":                             {"PORT"},
	"log.level":                        {"LOG_LEVEL"},
	"log.format":                       {"LOG_FORMAT"},
	"cron.secret":                      {"CRON_SECRET"},
	"feeds.cache_ttl":                  {"FEEDS_CACHE_TTL"},
	"poll.interval":                    {"POLL_INTERVAL"},
	"swagger.enabled":                  {"ENABLE_SWAGGER"},
	"database.driver":                  {"DB_DRIVER"},
	"database.data_dir":                {"DATA_DIR"},
	"database.url":                     {"DATABASE_URL"},
	"ai.provider":                      {"AI_PROVIDER"},
	"ai.api_key":                       {"AI_API_KEY", "GROQ_API_KEY"},
	"ai.base_url":                      {"AI_BASE_URL"},
	"ai.model":                         {"AI_MODEL"},
	"ai.temperature":                   {"AI_TEMPERATURE"},
	"ai.max_tokens":                    {"AI_MAX_TOKENS"},
	"ai.timeout":                       {"AI_TIMEOUT"},
	"ai.target_language":               {"AI_TARGET_LANGUAGE"},
	"pipeline.max_articles":            {"MAX_ARTICLES"},
	"pipeline.max_per_run":             {"MAX_PER_RUN"},
	"pipeline.items_per_feed":          {"ITEMS_PER_FEED"},
	"pipeline.prompt_max_chars":        {"PROMPT_MAX_CHARS"},
	"pipeline.fetch_timeout":           {"FETCH_TIMEOUT"},
	"security.enable_rate_limit":       {"ENABLE_RATE_LIMIT"},
	"security.rate_limit_per_second":   {"RATE_LIMIT_PER_SECOND"},
	"security.rate_limit_burst":        {"RATE_LIMIT_BURST"},
	"security.enable_cors":             {"ENABLE_CORS"},
	"security.allowed_origins":         {"ALLOWED_ORIGINS"},
	"security.enable_security_headers": {"ENABLE_SECURITY_HEADERS"},
	"security.max_request_size":        {"MAX_REQUEST_SIZE"},
	"security.enable_request_id":       {"ENABLE_REQUEST_ID"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("feeds.cache_ttl", time.Minute)
	v.SetDefault("poll.interval", time.Duration(0))
	v.SetDefault("swagger.enabled", true)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.data_dir", "./data")

	v.SetDefault("ai.provider", ProviderOpenAI)
	v.SetDefault("ai.temperature", 0.3)
	v.SetDefault("ai.max_tokens", 500)
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.target_language", "Korean")

	v.SetDefault("pipeline.max_articles", 200)
	v.SetDefault("pipeline.max_per_run", 10)
	v.SetDefault("pipeline.items_per_feed", 15)
	v.SetDefault("pipeline.prompt_max_chars", 2000)
	v.SetDefault("pipeline.fetch_timeout", 30*time.Second)

	v.SetDefault("security.enable_rate_limit", true)
	v.SetDefault("security.rate_limit_per_second", 10.0)
	v.SetDefault("security.rate_limit_burst", 20)
	v.SetDefault("security.enable_cors", true)
	v.SetDefault("security.allowed_origins", "*")
	v.SetDefault("security.enable_security_headers", true)
	v.SetDefault("security.max_request_size", int64(10<<20)) // 10MB
	v.SetDefault("security.enable_request_id", true)
}

// Load reads configuration from the environment and, when CONFIG_FILE is set,
// from that YAML file. Environment variables take precedence over the file.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, fmt.Errorf("failed to bind config_file: %w", err)
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:          v.GetInt("port"),
		LogLevel:      v.GetString("log.level"),
		LogFormat:     v.GetString("log.format"),
		CronSecret:    strings.TrimSpace(v.GetString("cron.secret")),
		FeedsCacheTTL: v.GetDuration("feeds.cache_ttl"),
		PollInterval:  v.GetDuration("poll.interval"),
		EnableSwagger: v.GetBool("swagger.enabled"),
		Database: DatabaseConfig{
			Driver:  strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
			DataDir: strings.TrimSpace(v.GetString("database.data_dir")),
			URL:     strings.TrimSpace(v.GetString("database.url")),
		},
		AI: AIConfig{
			Provider:       strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
			APIKey:         strings.TrimSpace(v.GetString("ai.api_key")),
			BaseURL:        strings.TrimSpace(v.GetString("ai.base_url")),
			Model:          strings.TrimSpace(v.GetString("ai.model")),
			Temperature:    v.GetFloat64("ai.temperature"),
			MaxTokens:      v.GetInt("ai.max_tokens"),
			Timeout:        v.GetDuration("ai.timeout"),
			TargetLanguage: strings.TrimSpace(v.GetString("ai.target_language")),
		},
		Pipeline: PipelineConfig{
			MaxArticles:    v.GetInt("pipeline.max_articles"),
			MaxPerRun:      v.GetInt("pipeline.max_per_run"),
			ItemsPerFeed:   v.GetInt("pipeline.items_per_feed"),
			PromptMaxChars: v.GetInt("pipeline.prompt_max_chars"),
			FetchTimeout:   v.GetDuration("pipeline.fetch_timeout"),
		},
		Security: SecurityConfig{
			EnableRateLimit:       v.GetBool("security.enable_rate_limit"),
			RateLimitPerSecond:    v.GetFloat64("security.rate_limit_per_second"),
			RateLimitBurst:        v.GetInt("security.rate_limit_burst"),
			EnableCORS:            v.GetBool("security.enable_cors"),
			AllowedOrigins:        splitList(v.GetString("security.allowed_origins")),
			EnableSecurityHeaders: v.GetBool("security.enable_security_headers"),
			MaxRequestSize:        v.GetInt64("security.max_request_size"),
			EnableRequestID:       v.GetBool("security.enable_request_id"),
		},
		Sources: DefaultSources(),
	}

	cfg.AI.applyProviderDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyProviderDefaults fills the endpoint and model when they were not set.
// The OpenAI-compatible provider points at Groq unless told otherwise.
func (a *AIConfig) applyProviderDefaults() {
	switch a.Provider {
	case ProviderOpenAI:
		if a.BaseURL == "" {
			a.BaseURL = DefaultOpenAIBaseURL
		}
		if a.Model == "" {
			a.Model = DefaultOpenAIModel
		}
	case ProviderAnthropic:
		if a.Model == "" {
			a.Model = DefaultAnthropicModel
		}
	}
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for the %s driver", DriverSQLite)
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	switch c.AI.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported AI_PROVIDER %q", c.AI.Provider)
	}

	if c.Pipeline.MaxArticles <= 0 {
		return fmt.Errorf("MAX_ARTICLES must be positive, got %d", c.Pipeline.MaxArticles)
	}
	if c.Pipeline.MaxPerRun <= 0 {
		return fmt.Errorf("MAX_PER_RUN must be positive, got %d", c.Pipeline.MaxPerRun)
	}
	if c.Pipeline.ItemsPerFeed <= 0 {
		return fmt.Errorf("ITEMS_PER_FEED must be positive, got %d", c.Pipeline.ItemsPerFeed)
	}
	if c.Pipeline.PromptMaxChars <= 0 {
		return fmt.Errorf("PROMPT_MAX_CHARS must be positive, got %d", c.Pipeline.PromptMaxChars)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("no feed sources configured")
	}

	return nil
}

// DefaultSources returns the fixed set of upstream feeds
func DefaultSources() []models.FeedSource {
	return []models.FeedSource{
		{Name: "TechCrunch", URL: "https://techcrunch.com/feed/", Category: "startups"},
		{Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml", Category: "tech"},
		{Name: "Hacker News", URL: "https://hnrss.org/frontpage", Category: "dev"},
		{Name: "Wired", URL: "https://www.wired.com/feed/rss", Category: "tech"},
		{Name: "Ars Technica", URL: "https://feeds.arstechnica.com/arstechnica/technology-lab", Category: "tech"},
		{Name: "Techmeme", URL: "https://www.techmeme.com/feed.xml", Category: "tech"},
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Blog      BlogConfig      `yaml:"blog" mapstructure:"blog"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl" mapstructure:"firecrawl"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Enhance   EnhanceConfig   `yaml:"enhance" mapstructure:"enhance"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BlogConfig describes the source blog to scrape.
type BlogConfig struct {
	IndexURL    string `yaml:"index_url" mapstructure:"index_url"`
	ScrapeCount int    `yaml:"scrape_count" mapstructure:"scrape_count"`
	// Selection is "oldest" (last N discovered links) or "newest" (first N).
	Selection string `yaml:"selection" mapstructure:"selection"`
}

// BrowserConfig configures the page fetcher.
type BrowserConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RemoteURL   string `yaml:"remote_url" mapstructure:"remote_url"`
	Headless    bool   `yaml:"headless" mapstructure:"headless"`
	BinPath     string `yaml:"bin_path" mapstructure:"bin_path"`
}

// Timeout returns the navigation timeout as a duration.
func (c BrowserConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// SearchConfig configures the search provider.
type SearchConfig struct {
	Driver          string   `yaml:"driver" mapstructure:"driver"`
	URLTemplate     string   `yaml:"url_template" mapstructure:"url_template"`
	ResultsSelector string   `yaml:"results_selector" mapstructure:"results_selector"`
	ItemSelector    string   `yaml:"item_selector" mapstructure:"item_selector"`
	HeadingSelector string   `yaml:"heading_selector" mapstructure:"heading_selector"`
	SnippetSelector string   `yaml:"snippet_selector" mapstructure:"snippet_selector"`
	TimeoutSecs     int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Denylist        []string `yaml:"denylist" mapstructure:"denylist"`
	// BreakerThreshold consecutive failed search page loads stop browser
	// searches for BreakerResetSecs.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// Timeout returns the results wait timeout as a duration.
func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl scrape API settings.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds settings for the primary rewrite backend.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OpenAIConfig holds settings for the secondary rewrite backend. Any
// OpenAI-compatible chat completions endpoint works.
type OpenAIConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	Model        string `yaml:"model" mapstructure:"model"`
	CooldownSecs int    `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
	MaxAttempts  int    `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// EnhanceConfig configures the enhancement orchestrator.
type EnhanceConfig struct {
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size"`
	DelayMs        int `yaml:"delay_ms" mapstructure:"delay_ms"`
	ReferenceChars int `yaml:"reference_chars" mapstructure:"reference_chars"`
	SearchResults  int `yaml:"search_results" mapstructure:"search_results"`
}

// Delay returns the inter-article delay as a duration.
func (c EnhanceConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int    `yaml:"port" mapstructure:"port"`
	FrontendOrigin string `yaml:"frontend_origin" mapstructure:"frontend_origin"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultUserAgent is a desktop Chrome user agent; several blogs serve an
// empty shell to obvious bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultDenylist lists result hosts that never carry article content.
var DefaultDenylist = []string{
	"youtube.com",
	"youtu.be",
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"tiktok.com",
	"linkedin.com",
	"pinterest.com",
	"reddit.com",
}

// envAliases maps config keys to conventional environment variable names
// accepted in addition to the ENHANCER_ prefixed form.
var envAliases = map[string][]string{
	"store.database_url":     {"DATABASE_URL"},
	"blog.index_url":         {"BLOG_URL"},
	"blog.scrape_count":      {"ARTICLES_TO_SCRAPE"},
	"anthropic.key":          {"ANTHROPIC_API_KEY"},
	"openai.key":             {"OPENAI_API_KEY"},
	"jina.key":               {"JINA_API_KEY"},
	"firecrawl.key":          {"FIRECRAWL_API_KEY"},
	"server.port":            {"PORT"},
	"server.frontend_origin": {"FRONTEND_URL"},
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENHANCER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		names := append([]string{"ENHANCER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("blog.index_url", "https://beyondchats.com/blogs/")
	v.SetDefault("blog.scrape_count", 5)
	v.SetDefault("blog.selection", "oldest")
	v.SetDefault("browser.driver", "rod")
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.timeout_secs", 30)
	v.SetDefault("browser.headless", true)
	v.SetDefault("search.driver", "browser")
	v.SetDefault("search.url_template", "https://www.google.com/search?q=%s")
	v.SetDefault("search.results_selector", "#search")
	v.SetDefault("search.item_selector", "div.g")
	v.SetDefault("search.heading_selector", "h3")
	v.SetDefault("search.snippet_selector", "div.VwiC3b")
	v.SetDefault("search.timeout_secs", 10)
	v.SetDefault("search.denylist", DefaultDenylist)
	v.SetDefault("search.breaker_threshold", 3)
	v.SetDefault("search.breaker_reset_secs", 300)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.cooldown_secs", 65)
	v.SetDefault("openai.max_attempts", 5)
	v.SetDefault("enhance.batch_size", 5)
	v.SetDefault("enhance.delay_ms", 0)
	v.SetDefault("enhance.reference_chars", 2000)
	v.SetDefault("enhance.search_results", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.frontend_origin", "http://localhost:3000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Missing LLM keys
// are not validated here; the rewriter reports them when it is first used.
func (c *Config) Validate(mode string) error {
	var errs []string

	requireStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
		default:
			errs = append(errs, "store.driver must be postgres or sqlite")
		}
	}

	switch mode {
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateBlog()...)
		errs = append(errs, c.validateEnhance()...)
	case "scrape":
		requireStore()
		errs = append(errs, c.validateBlog()...)
	case "enhance":
		requireStore()
		errs = append(errs, c.validateEnhance()...)
	case "store":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Browser.Driver {
	case "rod", "http", "jina", "firecrawl", "chain":
	default:
		errs = append(errs, "browser.driver must be rod, http, jina, firecrawl or chain")
	}
	if c.Browser.TimeoutSecs <= 0 {
		errs = append(errs, "browser.timeout_secs must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateBlog() []string {
	var errs []string
	u, err := url.Parse(c.Blog.IndexURL)
	if c.Blog.IndexURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, "blog.index_url must be an absolute http(s) URL")
	}
	if c.Blog.ScrapeCount < 1 {
		errs = append(errs, "blog.scrape_count must be >= 1")
	}
	if c.Blog.Selection != "oldest" && c.Blog.Selection != "newest" {
		errs = append(errs, "blog.selection must be oldest or newest")
	}
	return errs
}

func (c *Config) validateEnhance() []string {
	var errs []string
	if c.Enhance.BatchSize < 1 || c.Enhance.BatchSize > 50 {
		errs = append(errs, "enhance.batch_size must be between 1 and 50")
	}
	if c.Enhance.DelayMs < 0 {
		errs = append(errs, "enhance.delay_ms must be >= 0")
	}
	if c.Enhance.ReferenceChars < 1 {
		errs = append(errs, "enhance.reference_chars must be >= 1")
	}
	if c.Enhance.SearchResults < 0 {
		errs = append(errs, "enhance.search_results must be >= 0")
	}
	switch c.Search.Driver {
	case "browser":
		if c.Search.URLTemplate != "" && !validURLTemplate(c.Search.URLTemplate) {
			errs = append(errs, "search.url_template must contain exactly one %s")
		}
	case "jina":
	default:
		errs = append(errs, "search.driver must be browser or jina")
	}
	return errs
}

// validURLTemplate reports whether tmpl has a single %s verb and no other
// verbs. Escaped %% is allowed.
func validURLTemplate(tmpl string) bool {
	t := strings.ReplaceAll(tmpl, "%%", "")
	return strings.Count(t, "%") == 1 && strings.Count(t, "%s") == 1
}

// Redacted returns a copy of the config with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.Anthropic.Key = mask(c.Anthropic.Key)
	c.OpenAI.Key = mask(c.OpenAI.Key)
	c.Jina.Key = mask(c.Jina.Key)
	c.Firecrawl.Key = mask(c.Firecrawl.Key)
	if u, err := url.Parse(c.Store.DatabaseURL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
			c.Store.DatabaseURL = u.String()
		}
	}
	return c
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

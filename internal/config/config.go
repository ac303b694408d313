package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// WebRoot 为已构建的前端目录，配置后由 API 进程托管静态文件
	WebRoot       string `mapstructure:"web_root"`
	BasicAuthUser string `mapstructure:"basic_user"`
	BasicAuthPass string `mapstructure:"basic_pass"`
}

type DatabaseConfig struct {
	Driver     string        `mapstructure:"driver"` // postgres / sqlite
	DSN        string        `mapstructure:"dsn"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	Retention  time.Duration `mapstructure:"retention"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type APIConfig struct {
	Key     string `mapstructure:"key"`
	BaseURL string `mapstructure:"base_url"`
}

// FeedConfig 描述一个 RSS 源及其归属分类
type FeedConfig struct {
	URL      string `mapstructure:"url"`
	Category string `mapstructure:"category"`
}

// HackerNewsConfig 可选的科技类数据源，排在 RSS 之后
type HackerNewsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

type ProvidersConfig struct {
	Country    string           `mapstructure:"country"`
	Timeout    time.Duration    `mapstructure:"timeout"`
	SweepDelay time.Duration    `mapstructure:"sweep_delay"`
	NewsAPI    APIConfig        `mapstructure:"newsapi"`
	NewsData   APIConfig        `mapstructure:"newsdata"`
	RSSFeeds   []FeedConfig     `mapstructure:"rss_feeds"`
	HackerNews HackerNewsConfig `mapstructure:"hackernews"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type RankerConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CronConfig 各定时任务的 cron 表达式
type CronConfig struct {
	Fetch      string `mapstructure:"fetch"`
	Embeddings string `mapstructure:"embeddings"`
	Enrich     string `mapstructure:"enrich"`
	Cleanup    string `mapstructure:"cleanup"`
	Analytics  string `mapstructure:"analytics"`
}

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Providers ProvidersConfig `mapstructure:"providers"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Ranker    RankerConfig    `mapstructure:"ranker"`
	Cron      CronConfig      `mapstructure:"cron"`
}

// binding 把配置项、环境变量与默认值放在一起，环境变量名沿用部署脚本里的写法
type binding struct {
	key string
	env string
	def any
}

var bindings = []binding{
	{"app.port", "APP_PORT", "9000"},
	{"app.log_level", "LOG_LEVEL", "info"},
	{"app.web_root", "WEB_ROOT", ""},
	{"app.basic_user", "APP_BASIC_USER", ""},
	{"app.basic_pass", "APP_BASIC_PASS", ""},

	{"database.driver", "DATABASE_DRIVER", "postgres"},
	{"database.dsn", "POSTGRES_DSN", "host=localhost user=newshub password=newshub dbname=newshub port=5432 sslmode=disable TimeZone=UTC"},
	{"database.sqlite_path", "SQLITE_PATH", "newshub.db"},
	{"database.retention", "ARTICLE_RETENTION", "720h"},

	{"redis.addr", "REDIS_ADDR", "localhost:6379"},
	{"redis.password", "REDIS_PASSWORD", ""},
	{"redis.db", "REDIS_DB", 0},

	{"providers.country", "DEFAULT_COUNTRY", "us"},
	{"providers.timeout", "PROVIDER_TIMEOUT", "10s"},
	{"providers.sweep_delay", "SWEEP_DELAY", "1s"},
	{"providers.newsapi.key", "NEWS_API_KEY", ""},
	{"providers.newsapi.base_url", "NEWS_API_URL", "https://newsapi.org/v2"},
	{"providers.newsdata.key", "NEWSDATA_API_KEY", ""},
	{"providers.newsdata.base_url", "NEWSDATA_API_URL", "https://newsdata.io/api/1"},
	{"providers.hackernews.enabled", "HACKERNEWS_ENABLED", false},
	{"providers.hackernews.base_url", "HACKERNEWS_API_URL", "https://hacker-news.firebaseio.com/v0"},

	{"openai.api_key", "OPENAI_API_KEY", ""},
	{"openai.base_url", "OPENAI_BASE_URL", ""},
	{"openai.model", "EMBEDDING_MODEL", "text-embedding-3-small"},

	{"ranker.endpoint", "RANKER_ENDPOINT", ""},
	{"ranker.timeout", "RANKER_TIMEOUT", "5s"},

	{"cron.fetch", "CRON_FETCH", "*/15 * * * *"},
	{"cron.embeddings", "CRON_EMBEDDINGS", "0 * * * *"},
	{"cron.enrich", "CRON_ENRICH", "*/30 * * * *"},
	{"cron.cleanup", "CRON_CLEANUP", "0 2 * * *"},
	{"cron.analytics", "CRON_ANALYTICS", "0 0 * * *"},
}

// Load 读取配置：默认值 < 配置文件 < 环境变量。
// path 为空时在 ./ 与 ./configs 下查找 config.yaml，找不到文件不算错误。
func Load(path string) (*Config, error) {
	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		if b.env != "" {
			_ = v.BindEnv(b.key, b.env)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	slog.Info("config loaded",
		"port", cfg.App.Port,
		"db", cfg.Database.Driver,
		"file", v.ConfigFileUsed(),
		"cron", cfg.Cron.Fetch,
	)
	return cfg, nil
}

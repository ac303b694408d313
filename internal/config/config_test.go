package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// 切到空目录，避免读到仓库里的 config.yaml
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.App.Port != "9000" {
		t.Fatalf("App.Port = %q, want %q", cfg.App.Port, "9000")
	}
	if cfg.Providers.Timeout != 10*time.Second {
		t.Fatalf("Providers.Timeout = %v, want 10s", cfg.Providers.Timeout)
	}
	if cfg.Database.Retention != 30*24*time.Hour {
		t.Fatalf("Database.Retention = %v, want 720h", cfg.Database.Retention)
	}
	if cfg.Cron.Fetch != "*/15 * * * *" {
		t.Fatalf("Cron.Fetch = %q", cfg.Cron.Fetch)
	}
	if cfg.Providers.NewsAPI.BaseURL != "https://newsapi.org/v2" {
		t.Fatalf("NewsAPI.BaseURL = %q", cfg.Providers.NewsAPI.BaseURL)
	}
}

func TestLoadReadsAuthAndPorts(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_PORT", "1234")
	t.Setenv("APP_BASIC_USER", "user")
	t.Setenv("APP_BASIC_PASS", "pass")
	t.Setenv("NEWS_API_KEY", "k1")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("HACKERNEWS_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.App.Port != "1234" {
		t.Fatalf("App.Port = %q, want %q", cfg.App.Port, "1234")
	}
	if cfg.App.BasicAuthUser != "user" || cfg.App.BasicAuthPass != "pass" {
		t.Fatalf("BasicAuthUser/Pass not loaded correctly: %+v", cfg.App)
	}
	if cfg.Providers.NewsAPI.Key != "k1" {
		t.Fatalf("NewsAPI.Key = %q, want k1", cfg.Providers.NewsAPI.Key)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("Redis.DB = %d, want 3", cfg.Redis.DB)
	}
	if !cfg.Providers.HackerNews.Enabled {
		t.Fatalf("HackerNews.Enabled should be read from env")
	}
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "newshub.yaml")
	content := `
app:
  port: "7000"
providers:
  sweep_delay: 0s
  rss_feeds:
    - url: https://example.com/tech.xml
      category: technology
cron:
  fetch: "*/5 * * * *"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CRON_FETCH", "0 * * * *")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.App.Port != "7000" {
		t.Fatalf("App.Port = %q, want 7000", cfg.App.Port)
	}
	if cfg.Providers.SweepDelay != 0 {
		t.Fatalf("SweepDelay = %v, want 0", cfg.Providers.SweepDelay)
	}
	if len(cfg.Providers.RSSFeeds) != 1 || cfg.Providers.RSSFeeds[0].Category != "technology" {
		t.Fatalf("RSSFeeds = %+v", cfg.Providers.RSSFeeds)
	}
	// 环境变量优先于配置文件
	if cfg.Cron.Fetch != "0 * * * *" {
		t.Fatalf("Cron.Fetch = %q, want env override", cfg.Cron.Fetch)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

// chdir is equivalent to testing.T.Chdir (Go 1.24+): it changes the working
// directory and restores it when the test finishes.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

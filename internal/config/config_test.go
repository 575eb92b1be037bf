package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{}
	cfg.HTTP.Port = 8080
	cfg.Database.Addrs = []string{"localhost:6379"}
	cfg.Embedding.APIKey = "sk-test"
	cfg.Reddit.UserAgent = "answerd-test/1.0"
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Database.Driver != "redis" {
		t.Errorf("Driver = %q, want redis", cfg.Database.Driver)
	}
	if cfg.Index.Name != "posts" || cfg.Index.HNSWM != 16 || cfg.Index.HNSWEFConstruct != 100 {
		t.Errorf("Index = %+v", cfg.Index)
	}
	if cfg.Reddit.Subreddit != "learnpython" || cfg.Reddit.FetchLimit != 25 || cfg.Reddit.CommentLimit != 20 {
		t.Errorf("Reddit = %+v", cfg.Reddit)
	}
	if cfg.Reddit.PollIntervalSec != 300 {
		t.Errorf("PollIntervalSec = %d, want 300", cfg.Reddit.PollIntervalSec)
	}
	if cfg.Matcher.TopK != 5 || cfg.Matcher.Threshold != 0.75 {
		t.Errorf("Matcher = %+v", cfg.Matcher)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" || cfg.Embedding.Dimensions != 384 {
		t.Errorf("Embedding = %+v", cfg.Embedding)
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := validConfig()
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"no addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"bad driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"no api key", func(c *Config) { c.Embedding.APIKey = "" }, "api_key"},
		{"no user agent", func(c *Config) { c.Reddit.UserAgent = "" }, "user_agent"},
		{"threshold above one", func(c *Config) { c.Matcher.Threshold = 1.5 }, "threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("ANSWERD_TEST_VAR", "supersecret")
	t.Setenv("ANSWERD_EMPTY_VAR", "")

	in := []byte("key: ${ANSWERD_TEST_VAR}\nother: ${ANSWERD_EMPTY_VAR:-fallback}\nplain: value")
	out := string(expandEnvVars(in))

	if !strings.Contains(out, "key: supersecret") {
		t.Errorf("out = %q", out)
	}
	if !strings.Contains(out, "other: fallback") {
		t.Errorf("out = %q, want default substitution", out)
	}
	if !strings.Contains(out, "plain: value") {
		t.Errorf("out = %q, plain values must pass through", out)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}

	yaml := `
http:
  port: 9090
database:
  addrs:
    - "localhost:6379"
embedding:
  api_key: "${ANSWERD_TEST_KEY}"
reddit:
  subreddit: golang
  user_agent: "answerd-test/1.0"
matcher:
  threshold: 0.8
`
	if err := os.WriteFile(filepath.Join(dir, "config", "test.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ANSWERD_TEST_KEY", "sk-from-env")
	t.Chdir(dir)

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Embedding.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want env substitution", cfg.Embedding.APIKey)
	}
	if cfg.Reddit.Subreddit != "golang" {
		t.Errorf("Subreddit = %q", cfg.Reddit.Subreddit)
	}
	if cfg.Matcher.Threshold != 0.8 {
		t.Errorf("Threshold = %g", cfg.Matcher.Threshold)
	}
	// Defaults fill in everything unspecified.
	if cfg.Matcher.TopK != 5 || cfg.Index.Name != "posts" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("nonexistent"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}

	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "PG_DSN", "MONGO_URI", "REDIS_ADDR", "JWT_SECRET",
		"VOTE_WINDOW", "VOTE_WINDOW_STORE", "CACHE_TTL", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}
}

// 沒有設定檔也沒有環境變數 → 全部吃預設值
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.ListenAddress != ":8080" {
		t.Fatalf("listen address = %q", c.Server.ListenAddress)
	}
	if c.Votes.Window != 60*time.Second {
		t.Fatalf("window = %v", c.Votes.Window)
	}
	if c.Votes.WindowStore != WindowStoreMemory {
		t.Fatalf("store = %q", c.Votes.WindowStore)
	}
	if c.Votes.DefaultDays != 30 {
		t.Fatalf("default days = %d", c.Votes.DefaultDays)
	}
}

// YAML 先讀，環境變數覆蓋
func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yml := `
server:
  listen_address: ":9000"
votes:
  window: 30s
  window_store: redis
cache_ttl: 5s
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PORT", "7000")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.ListenAddress != ":7000" {
		t.Fatalf("env should win, got %q", c.Server.ListenAddress)
	}
	if c.Votes.Window != 30*time.Second {
		t.Fatalf("window = %v", c.Votes.Window)
	}
	if c.Votes.WindowStore != WindowStoreRedis {
		t.Fatalf("store = %q", c.Votes.WindowStore)
	}
	if c.CacheTTL != 5*time.Second {
		t.Fatalf("cache ttl = %v", c.CacheTTL)
	}
}

func TestLoad_InvalidStore(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOTE_WINDOW_STORE", "memcached")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for unknown store")
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for bad PORT")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if !strings.HasPrefix(err.Error(), "read config: ") || !os.IsNotExist(errors.Cause(err)) {
		t.Fatalf("want wrapped not-exist error, got %v", err)
	}
}

func TestLoad_InvalidDurationKeepsCause(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOTE_WINDOW", "a minute")
	_, err := Load("")
	if err == nil {
		t.Fatalf("expected error for bad VOTE_WINDOW")
	}
	if !strings.HasPrefix(err.Error(), "invalid VOTE_WINDOW: ") || errors.Cause(err) == err {
		t.Fatalf("want wrapped duration error, got %v", err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenKeysAbsent(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "skip_dummy: false\n")

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := l.Current()
	if cfg.MaxOperationRetry != defaults().MaxOperationRetry {
		t.Fatalf("MaxOperationRetry = %d, want default", cfg.MaxOperationRetry)
	}
	if cfg.SkipDummy {
		t.Fatal("SkipDummy should be overridden to false")
	}
}

func TestLoadParsesAllKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "max_operation_retry: 7\nretry_cooldown: 45s\nskip_dummy: false\n")

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := l.Current()
	if cfg.MaxOperationRetry != 7 {
		t.Fatalf("MaxOperationRetry = %d, want 7", cfg.MaxOperationRetry)
	}
	if cfg.RetryCooldown != 45*time.Second {
		t.Fatalf("RetryCooldown = %v, want 45s", cfg.RetryCooldown)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "max_operation_retry: 3\n")

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	reloaded := make(chan int, 1)
	l.OnReload = func(cfg Config) { reloaded <- cfg.MaxOperationRetry }
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer l.Close()

	if err := os.WriteFile(path, []byte("max_operation_retry: 9\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case got := <-reloaded:
		if got != 9 {
			t.Fatalf("reloaded MaxOperationRetry = %d, want 9", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	if err == nil {
		t.Fatal("Load on a missing file should fail")
	}
}

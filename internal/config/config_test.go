package config

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Port       int    `yaml:"port"`
	ServerAddr string `yaml:"server_addr"`
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "port: 7777\nserver_addr: ws://localhost:7777/sabi\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load[testConfig](path)
	if err != nil {
		t.Fatalf("Load returned an error: %v", err)
	}
	if cfg.Port != 7777 {
		t.Fatalf("Port = %d, want 7777", cfg.Port)
	}
	if cfg.ServerAddr != "ws://localhost:7777/sabi" {
		t.Fatalf("ServerAddr = %q, want ws://localhost:7777/sabi", cfg.ServerAddr)
	}
}

func TestLoadErrorsOnMissingFile(t *testing.T) {
	if _, err := Load[testConfig]("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected Load to error on a missing file")
	}
}

func TestLoadErrorsOnMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [unterminated"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load[testConfig](path); err == nil {
		t.Fatal("expected Load to error on malformed YAML")
	}
}

func TestEnvAppliesWhenSet(t *testing.T) {
	t.Setenv("SABI_TEST_VALUE", "overridden")

	var got string
	Env("SABI_TEST_VALUE", func(v string) { got = v })

	if got != "overridden" {
		t.Fatalf("Env applied %q, want %q", got, "overridden")
	}
}

func TestEnvSkipsWhenUnset(t *testing.T) {
	os.Unsetenv("SABI_TEST_UNSET_VALUE")

	called := false
	Env("SABI_TEST_UNSET_VALUE", func(v string) { called = true })

	if called {
		t.Fatal("expected Env to skip apply when the variable is unset")
	}
}

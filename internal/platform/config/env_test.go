package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Addr string `env:"TOOLSCOPE_TEST_ADDR" envDefault:"localhost:9999"`
	Cap  int    `env:"TOOLSCOPE_TEST_CAP"  envDefault:"100"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "localhost:9999" {
		t.Fatalf("expected default addr localhost:9999, got %q", cfg.Addr)
	}
	if cfg.Cap != 100 {
		t.Fatalf("expected default cap 100, got %d", cfg.Cap)
	}
}

func TestParseEnvOverride(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("TOOLSCOPE_TEST_ADDR", "0.0.0.0:8080")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "0.0.0.0:8080" {
		t.Fatalf("expected overridden addr, got %q", cfg.Addr)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("TOOLSCOPE_TEST_CAP", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

package config

import "testing"

func TestLoadCortexDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Cortex.Home == "" {
		t.Fatal("expected a non-empty default CORTEX_HOME")
	}
	if cfg.Cortex.MaxContexts != 8 {
		t.Fatalf("expected default max contexts 8, got %d", cfg.Cortex.MaxContexts)
	}
	if cfg.Cortex.MemoryLimitMB != 2048 {
		t.Fatalf("expected default memory limit 2048MB, got %d", cfg.Cortex.MemoryLimitMB)
	}
	if cfg.Cortex.WatchEpsilon != 0.01 {
		t.Fatalf("expected default watch epsilon 0.01, got %f", cfg.Cortex.WatchEpsilon)
	}
}

func TestLoadCortexEnvOverride(t *testing.T) {
	t.Setenv("CORTEX_HOME", "/tmp/custom-cortex-home")
	t.Setenv("CORTEX_MAX_CONTEXTS", "16")

	cfg := Load()
	if cfg.Cortex.Home != "/tmp/custom-cortex-home" {
		t.Fatalf("expected overridden home, got %s", cfg.Cortex.Home)
	}
	if cfg.Cortex.MaxContexts != 16 {
		t.Fatalf("expected overridden max contexts 16, got %d", cfg.Cortex.MaxContexts)
	}
}

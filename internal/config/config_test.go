package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HUARAZBOT_HOME",
		"HUARAZBOT_API_KEY",
		"HUARAZBOT_BASE_URL",
		"HUARAZBOT_MODEL",
		"HUARAZBOT_EMBEDDING_API_KEY",
		"HUARAZBOT_EMBEDDING_BASE_URL",
		"HUARAZBOT_EMBEDDING_MODEL",
		"HUARAZBOT_EMBEDDING_PROVIDER",
		"HUARAZBOT_TELEGRAM_TOKEN",
		"HUARAZBOT_PORT",
		"HUARAZBOT_MEMORY_BUDGET",
		"HUARAZBOT_SESSION_TTL",
		"ANTHROPIC_API_KEY",
		"ANTHROPIC_BASE_URL",
		"OPENAI_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Agent.Model != DefaultModel {
		t.Errorf("model = %q, want %q", cfg.Agent.Model, DefaultModel)
	}
	if cfg.Agent.MaxToolIterations != DefaultMaxToolIterations {
		t.Errorf("maxToolIterations = %d, want %d", cfg.Agent.MaxToolIterations, DefaultMaxToolIterations)
	}
	if cfg.Agent.MemoryBudget != 2000 {
		t.Errorf("memoryBudget = %d, want 2000", cfg.Agent.MemoryBudget)
	}
	if cfg.Web.ChunkSize != 1000 || cfg.Web.ChunkOverlap != 200 {
		t.Errorf("chunking = %d/%d, want 1000/200", cfg.Web.ChunkSize, cfg.Web.ChunkOverlap)
	}
	if cfg.Prices.TimeoutSec != 10 {
		t.Errorf("prices timeout = %d, want 10", cfg.Prices.TimeoutSec)
	}
	if got := len(cfg.Prices.Paths()); got != 26 {
		t.Errorf("len(Paths()) = %d, want 26", got)
	}
	if len(cfg.Web.URLs) != 4 {
		t.Errorf("len(web urls) = %d, want 4", len(cfg.Web.URLs))
	}
	if !cfg.Channels.WebUI.Enabled {
		t.Error("webui should be enabled by default")
	}
}

func TestDefaultConfig_PathsAreCopies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Prices.PackagePaths[0] = "/changed"
	if DefaultPackagePaths[0] == "/changed" {
		t.Fatal("DefaultConfig must not alias the package-level path slices")
	}
}

func TestPricesConfig_PathsOrder(t *testing.T) {
	p := PricesConfig{
		PackagePaths:  []string{"/paquete-a"},
		TourPaths:     []string{"/tours-b"},
		TrekkingPaths: []string{"/trekking-c"},
	}
	got := p.Paths()
	want := []string{"/paquete-a", "/tours-b", "/trekking-c"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Paths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	clearProviderEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Agent.Model != DefaultModel {
		t.Errorf("expected default model %q, got %q", DefaultModel, cfg.Agent.Model)
	}
	wantCache := filepath.Join(tmpDir, ".huarazbot", "data", "tours_data.json")
	if cfg.Prices.CachePath != wantCache {
		t.Errorf("cachePath = %q, want %q", cfg.Prices.CachePath, wantCache)
	}
	wantIndex := filepath.Join(tmpDir, ".huarazbot", "data", "web_index.db")
	if cfg.Web.IndexPath != wantIndex {
		t.Errorf("indexPath = %q, want %q", cfg.Web.IndexPath, wantIndex)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearProviderEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("HUARAZBOT_HOME", tmpDir)

	testCfg := map[string]any{
		"agent": map[string]any{
			"model":             "gpt-4o-mini",
			"maxToolIterations": 4,
		},
		"provider": map[string]any{
			"type":   "openai",
			"apiKey": "sk-test-key",
		},
		"web": map[string]any{
			"urls":         []string{"https://example.com/"},
			"chunkSize":    100,
			"chunkOverlap": 500,
		},
	}
	data, _ := json.MarshalIndent(testCfg, "", "  ")
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Agent.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", cfg.Agent.Model)
	}
	if cfg.Agent.MaxToolIterations != 4 {
		t.Errorf("maxToolIterations = %d, want 4", cfg.Agent.MaxToolIterations)
	}
	if cfg.Provider.APIKey != "sk-test-key" {
		t.Errorf("apiKey = %q, want sk-test-key", cfg.Provider.APIKey)
	}
	if len(cfg.Web.URLs) != 1 || cfg.Web.URLs[0] != "https://example.com/" {
		t.Errorf("urls = %v", cfg.Web.URLs)
	}
	if cfg.Web.ChunkOverlap != 20 {
		t.Errorf("invalid overlap should be clamped to a fifth of the chunk, got %d", cfg.Web.ChunkOverlap)
	}
	// untouched sections keep their defaults
	if cfg.Prices.BaseURL != DefaultPricesBaseURL {
		t.Errorf("prices baseUrl = %q", cfg.Prices.BaseURL)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	clearProviderEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("HUARAZBOT_HOME", tmpDir)
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantKey  string
		wantType string
	}{
		{"HUARAZBOT_API_KEY", map[string]string{"HUARAZBOT_API_KEY": "bot-key"}, "bot-key", ""},
		{"ANTHROPIC_API_KEY", map[string]string{"ANTHROPIC_API_KEY": "anthropic-key"}, "anthropic-key", ""},
		{"OPENAI_API_KEY", map[string]string{"OPENAI_API_KEY": "openai-key"}, "openai-key", "openai"},
		{"explicit wins", map[string]string{"HUARAZBOT_API_KEY": "bot-key", "OPENAI_API_KEY": "openai-key"}, "bot-key", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderEnv(t)
			t.Setenv("HUARAZBOT_HOME", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig error: %v", err)
			}
			if cfg.Provider.APIKey != tt.wantKey {
				t.Errorf("apiKey = %q, want %q", cfg.Provider.APIKey, tt.wantKey)
			}
			if cfg.Provider.Type != tt.wantType {
				t.Errorf("type = %q, want %q", cfg.Provider.Type, tt.wantType)
			}
		})
	}
}

func TestLoadConfig_NumericEnvOverrides(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("HUARAZBOT_HOME", t.TempDir())
	t.Setenv("HUARAZBOT_PORT", "9090")
	t.Setenv("HUARAZBOT_MEMORY_BUDGET", "500")
	t.Setenv("HUARAZBOT_SESSION_TTL", "1h")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Gateway.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Gateway.Port)
	}
	if cfg.Agent.MemoryBudget != 500 {
		t.Errorf("memoryBudget = %d, want 500", cfg.Agent.MemoryBudget)
	}
	if cfg.Sessions.IdleTTL != "1h" {
		t.Errorf("idleTtl = %q, want 1h", cfg.Sessions.IdleTTL)
	}
}

func TestSaveConfig(t *testing.T) {
	clearProviderEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("HUARAZBOT_HOME", filepath.Join(tmpDir, "nested"))

	cfg := DefaultConfig()
	cfg.Provider.APIKey = "saved-key"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig error: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if loaded.Provider.APIKey != "saved-key" {
		t.Errorf("apiKey = %q, want saved-key", loaded.Provider.APIKey)
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultModel             = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens         = 2048
	DefaultTemperature       = 0.7
	DefaultMaxToolIterations = 10
	DefaultMemoryBudget      = 10 * 200
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 8000
	DefaultBufSize           = 100

	DefaultEmbeddingModel     = "text-embedding-3-small"
	DefaultEmbeddingTimeoutMs = 30000
	DefaultEmbeddingBatchSize = 64

	DefaultPricesBaseURL     = "https://www.huarazturismo.com"
	DefaultFetchTimeoutSec   = 10
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultRequestsPerSecond = 2.0

	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultWebConcurrency = 4

	DefaultSessionIdleTTL   = "24h"
	DefaultPricesCron       = "0 0 3 * * *"
	DefaultIndexCron        = "0 0 4 * * 1"
	DefaultSessionSweepCron = "0 */10 * * * *"
)

// Tour pages published under DefaultPricesBaseURL, grouped the way the site groups them.
var (
	DefaultPackagePaths = []string{
		"/paquete-huaraz-4d-3n.php",
		"/paquete-huaraz-3d-2n.php",
		"/paquete-huaraz-2d-1n.php",
		"/huaraz-de-aventura-2-dias-1-noche.php",
		"/paquete-turistico-huaraz-encantador-5d-4n.php",
		"/tour-huaraz-aventura-3d-2n.php",
		"/paquetes-turisticos-huaraz-3d-2n.php",
		"/paquete-huaraz-ideal-4d-3n.php",
	}
	DefaultTourPaths = []string{
		"/tours-laguna-llanganuco.php",
		"/tours-chavin-de-huantar.php",
		"/tours-nevado-pastoruri.php",
		"/tours-honcopampa.php",
		"/tours-huaraz.php",
		"/laguna-paron.php",
		"/tours-canon-del-pato.php",
		"/tours-chacas-punta-olimpica.php",
		"/tours-laguna-rocotuyoc-laguna-congelada.php",
	}
	DefaultTrekkingPaths = []string{
		"/trekking-laguna-69.php",
		"/trekking-santa-cruz-llanganuco.php",
		"/trekking-olleros-chavin.php",
		"/trekking-laguna-churup.php",
		"/trekking-quilcayhuanca-cojup.php",
		"/trekking-cedros-alpamayo.php",
		"/honda-ulta-trek.php",
		"/trekking-willcahuain-monterrey.php",
		"/laguna-wilcacocha-trek-huaraz.php",
	}
	DefaultWebURLs = []string{
		"https://www.huarazturismo.com/",
		"https://www.huarazturismo.com/tours",
		"https://www.huarazturismo.com/trekking",
		"https://www.huarazturismo.com/hoteles",
	}
)

type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Provider  ProviderConfig  `json:"provider"`
	Embedding EmbeddingConfig `json:"embedding"`
	Prices    PricesConfig    `json:"prices"`
	Web       WebConfig       `json:"web"`
	Sessions  SessionsConfig  `json:"sessions"`
	Refresh   RefreshConfig   `json:"refresh"`
	Channels  ChannelsConfig  `json:"channels"`
	Gateway   GatewayConfig   `json:"gateway"`
}

type AgentConfig struct {
	Model             string  `json:"model"`
	MaxTokens         int     `json:"maxTokens"`
	Temperature       float64 `json:"temperature"`
	MaxToolIterations int     `json:"maxToolIterations"`
	// MemoryBudget is the character budget of the conversation window sent to the model.
	MemoryBudget int `json:"memoryBudget"`
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "anthropic" (default) or "openai"
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type EmbeddingConfig struct {
	Provider  string `json:"provider,omitempty"` // "api" (default) or "ollama"
	BaseURL   string `json:"baseUrl,omitempty"`
	APIKey    string `json:"apiKey,omitempty"`
	Model     string `json:"model,omitempty"`
	Dimension int    `json:"dimension,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty"`
	BatchSize int    `json:"batchSize,omitempty"`
}

type PricesConfig struct {
	BaseURL        string   `json:"baseUrl"`
	PackagePaths   []string `json:"packagePaths"`
	TourPaths      []string `json:"tourPaths"`
	TrekkingPaths  []string `json:"trekkingPaths"`
	CachePath      string   `json:"cachePath,omitempty"`
	TimeoutSec     int      `json:"timeoutSec"`
	UserAgent      string   `json:"userAgent,omitempty"`
	RequestsPerSec float64  `json:"requestsPerSec,omitempty"`
}

// Paths returns every configured tour page in scrape order.
func (p PricesConfig) Paths() []string {
	paths := make([]string, 0, len(p.PackagePaths)+len(p.TourPaths)+len(p.TrekkingPaths))
	paths = append(paths, p.PackagePaths...)
	paths = append(paths, p.TourPaths...)
	paths = append(paths, p.TrekkingPaths...)
	return paths
}

type WebConfig struct {
	URLs         []string `json:"urls"`
	IndexPath    string   `json:"indexPath,omitempty"`
	ChunkSize    int      `json:"chunkSize"`
	ChunkOverlap int      `json:"chunkOverlap"`
	TimeoutSec   int      `json:"timeoutSec"`
	Concurrency  int      `json:"concurrency"`
}

type SessionsConfig struct {
	IdleTTL string `json:"idleTtl,omitempty"`
}

type RefreshConfig struct {
	PricesCron       string `json:"pricesCron"`
	IndexCron        string `json:"indexCron"`
	SessionSweepCron string `json:"sessionSweepCron"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WebUI    WebUIConfig    `json:"webui"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type WebUIConfig struct {
	Enabled   bool     `json:"enabled"`
	AllowFrom []string `json:"allowFrom"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:             DefaultModel,
			MaxTokens:         DefaultMaxTokens,
			Temperature:       DefaultTemperature,
			MaxToolIterations: DefaultMaxToolIterations,
			MemoryBudget:      DefaultMemoryBudget,
		},
		Embedding: EmbeddingConfig{
			Model:     DefaultEmbeddingModel,
			TimeoutMs: DefaultEmbeddingTimeoutMs,
			BatchSize: DefaultEmbeddingBatchSize,
		},
		Prices: PricesConfig{
			BaseURL:        DefaultPricesBaseURL,
			PackagePaths:   append([]string(nil), DefaultPackagePaths...),
			TourPaths:      append([]string(nil), DefaultTourPaths...),
			TrekkingPaths:  append([]string(nil), DefaultTrekkingPaths...),
			TimeoutSec:     DefaultFetchTimeoutSec,
			UserAgent:      DefaultUserAgent,
			RequestsPerSec: DefaultRequestsPerSecond,
		},
		Web: WebConfig{
			URLs:         append([]string(nil), DefaultWebURLs...),
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			TimeoutSec:   DefaultFetchTimeoutSec,
			Concurrency:  DefaultWebConcurrency,
		},
		Sessions: SessionsConfig{
			IdleTTL: DefaultSessionIdleTTL,
		},
		Refresh: RefreshConfig{
			PricesCron:       DefaultPricesCron,
			IndexCron:        DefaultIndexCron,
			SessionSweepCron: DefaultSessionSweepCron,
		},
		Channels: ChannelsConfig{
			WebUI: WebUIConfig{Enabled: true},
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

func ConfigDir() string {
	if dir := os.Getenv("HUARAZBOT_HOME"); dir != "" {
		return dir
	}
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".huarazbot")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DataDir holds the scrape cache and the web index.
func DataDir() string {
	return filepath.Join(ConfigDir(), "data")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("HUARAZBOT_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if cfg.Provider.APIKey == "" {
			cfg.Provider.APIKey = key
			if cfg.Provider.Type == "" {
				cfg.Provider.Type = "openai"
			}
		}
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = key
		}
	}
	if url := os.Getenv("HUARAZBOT_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if url := os.Getenv("ANTHROPIC_BASE_URL"); url != "" && cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("HUARAZBOT_MODEL"); model != "" {
		cfg.Agent.Model = model
	}
	if key := os.Getenv("HUARAZBOT_EMBEDDING_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	}
	if url := os.Getenv("HUARAZBOT_EMBEDDING_BASE_URL"); url != "" {
		cfg.Embedding.BaseURL = url
	}
	if model := os.Getenv("HUARAZBOT_EMBEDDING_MODEL"); model != "" {
		cfg.Embedding.Model = model
	}
	if provider := os.Getenv("HUARAZBOT_EMBEDDING_PROVIDER"); provider != "" {
		cfg.Embedding.Provider = provider
	}
	if token := os.Getenv("HUARAZBOT_TELEGRAM_TOKEN"); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if port := os.Getenv("HUARAZBOT_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = parsed
		}
	}
	if budget := os.Getenv("HUARAZBOT_MEMORY_BUDGET"); budget != "" {
		if parsed, err := strconv.Atoi(budget); err == nil {
			cfg.Agent.MemoryBudget = parsed
		}
	}
	if ttl := os.Getenv("HUARAZBOT_SESSION_TTL"); ttl != "" {
		cfg.Sessions.IdleTTL = ttl
	}

	if cfg.Embedding.BaseURL == "" && strings.EqualFold(cfg.Provider.Type, "openai") {
		cfg.Embedding.BaseURL = cfg.Provider.BaseURL
	}
	if cfg.Prices.CachePath == "" {
		cfg.Prices.CachePath = filepath.Join(DataDir(), "tours_data.json")
	}
	if cfg.Web.IndexPath == "" {
		cfg.Web.IndexPath = filepath.Join(DataDir(), "web_index.db")
	}
	if cfg.Agent.MaxToolIterations <= 0 {
		cfg.Agent.MaxToolIterations = DefaultMaxToolIterations
	}
	if cfg.Agent.MemoryBudget <= 0 {
		cfg.Agent.MemoryBudget = DefaultMemoryBudget
	}
	if cfg.Prices.TimeoutSec <= 0 {
		cfg.Prices.TimeoutSec = DefaultFetchTimeoutSec
	}
	if cfg.Web.TimeoutSec <= 0 {
		cfg.Web.TimeoutSec = DefaultFetchTimeoutSec
	}
	if cfg.Web.ChunkSize <= 0 {
		cfg.Web.ChunkSize = DefaultChunkSize
	}
	if cfg.Web.ChunkOverlap < 0 || cfg.Web.ChunkOverlap >= cfg.Web.ChunkSize {
		cfg.Web.ChunkOverlap = cfg.Web.ChunkSize / 5
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}

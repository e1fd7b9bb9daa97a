package gateway

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/stellarlinkco/huarazbot/internal/agent"
	"github.com/stellarlinkco/huarazbot/internal/config"
	"github.com/stellarlinkco/huarazbot/internal/fetch"
	"github.com/stellarlinkco/huarazbot/internal/llm"
	"github.com/stellarlinkco/huarazbot/internal/rag"
	"github.com/stellarlinkco/huarazbot/internal/session"
	"github.com/stellarlinkco/huarazbot/internal/tools"
	"github.com/stellarlinkco/huarazbot/internal/tours"
)

// ClientFactory creates the model client (allows injection in tests).
type ClientFactory func(cfg *config.Config) (llm.Client, error)

// DefaultClientFactory talks to the configured provider through agentsdk-go.
func DefaultClientFactory(cfg *config.Config) (llm.Client, error) {
	return llm.NewClient(cfg)
}

// Options for assembling the bot and the gateway.
type Options struct {
	ClientFactory ClientFactory
	Embedder      rag.Embedder
	PriceGetter   fetch.Getter
	WebGetter     fetch.Getter
	SignalChan    chan os.Signal // for testing signal handling
}

// Bot is the assembled chatbot: price catalog, web index, tools, agent and
// sessions. The CLI commands and the gateway share it.
type Bot struct {
	Catalog  *tours.Catalog
	Scraper  *tours.Scraper
	Index    *rag.Index
	Tools    *tools.Registry
	Agent    *agent.Agent
	Sessions *session.Manager
}

// NewBot wires the components for cfg. Only the model client is required to
// be constructible; the catalog and index fill lazily.
func NewBot(cfg *config.Config, opts Options) (*Bot, error) {
	factory := opts.ClientFactory
	if factory == nil {
		factory = DefaultClientFactory
	}
	client, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	b := &Bot{}
	b.Scraper, b.Catalog = NewCatalog(cfg, opts)
	b.Index = NewIndex(cfg, opts)
	b.Tools = tools.Default(b.Catalog, b.Index)
	b.Agent = agent.New(client, b.Tools, agent.Options{
		MaxIterations: cfg.Agent.MaxToolIterations,
		MemoryBudget:  cfg.Agent.MemoryBudget,
	})

	ttl, err := parseTTL(cfg.Sessions.IdleTTL)
	if err != nil {
		return nil, err
	}
	b.Sessions = session.NewManager(b.Agent, ttl)

	log.Printf("[gateway] bot ready: %d tools, %d tour pages, %d web sources",
		len(b.Tools.Names()), len(cfg.Prices.Paths()), len(cfg.Web.URLs))
	return b, nil
}

// NewCatalog builds the tour scraper and the cached catalog it fills.
func NewCatalog(cfg *config.Config, opts Options) (*tours.Scraper, *tours.Catalog) {
	getter := opts.PriceGetter
	if getter == nil {
		getter = fetch.New(fetch.Options{
			Timeout:           time.Duration(cfg.Prices.TimeoutSec) * time.Second,
			UserAgent:         cfg.Prices.UserAgent,
			RequestsPerSecond: cfg.Prices.RequestsPerSec,
		})
	}
	scraper := tours.NewScraper(cfg.Prices.BaseURL, cfg.Prices.Paths(), getter)
	return scraper, tours.NewCatalog(tours.NewCache(cfg.Prices.CachePath), scraper)
}

// NewIndex builds the web index over the configured tourism pages.
func NewIndex(cfg *config.Config, opts Options) *rag.Index {
	getter := opts.WebGetter
	if getter == nil {
		getter = fetch.New(fetch.Options{
			Timeout:   time.Duration(cfg.Web.TimeoutSec) * time.Second,
			UserAgent: cfg.Prices.UserAgent,
		})
	}
	embedder := opts.Embedder
	if embedder == nil {
		embedder = rag.NewEmbedder(cfg.Embedding)
	}
	return rag.NewIndex(
		cfg.Web.IndexPath,
		embedder,
		rag.NewSplitter(cfg.Web.ChunkSize, cfg.Web.ChunkOverlap),
		rag.NewWebContentLoader(cfg.Web.URLs, getter, cfg.Web.Concurrency),
	)
}

func parseTTL(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse sessions.idleTtl %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("sessions.idleTtl must not be negative: %s", s)
	}
	return d, nil
}

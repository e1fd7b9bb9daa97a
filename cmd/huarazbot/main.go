package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stellarlinkco/huarazbot/internal/config"
	"github.com/stellarlinkco/huarazbot/internal/cron"
	"github.com/stellarlinkco/huarazbot/internal/gateway"
	"github.com/stellarlinkco/huarazbot/internal/rag"
	"github.com/stellarlinkco/huarazbot/internal/tours"
)

const missingKeyHint = "API key not set. Run 'huarazbot onboard' or set HUARAZBOT_API_KEY / ANTHROPIC_API_KEY"

// sampleQueries exercise a freshly built web index.
var sampleQueries = []string{
	"precios de tours en huaraz",
	"hoteles en huaraz",
	"laguna 69 tour",
}

// CLIOptions carries injectable dependencies for the command handlers.
type CLIOptions struct {
	Bot    gateway.Options
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (o CLIOptions) withDefaults() CLIOptions {
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	return o
}

var rootCmd = &cobra.Command{
	Use:   "huarazbot",
	Short: "huarazbot - tourism assistant for Huaraz, Perú",
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Chat with the assistant in single message or REPL mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgentWithOptions(cmd.Context(), CLIOptions{})
	},
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the web UI, telegram and the refresh scheduler",
	RunE:  runGateway,
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape tour prices and save them to the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScrapeWithOptions(cmd.Context(), CLIOptions{})
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or load the web index and run sample searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndexWithOptions(cmd.Context(), CLIOptions{})
	},
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnboard(cmd.OutOrStdout())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show huarazbot status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd.OutOrStdout())
	},
}

var (
	messageFlag     string
	useCacheFlag    bool
	forceReloadFlag bool
)

func init() {
	agentCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	scrapeCmd.Flags().BoolVar(&useCacheFlag, "use-cache", false, "Print the cached tours without scraping")
	indexCmd.Flags().BoolVar(&forceReloadFlag, "force-reload", false, "Rebuild the index from the web even if a saved one exists")
	rootCmd.AddCommand(agentCmd, gatewayCmd, scrapeCmd, indexCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runAgentWithOptions runs the agent with injectable dependencies for testing
func runAgentWithOptions(ctx context.Context, opts CLIOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts = opts.withDefaults()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.Bot.ClientFactory == nil && cfg.Provider.APIKey == "" {
		return errors.New(missingKeyHint)
	}

	bot, err := gateway.NewBot(cfg, opts.Bot)
	if err != nil {
		return err
	}
	sessionID := "cli-" + uuid.NewString()

	// Single message mode
	if messageFlag != "" {
		res := bot.Sessions.Process(ctx, sessionID, messageFlag)
		fmt.Fprintln(opts.Stdout, res.Text)
		if !res.Success {
			return fmt.Errorf("agent error: %s", res.Error)
		}
		return nil
	}

	// REPL mode
	fmt.Fprintln(opts.Stdout, "🏔️  huarazbot (escribe 'salir' para terminar, 'limpiar' para borrar el historial)")
	scanner := bufio.NewScanner(opts.Stdin)
	for {
		fmt.Fprint(opts.Stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit", "salir":
			return nil
		case "clear", "limpiar":
			bot.Sessions.Clear(sessionID)
			fmt.Fprintln(opts.Stdout, gateway.ClearedText)
			continue
		}

		res := bot.Sessions.Process(ctx, sessionID, input)
		if !res.Success {
			fmt.Fprintf(opts.Stderr, "Error: %s\n", res.Error)
		}
		fmt.Fprintln(opts.Stdout, res.Text)
	}
	return scanner.Err()
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		return errors.New(missingKeyHint)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runScrapeWithOptions(ctx context.Context, opts CLIOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts = opts.withDefaults()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	_, catalog := gateway.NewCatalog(cfg, opts.Bot)

	if useCacheFlag {
		records, ok := catalog.Load()
		if !ok {
			return fmt.Errorf("no tour cache at %s, run 'huarazbot scrape' first", cfg.Prices.CachePath)
		}
		fmt.Fprintf(opts.Stdout, "✅ Cargados %d tours desde caché\n", len(records))
		printTours(opts.Stdout, records)
		return nil
	}

	fmt.Fprintf(opts.Stdout, "📥 Iniciando scraping de %d páginas...\n", len(cfg.Prices.Paths()))
	records, err := catalog.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("scrape tours: %w", err)
	}
	fmt.Fprintf(opts.Stdout, "✅ Scraping completado: %d tours guardados en %s\n", len(records), cfg.Prices.CachePath)
	printTours(opts.Stdout, records)
	return nil
}

func printTours(w io.Writer, records []tours.TourRecord) {
	fmt.Fprintln(w, "\n📋 TOURS DISPONIBLES CON PRECIOS")
	for i, rec := range records {
		fmt.Fprintf(w, "\n%d. %s\n", i+1, rec.Name)
		if rec.Price != "" {
			fmt.Fprintf(w, "   💰 Precio: %s\n", rec.Price)
		}
		if rec.Duration != "" {
			fmt.Fprintf(w, "   ⏱️  Duración: %s\n", rec.Duration)
		}
		if rec.Difficulty != "" {
			fmt.Fprintf(w, "   📊 Dificultad: %s\n", rec.Difficulty)
		}
	}
}

func runIndexWithOptions(ctx context.Context, opts CLIOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts = opts.withDefaults()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	index := gateway.NewIndex(cfg, opts.Bot)

	if !index.Initialize(ctx, forceReloadFlag) {
		return fmt.Errorf("web index could not be built from %d urls", len(cfg.Web.URLs))
	}
	st := index.Stats()
	fmt.Fprintf(opts.Stdout, "✅ Índice listo: %d documentos, %d fragmentos (dim %d)\n", st.Documents, st.Chunks, st.Dimension)

	for _, q := range sampleQueries {
		fmt.Fprintf(opts.Stdout, "\n🔍 Búsqueda: '%s'\n", q)
		results, err := index.Search(ctx, q, 2)
		if err != nil {
			fmt.Fprintf(opts.Stderr, "   error: %v\n", err)
			continue
		}
		for i, r := range results {
			fmt.Fprintf(opts.Stdout, "  %d. [%s]: %s...\n", i+1, r.SourceURL, preview(r.Text, 150))
		}
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

func runOnboard(w io.Writer) error {
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(config.DataDir(), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(w, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(w, "Config already exists: %s\n", cfgPath)
	}

	fmt.Fprintf(w, "Data dir ready: %s\n", config.DataDir())
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintf(w, "  1. Edit %s to set your API key\n", cfgPath)
	fmt.Fprintln(w, "  2. Or set HUARAZBOT_API_KEY environment variable")
	fmt.Fprintln(w, "  3. Run 'huarazbot scrape' and 'huarazbot index' to warm the caches")
	fmt.Fprintln(w, "  4. Run 'huarazbot agent -m \"¿Cuánto cuesta el tour a Laguna 69?\"' to test")
	return nil
}

func runStatus(w io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(w, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(w, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(w, "Model: %s\n", cfg.Agent.Model)
	fmt.Fprintf(w, "Provider: %s\n", providerDisplay(cfg.Provider.Type))
	fmt.Fprintf(w, "API Key: %s\n", maskKey(cfg.Provider.APIKey))
	fmt.Fprintf(w, "Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Fprintf(w, "WebUI: enabled=%v (%s:%d)\n", cfg.Channels.WebUI.Enabled, cfg.Gateway.Host, cfg.Gateway.Port)

	if records, ok := tours.NewCache(cfg.Prices.CachePath).Load(); ok {
		fmt.Fprintf(w, "Tours: %d cached (%s)\n", len(records), cfg.Prices.CachePath)
	} else {
		fmt.Fprintln(w, "Tours: no cache (run 'huarazbot scrape')")
	}

	index := rag.NewIndex(cfg.Web.IndexPath, nil, nil, nil)
	if index.Reload() {
		st := index.Stats()
		fmt.Fprintf(w, "Web index: %d documents, %d chunks (%s)\n", st.Documents, st.Chunks, cfg.Web.IndexPath)
	} else {
		fmt.Fprintln(w, "Web index: not built (run 'huarazbot index')")
	}

	states, err := cron.LoadStates(gateway.CronStatePath())
	if err != nil {
		fmt.Fprintf(w, "Refresh: error (%v)\n", err)
		return nil
	}
	for _, name := range []string{cron.JobPrices, cron.JobIndex, cron.JobSessionSweep} {
		st, ok := states[name]
		if !ok {
			fmt.Fprintf(w, "Refresh %s: never run\n", name)
			continue
		}
		line := fmt.Sprintf("Refresh %s: %s at %s", name, st.LastStatus, st.LastRunAt.Format("2006-01-02 15:04"))
		if st.LastError != "" {
			line += " (" + st.LastError + ")"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "not set"
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return "set"
	}
}

func providerDisplay(t string) string {
	if t == "" {
		return "anthropic (default)"
	}
	return t
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sourcegraph/conc"

	"github.com/stellarlinkco/huarazbot/internal/bus"
	"github.com/stellarlinkco/huarazbot/internal/channel"
	"github.com/stellarlinkco/huarazbot/internal/config"
	"github.com/stellarlinkco/huarazbot/internal/cron"
)

// ClearedText confirms a /clear command.
const ClearedText = "Historial limpiado. ¿En qué más puedo ayudarte?"

// CronStatePath is where the refresh jobs persist their last run.
func CronStatePath() string {
	return filepath.Join(config.DataDir(), "cron", "state.json")
}

type Gateway struct {
	cfg        *config.Config
	bot        *Bot
	bus        *bus.MessageBus
	channels   *channel.ChannelManager
	cron       *cron.Service
	handlers   conc.WaitGroup
	loopDone   chan struct{}
	signalChan chan os.Signal // for testing
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	bot, err := NewBot(cfg, opts)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		cfg:        cfg,
		bot:        bot,
		bus:        bus.NewMessageBus(config.DefaultBufSize),
		signalChan: opts.SignalChan,
	}

	g.cron = cron.NewService(CronStatePath())
	if err := g.registerRefreshJobs(); err != nil {
		return nil, err
	}

	// Channels (with gateway config for WebUI port)
	chMgr, err := channel.NewChannelManagerWithGateway(cfg.Channels, cfg.Gateway, g.bus, bot.Sessions)
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	return g, nil
}

// Bot exposes the assembled components.
func (g *Gateway) Bot() *Bot { return g.bot }

func (g *Gateway) registerRefreshJobs() error {
	jobs := []struct {
		name string
		expr string
		run  cron.RunFunc
	}{
		{cron.JobPrices, g.cfg.Refresh.PricesCron, g.refreshPrices},
		{cron.JobIndex, g.cfg.Refresh.IndexCron, g.refreshIndex},
		{cron.JobSessionSweep, g.cfg.Refresh.SessionSweepCron, g.sweepSessions},
	}
	for _, j := range jobs {
		if err := g.cron.AddJob(j.name, j.expr, j.run); err != nil {
			return fmt.Errorf("register refresh job: %w", err)
		}
	}
	return nil
}

func (g *Gateway) refreshPrices(ctx context.Context) (string, error) {
	records, err := g.bot.Catalog.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d tours", len(records)), nil
}

func (g *Gateway) refreshIndex(ctx context.Context) (string, error) {
	if !g.bot.Index.Initialize(ctx, true) {
		return "", errors.New("web index rebuild failed, previous index kept")
	}
	st := g.bot.Index.Stats()
	return fmt.Sprintf("%d documents, %d chunks", st.Documents, st.Chunks), nil
}

func (g *Gateway) sweepSessions(ctx context.Context) (string, error) {
	return fmt.Sprintf("%d sessions evicted", g.bot.Sessions.Sweep()), nil
}

// warmUp loads the price catalog and the web index so the first questions
// do not pay for a scrape. Failures only degrade the tools.
func (g *Gateway) warmUp(ctx context.Context) {
	if err := g.bot.Catalog.Ensure(ctx); err != nil {
		log.Printf("[gateway] price catalog warm-up: %v", err)
	} else {
		log.Printf("[gateway] price catalog ready: %d tours", g.bot.Catalog.Len())
	}
	if g.bot.Index.Initialize(ctx, false) {
		st := g.bot.Index.Stats()
		log.Printf("[gateway] web index ready: %d documents, %d chunks", st.Documents, st.Chunks)
	} else {
		log.Printf("[gateway] web index unavailable, web search disabled until a rebuild succeeds")
	}
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.cron.Start(ctx); err != nil {
		log.Printf("[gateway] cron start warning: %v", err)
	}

	go g.warmUp(ctx)
	g.loopDone = make(chan struct{})
	go func() {
		defer close(g.loopDone)
		g.processLoop(ctx)
	}()

	log.Printf("[gateway] running on %s:%d", g.cfg.Gateway.Host, g.cfg.Gateway.Port)

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Printf("[gateway] shutting down...")
	cancel()
	return g.Shutdown()
}

// processLoop answers bus messages. Each message runs in its own goroutine;
// the session manager keeps messages of one chat from overlapping.
func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			if ctx.Err() != nil {
				log.Printf("[gateway] dropping message from %s/%s during shutdown", msg.Channel, msg.SenderID)
				return
			}
			g.handlers.Go(func() { g.handle(ctx, msg) })
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handle(ctx context.Context, msg bus.InboundMessage) {
	key := msg.SessionKey()
	log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))

	var reply string
	if msg.Metadata["command"] == channel.CommandClear {
		g.bot.Sessions.Clear(key)
		reply = ClearedText
	} else {
		res := g.bot.Sessions.Process(ctx, key, msg.Content)
		if !res.Success {
			log.Printf("[gateway] agent error for %s: %s", key, res.Error)
		}
		reply = res.Text
	}
	if reply == "" {
		return
	}

	if err := g.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
	}); err != nil {
		log.Printf("[gateway] reply to %s dropped: %v", key, err)
	}
}

// Shutdown stops the scheduler and channels and waits for in-flight
// messages. When Run started the loop, it must have returned first so no
// handler starts during the wait.
func (g *Gateway) Shutdown() error {
	g.cron.Stop()
	_ = g.channels.StopAll()
	if g.loopDone != nil {
		<-g.loopDone
	}
	g.handlers.Wait()
	log.Printf("[gateway] shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

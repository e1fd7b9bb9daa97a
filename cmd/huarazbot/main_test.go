package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stellarlinkco/huarazbot/internal/config"
	"github.com/stellarlinkco/huarazbot/internal/gateway"
	"github.com/stellarlinkco/huarazbot/internal/llm"
	"github.com/stellarlinkco/huarazbot/internal/tours"
)

const testBase = "https://tours.test"

type mapGetter map[string]string

func (m mapGetter) Get(ctx context.Context, url string) ([]byte, error) {
	body, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: http 404", url)
	}
	return []byte(body), nil
}

type hashEmbedder struct{}

func (hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 16)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%16]++
	}
	v[0] += 0.01
	return v, nil
}

func (e hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

var testPages = mapGetter{
	testBase + "/trekking-laguna-69.php": `<html><head><title>Trekking Laguna 69 2024 | Huaraz Turismo</title></head>
<body><h1>Laguna 69</h1><p>Precio: S/ 45 por persona</p><p>Duración: Full Day</p>
<p>Dificultad: Moderada</p></body></html>`,
	testBase + "/": `<html><body><p>Huaraz tiene hoteles y hostales para todos los precios. El tour a laguna 69 sale a las 5 am.</p></body></html>`,
}

// setupHome points the config at a temp dir and writes a config that only
// touches the fake site.
func setupHome(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HUARAZBOT_HOME", dir)
	for _, k := range []string{"HUARAZBOT_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "HUARAZBOT_TELEGRAM_TOKEN"} {
		t.Setenv(k, "")
	}

	cfg := config.DefaultConfig()
	cfg.Prices.BaseURL = testBase
	cfg.Prices.PackagePaths = nil
	cfg.Prices.TourPaths = nil
	cfg.Prices.TrekkingPaths = []string{"/trekking-laguna-69.php"}
	cfg.Web.URLs = []string{testBase + "/"}
	if err := config.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	return loaded
}

func resetFlags(t *testing.T) {
	t.Helper()
	messageFlag, useCacheFlag, forceReloadFlag = "", false, false
	t.Cleanup(func() { messageFlag, useCacheFlag, forceReloadFlag = "", false, false })
}

// echoClient answers every question with a fixed prefix, or fails.
func echoClient(fail bool) gateway.ClientFactory {
	return func(*config.Config) (llm.Client, error) {
		return llm.ClientFunc(func(ctx context.Context, req llm.Request) (llm.Reply, error) {
			if fail {
				return llm.Reply{}, errors.New("upstream 500")
			}
			return llm.Reply{Text: "eco: " + req.Messages[len(req.Messages)-1].Content}, nil
		}), nil
	}
}

func TestInit(t *testing.T) {
	want := map[string]bool{"agent": false, "gateway": false, "scrape": false, "index": false, "onboard": false, "status": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
	if agentCmd.Flags().Lookup("message") == nil {
		t.Error("agent missing --message")
	}
	if scrapeCmd.Flags().Lookup("use-cache") == nil {
		t.Error("scrape missing --use-cache")
	}
	if indexCmd.Flags().Lookup("force-reload") == nil {
		t.Error("index missing --force-reload")
	}
}

func TestRunAgent_NoAPIKey(t *testing.T) {
	setupHome(t)
	resetFlags(t)
	err := runAgentWithOptions(context.Background(), CLIOptions{Stdout: &bytes.Buffer{}})
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Errorf("err = %v, want missing key", err)
	}
}

func TestRunGateway_NoAPIKey(t *testing.T) {
	setupHome(t)
	err := runGateway(gatewayCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Errorf("err = %v, want missing key", err)
	}
}

func TestRunAgentWithOptions_SingleMessage(t *testing.T) {
	setupHome(t)
	resetFlags(t)
	messageFlag = "hola"

	var out bytes.Buffer
	err := runAgentWithOptions(context.Background(), CLIOptions{
		Bot:    gateway.Options{ClientFactory: echoClient(false), Embedder: hashEmbedder{}, PriceGetter: testPages, WebGetter: testPages},
		Stdout: &out,
	})
	if err != nil {
		t.Fatalf("runAgentWithOptions: %v", err)
	}
	if !strings.Contains(out.String(), "eco: hola") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunAgentWithOptions_SingleMessage_Error(t *testing.T) {
	setupHome(t)
	resetFlags(t)
	messageFlag = "hola"

	var out bytes.Buffer
	err := runAgentWithOptions(context.Background(), CLIOptions{
		Bot:    gateway.Options{ClientFactory: echoClient(true), Embedder: hashEmbedder{}},
		Stdout: &out,
	})
	if err == nil || !strings.Contains(err.Error(), "upstream 500") {
		t.Errorf("err = %v", err)
	}
	if strings.TrimSpace(out.String()) == "" {
		t.Error("the apology should still be printed")
	}
}

func TestRunAgentWithOptions_REPLMode(t *testing.T) {
	setupHome(t)
	resetFlags(t)

	var out, errOut bytes.Buffer
	err := runAgentWithOptions(context.Background(), CLIOptions{
		Bot:    gateway.Options{ClientFactory: echoClient(false), Embedder: hashEmbedder{}},
		Stdin:  strings.NewReader("\nprimera\nlimpiar\nsegunda\nsalir\nnunca\n"),
		Stdout: &out,
		Stderr: &errOut,
	})
	if err != nil {
		t.Fatalf("runAgentWithOptions: %v", err)
	}
	got := out.String()
	for _, want := range []string{"eco: primera", gateway.ClearedText, "eco: segunda"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "eco: nunca") {
		t.Error("input after 'salir' was processed")
	}
	if errOut.Len() != 0 {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestRunAgentWithOptions_REPLMode_Error(t *testing.T) {
	setupHome(t)
	resetFlags(t)

	var out, errOut bytes.Buffer
	err := runAgentWithOptions(context.Background(), CLIOptions{
		Bot:    gateway.Options{ClientFactory: echoClient(true), Embedder: hashEmbedder{}},
		Stdin:  strings.NewReader("hola\n"),
		Stdout: &out,
		Stderr: &errOut,
	})
	if err != nil {
		t.Fatalf("REPL should survive agent errors: %v", err)
	}
	if !strings.Contains(errOut.String(), "upstream 500") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestRunScrape(t *testing.T) {
	cfg := setupHome(t)
	resetFlags(t)

	var out bytes.Buffer
	opts := CLIOptions{Bot: gateway.Options{PriceGetter: testPages}, Stdout: &out}
	if err := runScrapeWithOptions(context.Background(), opts); err != nil {
		t.Fatalf("scrape: %v", err)
	}
	got := out.String()
	for _, want := range []string{"1. Trekking Laguna 69", "💰 Precio: S/ 45", "📊 Dificultad"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if records, ok := tours.NewCache(cfg.Prices.CachePath).Load(); !ok || len(records) != 1 {
		t.Errorf("cache = %d records, ok=%v", len(records), ok)
	}

	// --use-cache must not touch the network.
	out.Reset()
	useCacheFlag = true
	opts.Bot.PriceGetter = mapGetter{}
	if err := runScrapeWithOptions(context.Background(), opts); err != nil {
		t.Fatalf("scrape --use-cache: %v", err)
	}
	if !strings.Contains(out.String(), "Cargados 1 tours") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunScrape_Errors(t *testing.T) {
	setupHome(t)
	resetFlags(t)

	opts := CLIOptions{Bot: gateway.Options{PriceGetter: mapGetter{}}, Stdout: &bytes.Buffer{}}
	if err := runScrapeWithOptions(context.Background(), opts); err == nil {
		t.Error("scrape with every page failing should error")
	}

	useCacheFlag = true
	if err := runScrapeWithOptions(context.Background(), opts); err == nil {
		t.Error("--use-cache without a cache should error")
	}
}

func TestRunIndex(t *testing.T) {
	setupHome(t)
	resetFlags(t)

	var out bytes.Buffer
	opts := CLIOptions{Bot: gateway.Options{Embedder: hashEmbedder{}, WebGetter: testPages}, Stdout: &out, Stderr: &bytes.Buffer{}}
	if err := runIndexWithOptions(context.Background(), opts); err != nil {
		t.Fatalf("index: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Índice listo: 1 documentos") {
		t.Errorf("output = %q", got)
	}
	for _, q := range sampleQueries {
		if !strings.Contains(got, q) {
			t.Errorf("sample query %q not run", q)
		}
	}
	if !strings.Contains(got, "["+testBase+"/]") {
		t.Errorf("results should name their source:\n%s", got)
	}

	// A second run loads the saved index even when the site is down.
	out.Reset()
	opts.Bot.WebGetter = mapGetter{}
	if err := runIndexWithOptions(context.Background(), opts); err != nil {
		t.Fatalf("reload: %v", err)
	}

	forceReloadFlag = true
	if err := runIndexWithOptions(context.Background(), opts); err == nil {
		t.Error("--force-reload with the site down should fail")
	}
}

func TestRunOnboard(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HUARAZBOT_HOME", dir)

	var out bytes.Buffer
	if err := runOnboard(&out); err != nil {
		t.Fatalf("runOnboard: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Errorf("config not created: %v", err)
	}
	if info, err := os.Stat(config.DataDir()); err != nil || !info.IsDir() {
		t.Errorf("data dir not created: %v", err)
	}
	if !strings.Contains(out.String(), "Created config") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := runOnboard(&out); err != nil {
		t.Fatalf("second runOnboard: %v", err)
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunStatus(t *testing.T) {
	setupHome(t)

	var out bytes.Buffer
	if err := runStatus(&out); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	got := out.String()
	for _, want := range []string{"API Key: not set", "Tours: no cache", "Web index: not built", "Refresh prices: never run"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunStatus_AfterScrape(t *testing.T) {
	setupHome(t)
	resetFlags(t)
	t.Setenv("HUARAZBOT_API_KEY", "sk-ant-1234567890abcdef")

	if err := runScrapeWithOptions(context.Background(), CLIOptions{Bot: gateway.Options{PriceGetter: testPages}, Stdout: &bytes.Buffer{}}); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runStatus(&out); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "API Key: sk-a...cdef") {
		t.Errorf("key not masked:\n%s", got)
	}
	if !strings.Contains(got, "Tours: 1 cached") {
		t.Errorf("tour count missing:\n%s", got)
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "not set"},
		{"short", "set"},
		{"sk-ant-1234567890", "sk-a...7890"},
	}
	for _, tt := range tests {
		if got := maskKey(tt.in); got != tt.want {
			t.Errorf("maskKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	if got := preview("línea uno\nlínea dos", 9); got != "línea uno" {
		t.Errorf("preview = %q", got)
	}
	if got := preview("corto", 150); got != "corto" {
		t.Errorf("preview = %q", got)
	}
}

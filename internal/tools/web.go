package tools

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/stellarlinkco/huarazbot/internal/rag"
)

const (
	ToolSearchWeb        = "search_web_tourism_info"
	ToolReloadWebContent = "reload_web_content"

	DefaultMaxResults = 3
	maxResultsLimit   = 10
	digestSnippetLen  = 300
)

const (
	webUnavailable = "⚠️ Sistema de búsqueda web no disponible temporalmente. Usando conocimiento base."
	reloadOK       = "✅ Contenido web actualizado exitosamente"
	reloadFailed   = "⚠️ Hubo problemas al actualizar el contenido web"
)

// WebIndex is the searchable web content store. *rag.Index implements it.
type WebIndex interface {
	Ready() bool
	Search(ctx context.Context, query string, k int) ([]rag.SearchResult, error)
	Initialize(ctx context.Context, force bool) bool
}

type webSearchTool struct {
	index    WebIndex
	initOnce sync.Once
}

// NewWebSearchTool returns the web search tool. The first call on an index
// that is not ready tries to initialize it from the persisted artifact or
// a fresh fetch.
func NewWebSearchTool(index WebIndex) Tool {
	return &webSearchTool{index: index}
}

func (t *webSearchTool) Name() string { return ToolSearchWeb }

func (t *webSearchTool) Description() string {
	return "Buscar información de turismo en páginas web externas de Huaraz. Útil para información general, descripciones y detalles actualizados " +
		"(por ejemplo \"que visitar en huaraz\" o \"mejor epoca\")."
}

func (t *webSearchTool) Schema() map[string]any {
	return objectSchema(map[string]any{
		"query": map[string]any{
			"type":        "string",
			"minLength":   1,
			"description": "Consulta de búsqueda",
		},
		"max_results": map[string]any{
			"type":        "integer",
			"minimum":     1,
			"maximum":     maxResultsLimit,
			"default":     DefaultMaxResults,
			"description": "Número máximo de resultados",
		},
	}, "query")
}

func (t *webSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query := stringArg(args, "query")
	k := intArg(args, "max_results", DefaultMaxResults)
	if k <= 0 {
		k = DefaultMaxResults
	}

	if !t.index.Ready() {
		t.initOnce.Do(func() {
			if !t.index.Initialize(ctx, false) {
				log.Printf("[tools] web index could not be initialized")
			}
		})
	}
	if !t.index.Ready() {
		return webUnavailable, nil
	}

	results, err := t.index.Search(ctx, query, k)
	if err != nil {
		log.Printf("[tools] web search %q: %v", query, err)
		return webUnavailable, nil
	}
	if len(results) == 0 {
		return fmt.Sprintf("No se encontró información web específica sobre: %s", query), nil
	}
	return FormatDigest(results), nil
}

// FormatDigest renders search results with their source, each snippet cut
// to 300 characters.
func FormatDigest(results []rag.SearchResult) string {
	if len(results) == 0 {
		return "No se encontraron resultados relevantes."
	}
	var b strings.Builder
	b.WriteString("📚 **Información encontrada:**\n\n")
	for i, r := range results {
		source := r.SourceURL
		if source == "" {
			source = "Desconocido"
		}
		content := r.Text
		if runes := []rune(content); len(runes) > digestSnippetLen {
			content = string(runes[:digestSnippetLen]) + "..."
		}
		fmt.Fprintf(&b, "**%d. Fuente: %s**\n%s\n\n", i+1, source, content)
	}
	return b.String()
}

type reloadWebTool struct {
	index WebIndex
}

func NewReloadWebTool(index WebIndex) Tool {
	return &reloadWebTool{index: index}
}

func (t *reloadWebTool) Name() string { return ToolReloadWebContent }

func (t *reloadWebTool) Description() string {
	return "Recargar el contenido web de las páginas de turismo (herramienta de administración). Actualiza la base de búsqueda con información reciente."
}

func (t *reloadWebTool) Schema() map[string]any { return objectSchema(nil) }

func (t *reloadWebTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	log.Printf("[tools] reloading web content")
	if t.index.Initialize(ctx, true) {
		return reloadOK, nil
	}
	return reloadFailed, nil
}

// Default builds the registry with every tool the agent uses.
func Default(catalog PriceCatalog, index WebIndex) *Registry {
	r := NewRegistry()
	r.MustRegister(
		NewTourPriceTool(catalog),
		NewListToursTool(catalog),
		NewWebSearchTool(index),
		NewReloadWebTool(index),
	)
	return r
}

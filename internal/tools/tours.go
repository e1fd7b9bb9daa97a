package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/stellarlinkco/huarazbot/internal/tours"
)

const (
	ToolGetTourPrice   = "get_tour_price"
	ToolListAllTours   = "list_all_tours_with_prices"
	shortDescriptionAt = 50
)

const (
	tourDetailTip = "\n💡 **Tip**: Para más detalles específicos sobre este destino, pregúntame sobre características, altitud, mejor época para visitar, etc.\n"
	tourLookupErr = "Error al buscar información del tour. Por favor intenta con otro nombre o consulta la lista completa de tours."
)

// PriceCatalog is the tour collection the price tools read. *tours.Catalog
// implements it.
type PriceCatalog interface {
	Ensure(ctx context.Context) error
	Lookup(query string) (tours.Match, error)
	FormatSummary() string
}

type tourPriceTool struct {
	catalog PriceCatalog
}

func NewTourPriceTool(catalog PriceCatalog) Tool {
	return &tourPriceTool{catalog: catalog}
}

func (t *tourPriceTool) Name() string { return ToolGetTourPrice }

func (t *tourPriceTool) Description() string {
	return "Obtener información completa de un tour específico desde huarazturismo.com: precio actualizado, duración, qué incluye y enlace para más detalles. " +
		"Usa el nombre del tour o destino, por ejemplo \"laguna 69\", \"pastoruri\", \"paquete 3d\" o \"trekking santa cruz\"."
}

func (t *tourPriceTool) Schema() map[string]any {
	return objectSchema(map[string]any{
		"tour_name": map[string]any{
			"type":        "string",
			"minLength":   1,
			"description": "Nombre del tour o destino",
		},
	}, "tour_name")
}

func (t *tourPriceTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	name := stringArg(args, "tour_name")
	if err := t.catalog.Ensure(ctx); err != nil {
		log.Printf("[tools] tour catalog unavailable: %v", err)
	}

	m, err := t.catalog.Lookup(name)
	switch {
	case errors.Is(err, tours.ErrNotFound):
		return notFoundMessage(name), nil
	case err != nil:
		log.Printf("[tools] lookup %q: %v", name, err)
		return tourLookupErr, nil
	}

	out := tours.FormatTour(m.TourRecord)
	switch {
	case m.Direct && utf8.RuneCountInString(m.Description) < shortDescriptionAt:
		out += tourDetailTip
	case m.Related > 0:
		out += fmt.Sprintf("\n\n📌 También encontré %d tour(es) relacionado(s). ¿Quieres ver más opciones?\n", m.Related)
	}
	return out, nil
}

func notFoundMessage(name string) string {
	return fmt.Sprintf("No encontré información específica sobre '%s'.\n\n"+
		"✅ Tours disponibles: laguna 69, pastoruri, llanganuco, chavin, paron, churup, santa cruz, entre otros.\n\n"+
		"💡 Tip: Usa %s() para ver todos los tours.", name, ToolListAllTours)
}

type listToursTool struct {
	catalog PriceCatalog
}

func NewListToursTool(catalog PriceCatalog) Tool {
	return &listToursTool{catalog: catalog}
}

func (t *listToursTool) Name() string { return ToolListAllTours }

func (t *listToursTool) Description() string {
	return "Listar todos los tours, paquetes y trekking organizados por categoría (paquetes turísticos, tours diarios, trekking) con precios y duraciones actualizadas."
}

func (t *listToursTool) Schema() map[string]any { return objectSchema(nil) }

func (t *listToursTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if err := t.catalog.Ensure(ctx); err != nil {
		log.Printf("[tools] tour catalog unavailable: %v", err)
	}
	return t.catalog.FormatSummary(), nil
}

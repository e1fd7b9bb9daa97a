package tours

import (
	"fmt"
	"strings"
)

const BookingLine = "📞 **Reservas**: WhatsApp +51 943833972 | Email: reservas@huarazviajes.com"

var categoryIcons = map[Category]string{
	CategoryPackage:  "📦",
	CategoryTour:     "🎫",
	CategoryTrekking: "🥾",
}

var categoryHeadings = map[Category]string{
	CategoryPackage:  "**📦 PAQUETES TURÍSTICOS** (Varios días con alojamiento)",
	CategoryTour:     "**🎫 TOURS DIARIOS** (Full Day)",
	CategoryTrekking: "**🥾 TREKKING & CAMINATAS**",
}

// FormatTour renders one record for the user.
func FormatTour(rec TourRecord) string {
	icon, ok := categoryIcons[rec.Category]
	if !ok {
		icon = categoryIcons[CategoryTour]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s **%s**\n\n", icon, rec.Name)

	if rec.Price != "" {
		fmt.Fprintf(&sb, "💰 **Precio**: %s por persona\n", rec.Price)
	} else {
		sb.WriteString("💰 **Precio**: Consultar disponibilidad\n")
	}
	if rec.Duration != "" {
		fmt.Fprintf(&sb, "⏱️ **Duración**: %s\n", rec.Duration)
	}
	if rec.Difficulty != "" {
		fmt.Fprintf(&sb, "📊 **Dificultad**: %s\n", rec.Difficulty)
	}
	if rec.Description != "" {
		fmt.Fprintf(&sb, "\n📝 **Sobre el tour**: %s\n", rec.Description)
	}

	if len(rec.Includes) > 0 {
		sb.WriteString("\n✅ **Incluye**:\n")
		for i, item := range rec.Includes {
			if i >= MaxIncludes {
				break
			}
			// very short items are usually icons or stray punctuation
			if len([]rune(strings.TrimSpace(item))) > 3 {
				fmt.Fprintf(&sb, "   • %s\n", item)
			}
		}
	}

	if rec.URL != "" {
		fmt.Fprintf(&sb, "\n🔗 **Más información**: %s\n", rec.URL)
	}
	sb.WriteString("\n" + BookingLine + "\n")
	return sb.String()
}

// FormatSummary renders every record grouped by category, packages first,
// then day tours, then treks.
func FormatSummary(records []TourRecord) string {
	if len(records) == 0 {
		return "No hay tours disponibles."
	}

	groups := make(map[Category][]TourRecord, len(Categories))
	for _, rec := range records {
		cat := rec.Category
		if _, ok := categoryHeadings[cat]; !ok {
			cat = CategoryTour
		}
		groups[cat] = append(groups[cat], rec)
	}

	var sb strings.Builder
	sb.WriteString("🎯 **TOURS Y PAQUETES DISPONIBLES EN HUARAZ**\n\n")
	for _, cat := range Categories {
		group := groups[cat]
		if len(group) == 0 {
			continue
		}
		sb.WriteString(categoryHeadings[cat] + "\n\n")
		for _, rec := range group {
			price := rec.Price
			if price == "" {
				price = "Consultar"
			}
			duration := ""
			if rec.Duration != "" {
				duration = " - " + rec.Duration
			}
			fmt.Fprintf(&sb, "   • **%s**: %s%s\n", rec.Name, price, duration)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("💡 **Tip**: Pregúntame por cualquier tour específico para ver detalles completos, qué incluye, y obtener el enlace directo.\n")
	return sb.String()
}

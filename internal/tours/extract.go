package tours

import (
	"fmt"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"

	"github.com/stellarlinkco/huarazbot/internal/htmltext"
)

var (
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Precio:\s*S/\.?\s*(\d+)`),
		regexp.MustCompile(`(?i)S/\.?\s*(\d+)`),
		regexp.MustCompile(`(?i)Precio:\s*(\d+)`),
	}
	priceClassPattern   = regexp.MustCompile(`precio|price|subtit`)
	priceElementPattern = regexp.MustCompile(`S/\.?\s*(\d+)`)

	durationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Duración:\s*([^\n]+)`),
		regexp.MustCompile(`(?i)(\d+D/\d+N)`),
		regexp.MustCompile(`(?i)(Full\s+Day)`),
	}
	difficultyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Dificultad:\s*([^\n]+)`),
		regexp.MustCompile(`(?i)Nivel:\s*([^\n]+)`),
	}
	includesHeading = regexp.MustCompile(`(?i)Incluye|Incluyen|Nuestros Precios Incluyen`)
	yearPattern     = regexp.MustCompile(`\d{4}`)
)

// Extract turns one tour page into a record. path is the page path under
// the site root and pageURL its absolute address.
func Extract(path, pageURL string, body []byte) (rec TourRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ParseError{URL: pageURL, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	doc, err := htmltext.Parse(body)
	if err != nil {
		return TourRecord{}, &ParseError{URL: pageURL, Err: err}
	}
	text := htmltext.Text(doc)
	if strings.TrimSpace(text) == "" {
		return TourRecord{}, &ParseError{URL: pageURL, Err: fmt.Errorf("page has no text")}
	}
	return TourRecord{
		Name:        extractName(doc, path),
		Price:       extractPrice(doc, text),
		Duration:    extractDuration(text),
		Difficulty:  extractDifficulty(text),
		Includes:    extractIncludes(doc),
		Description: extractDescription(doc),
		URL:         pageURL,
		Category:    CategoryFromPath(path),
	}, nil
}

func extractName(doc *xhtml.Node, path string) string {
	title := htmltext.First(doc, "title")
	if title == nil {
		return path
	}
	name := htmltext.Text(title)
	if idx := strings.Index(name, "|"); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSpace(yearPattern.ReplaceAllString(strings.TrimSpace(name), ""))
	if name == "" {
		return path
	}
	return name
}

func extractPrice(doc *xhtml.Node, text string) string {
	for _, re := range pricePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return "S/ " + m[1]
		}
	}
	for _, el := range htmltext.FindAll(doc, "div", "span") {
		if !priceClassPattern.MatchString(htmltext.Attr(el, "class")) {
			continue
		}
		if m := priceElementPattern.FindStringSubmatch(htmltext.Text(el)); m != nil {
			return "S/ " + m[1]
		}
	}
	return ""
}

func extractDuration(text string) string {
	for _, re := range durationPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return truncateRunes(strings.TrimSpace(m[1]), MaxDurationLength)
		}
	}
	return ""
}

func extractDifficulty(text string) string {
	for _, re := range difficultyPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return truncateRunes(htmltext.CollapseSpaces(m[1]), MaxDifficultyLength)
		}
	}
	return ""
}

// extractIncludes reads the first list that follows an "Incluye" heading.
func extractIncludes(doc *xhtml.Node) []string {
	elements := htmltext.Elements(doc)
	for i, el := range elements {
		switch el.Data {
		case "h3", "span", "div", "strong":
		default:
			continue
		}
		s, ok := htmltext.OwnString(el)
		if !ok || !includesHeading.MatchString(s) {
			continue
		}
		for _, next := range elements[i+1:] {
			if next.Data != "ul" {
				continue
			}
			items := htmltext.FindAll(next, "li")
			if len(items) > MaxIncludes {
				items = items[:MaxIncludes]
			}
			includes := make([]string, 0, len(items))
			for _, li := range items {
				includes = append(includes, strings.TrimSpace(htmltext.Text(li)))
			}
			return includes
		}
	}
	return []string{}
}

func extractDescription(doc *xhtml.Node) string {
	paragraphs := htmltext.FindAll(doc, "p")
	if len(paragraphs) > 3 {
		paragraphs = paragraphs[:3]
	}
	parts := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		parts = append(parts, strings.TrimSpace(htmltext.Text(p)))
	}
	return truncateRunes(strings.Join(parts, " "), MaxDescriptionLength)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

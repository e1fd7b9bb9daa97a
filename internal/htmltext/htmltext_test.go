package htmltext

import (
	"strings"
	"testing"
)

const samplePage = `<html><head><title>Laguna 69 | Huaraz</title>
<style>.x{color:red}</style><script>var price = "S/ 1";</script></head>
<body>
<div class="menu"><a href="/">Inicio</a></div>
<h1>Trekking Laguna 69</h1>
<p>Una caminata   espectacular.</p>
<p>Segundo <b>párrafo</b>.</p>
<ul><li>Transporte</li><li>Guía</li></ul>
<span class="precio"><strong>Incluye</strong></span>
</body></html>`

func TestText_SkipsScriptAndStyle(t *testing.T) {
	doc, err := Parse([]byte(samplePage))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	text := Text(doc)
	if strings.Contains(text, "var price") || strings.Contains(text, "color:red") {
		t.Errorf("script/style leaked into text: %q", text)
	}
	if !strings.Contains(text, "Una caminata   espectacular.") {
		t.Errorf("source whitespace should be kept: %q", text)
	}
}

func TestFindAllAndAttr(t *testing.T) {
	doc, _ := Parse([]byte(samplePage))

	ps := FindAll(doc, "p")
	if len(ps) != 2 {
		t.Fatalf("len(p) = %d, want 2", len(ps))
	}
	if got := strings.TrimSpace(Text(ps[1])); got != "Segundo párrafo." {
		t.Errorf("second p = %q", got)
	}

	spans := FindAll(doc, "span", "div")
	if len(spans) != 2 {
		t.Fatalf("len(span,div) = %d, want 2", len(spans))
	}
	// document order: the div comes before the span
	if Attr(spans[0], "CLASS") != "menu" {
		t.Errorf("first class = %q, want menu", Attr(spans[0], "class"))
	}

	if title := First(doc, "title"); title == nil || Text(title) != "Laguna 69 | Huaraz" {
		t.Errorf("title = %v", title)
	}
	if First(doc, "table") != nil {
		t.Error("First should return nil for missing tag")
	}
}

func TestOwnString(t *testing.T) {
	doc, _ := Parse([]byte(samplePage))
	span := FindAll(doc, "span")[0]
	if s, ok := OwnString(span); !ok || s != "Incluye" {
		t.Errorf("OwnString(span) = %q, %v", s, ok)
	}
	p := FindAll(doc, "p")[1]
	if _, ok := OwnString(p); ok {
		t.Error("OwnString should fail for mixed content")
	}
}

func TestReadable(t *testing.T) {
	doc, _ := Parse([]byte(samplePage))
	got := Readable(doc)

	if strings.Contains(got, "var price") {
		t.Errorf("script text in readable output: %q", got)
	}
	if !strings.Contains(got, "Trekking Laguna 69\n\nUna caminata espectacular.") {
		t.Errorf("heading and paragraph should be separated by a blank line:\n%s", got)
	}
	if !strings.Contains(got, "Segundo párrafo.") {
		t.Errorf("inline elements should keep source spacing:\n%s", got)
	}
	if !strings.Contains(got, "Transporte\nGuía") {
		t.Errorf("list items should be on their own lines:\n%s", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("blank lines should be collapsed:\n%q", got)
	}
}

// Package htmltext pulls plain text and elements out of parsed HTML pages.
package htmltext

import (
	"bytes"
	"strings"

	xhtml "golang.org/x/net/html"
)

// Parse parses an HTML document.
func Parse(body []byte) (*xhtml.Node, error) {
	return xhtml.Parse(bytes.NewReader(body))
}

// Text concatenates every text node under n in document order, keeping the
// source whitespace. Script and style contents are skipped.
func Text(n *xhtml.Node) string {
	var sb strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		switch n.Type {
		case xhtml.TextNode:
			sb.WriteString(n.Data)
			return
		case xhtml.ElementNode:
			if shouldSkipNode(n.Data) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// Elements returns the element nodes under n in document order (preorder),
// n itself included when it is an element.
func Elements(n *xhtml.Node) []*xhtml.Node {
	var out []*xhtml.Node
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// FindAll returns the elements under n whose tag is one of tags, in document order.
func FindAll(n *xhtml.Node, tags ...string) []*xhtml.Node {
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[strings.ToLower(t)] = struct{}{}
	}
	var out []*xhtml.Node
	for _, el := range Elements(n) {
		if _, ok := want[el.Data]; ok {
			out = append(out, el)
		}
	}
	return out
}

// First returns the first element named tag under n, or nil.
func First(n *xhtml.Node, tag string) *xhtml.Node {
	found := FindAll(n, tag)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// Attr returns the trimmed value of attribute key, or "".
func Attr(n *xhtml.Node, key string) string {
	lower := strings.ToLower(key)
	for _, attr := range n.Attr {
		if strings.ToLower(attr.Key) == lower {
			return strings.TrimSpace(attr.Val)
		}
	}
	return ""
}

// OwnString returns the text of n when n holds exactly one text node,
// possibly through a chain of single-child elements. ok is false otherwise.
func OwnString(n *xhtml.Node) (string, bool) {
	for {
		if n.FirstChild == nil || n.FirstChild != n.LastChild {
			return "", false
		}
		child := n.FirstChild
		switch child.Type {
		case xhtml.TextNode:
			return child.Data, true
		case xhtml.ElementNode:
			n = child
		default:
			return "", false
		}
	}
}

// Readable renders the visible text of a page with block elements on
// their own lines and paragraphs separated by a blank line.
func Readable(n *xhtml.Node) string {
	b := &readableBuilder{}
	b.walk(n)
	return normalizeLines(b.String())
}

type readableBuilder struct {
	strings.Builder
	pendingSpace bool
}

func (b *readableBuilder) walk(n *xhtml.Node) {
	switch n.Type {
	case xhtml.TextNode:
		b.writeText(n.Data)
	case xhtml.ElementNode:
		if shouldSkipNode(n.Data) {
			return
		}
		b.handleStart(n.Data)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c)
		}
		b.handleEnd(n.Data)
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c)
		}
	}
}

func (b *readableBuilder) handleStart(name string) {
	switch name {
	case "h1", "h2", "h3", "h4", "h5", "h6", "p", "section", "article", "ul", "ol", "table":
		b.ensureBlankLine()
	case "div", "li", "tr", "header", "footer", "nav":
		b.ensureNewline()
	case "br":
		b.WriteString("\n")
	}
}

func (b *readableBuilder) handleEnd(name string) {
	switch name {
	case "h1", "h2", "h3", "h4", "h5", "h6", "p", "section", "article", "ul", "ol", "table":
		b.ensureBlankLine()
	case "div", "li", "tr", "td", "th", "header", "footer", "nav":
		b.ensureNewline()
	}
}

func (b *readableBuilder) writeText(text string) {
	cleaned := collapseSpaces(text)
	if cleaned == "" {
		if text != "" {
			b.pendingSpace = true
		}
		return
	}
	leading := text[0] == ' ' || text[0] == '\n' || text[0] == '\t' || text[0] == '\r'
	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") && (leading || b.pendingSpace) {
		b.WriteString(" ")
	}
	b.WriteString(cleaned)
	last := text[len(text)-1]
	b.pendingSpace = last == ' ' || last == '\n' || last == '\t' || last == '\r'
}

func (b *readableBuilder) ensureNewline() {
	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
}

func (b *readableBuilder) ensureBlankLine() {
	if b.Len() == 0 {
		return
	}
	if !strings.HasSuffix(b.String(), "\n\n") {
		if strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		} else {
			b.WriteString("\n\n")
		}
	}
}

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func shouldSkipNode(name string) bool {
	lower := strings.ToLower(name)
	return lower == "script" || lower == "style" || lower == "noscript"
}

// CollapseSpaces joins the whitespace-separated fields of s with single spaces.
func CollapseSpaces(s string) string { return collapseSpaces(s) }

func collapseSpaces(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

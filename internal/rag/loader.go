package rag

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sourcegraph/conc/iter"

	"github.com/stellarlinkco/huarazbot/internal/fetch"
	"github.com/stellarlinkco/huarazbot/internal/htmltext"
)

// DocumentTypeWeb tags documents fetched from tourism sites.
const DocumentTypeWeb = "web"

// Document is one source text fed to the index.
type Document struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// Loader produces the documents an index is built from.
type Loader interface {
	Load(ctx context.Context) []Document
}

// WebContentLoader fetches a fixed list of pages and returns their readable text.
type WebContentLoader struct {
	urls        []string
	getter      fetch.Getter
	concurrency int
}

func NewWebContentLoader(urls []string, getter fetch.Getter, concurrency int) *WebContentLoader {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &WebContentLoader{
		urls:        append([]string(nil), urls...),
		getter:      getter,
		concurrency: concurrency,
	}
}

// LoadURL fetches one page and extracts its text.
func (l *WebContentLoader) LoadURL(ctx context.Context, url string) fetch.Result[Document] {
	body, err := l.getter.Get(ctx, url)
	if err != nil {
		return fetch.Classify[Document](err, fetch.KindFetchFailed)
	}
	root, err := htmltext.Parse(body)
	if err != nil {
		return fetch.Fail[Document](fetch.KindParseFailed, fmt.Errorf("parse %s: %w", url, err))
	}
	text := strings.TrimSpace(htmltext.Readable(root))
	if text == "" {
		return fetch.Fail[Document](fetch.KindNotFound, fmt.Errorf("no text content at %s", url))
	}
	return fetch.Ok(Document{URL: url, Type: DocumentTypeWeb, Text: text})
}

// Load fetches every URL with bounded parallelism. Documents keep the
// configured URL order; failed URLs are logged and skipped.
func (l *WebContentLoader) Load(ctx context.Context) []Document {
	mapper := iter.Mapper[string, fetch.Result[Document]]{MaxGoroutines: l.concurrency}
	results := mapper.Map(l.urls, func(url *string) fetch.Result[Document] {
		return l.LoadURL(ctx, *url)
	})

	docs := make([]Document, 0, len(results))
	for i, res := range results {
		doc, err := res.Unwrap()
		if !res.IsOk() {
			log.Printf("[rag] skip %s (%s): %v", l.urls[i], res.Kind(), err)
			continue
		}
		log.Printf("[rag] loaded %s (%d chars)", doc.URL, runeLen(doc.Text))
		docs = append(docs, doc)
	}
	log.Printf("[rag] loaded %d/%d web documents", len(docs), len(l.urls))
	return docs
}

package rag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrEmptyInput is returned by Build when no documents were supplied.
	ErrEmptyInput = errors.New("no documents to index")
	// ErrNotInitialized is returned by Search before a build or reload succeeded.
	ErrNotInitialized = errors.New("index not initialized")
)

// DefaultTopK is used when Search is called with k <= 0.
const DefaultTopK = 3

// Chunk is a bounded slice of a source document.
type Chunk struct {
	Text      string
	SourceURL string
	Index     int
}

type SearchResult struct {
	Chunk
	Score float64
}

type entry struct {
	chunk  Chunk
	vector []float32
	unit   []float64
}

type snapshot struct {
	documents []Document
	entries   []entry
	dim       int
}

type Stats struct {
	Ready     bool
	Documents int
	Chunks    int
	Dimension int
}

// Index is an in-memory vector index over web documents, persisted as a
// SQLite file. Searches read the current snapshot; builds and reloads are
// serialized and swap the snapshot in one step.
type Index struct {
	path     string
	embedder Embedder
	splitter *Splitter
	loader   Loader

	mu    sync.RWMutex
	snap  *snapshot
	ready bool

	writeMu sync.Mutex
}

func NewIndex(path string, embedder Embedder, splitter *Splitter, loader Loader) *Index {
	if splitter == nil {
		splitter = NewSplitter(1000, 200)
	}
	return &Index{path: path, embedder: embedder, splitter: splitter, loader: loader}
}

func (x *Index) Path() string { return x.path }

// Ready reports whether Search can be served.
func (x *Index) Ready() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ready
}

func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.snap == nil {
		return Stats{}
	}
	return Stats{
		Ready:     x.ready,
		Documents: len(x.snap.documents),
		Chunks:    len(x.snap.entries),
		Dimension: x.snap.dim,
	}
}

// Documents returns a copy of the source documents behind the index.
func (x *Index) Documents() []Document {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.snap == nil {
		return nil
	}
	return append([]Document(nil), x.snap.documents...)
}

// Build chunks and embeds docs and replaces the current index.
func (x *Index) Build(ctx context.Context, docs []Document) error {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	snap, err := x.build(ctx, docs)
	if err != nil {
		return err
	}
	x.swap(snap)
	return nil
}

func (x *Index) build(ctx context.Context, docs []Document) (*snapshot, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyInput
	}
	if x.embedder == nil {
		return nil, fmt.Errorf("build index: no embedder configured")
	}

	var chunks []Chunk
	for _, doc := range docs {
		for i, text := range x.splitter.Split(doc.Text) {
			chunks = append(chunks, Chunk{Text: text, SourceURL: doc.URL, Index: i})
		}
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("build index: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	snap := &snapshot{documents: append([]Document(nil), docs...)}
	for i, c := range chunks {
		e, err := newEntry(c, vectors[i])
		if err != nil {
			return nil, fmt.Errorf("build index: chunk %d of %s: %w", c.Index, c.SourceURL, err)
		}
		if err := snap.add(e); err != nil {
			return nil, fmt.Errorf("build index: %w", err)
		}
	}
	log.Printf("[rag] built index: %d documents, %d chunks", len(docs), len(snap.entries))
	return snap, nil
}

func newEntry(c Chunk, vector []float32) (entry, error) {
	unit, err := normalize(vector)
	if err != nil {
		return entry{}, err
	}
	return entry{chunk: c, vector: append([]float32(nil), vector...), unit: unit}, nil
}

func (s *snapshot) add(e entry) error {
	if s.dim == 0 {
		s.dim = len(e.vector)
	} else if len(e.vector) != s.dim {
		return fmt.Errorf("dimension mismatch: got %d want %d", len(e.vector), s.dim)
	}
	s.entries = append(s.entries, e)
	return nil
}

func (x *Index) swap(snap *snapshot) {
	x.mu.Lock()
	x.snap = snap
	x.ready = true
	x.mu.Unlock()
}

// Search returns the k chunks most similar to query by cosine similarity,
// best first. Ties keep build order.
func (x *Index) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	x.mu.RLock()
	snap, ready := x.snap, x.ready
	x.mu.RUnlock()
	if !ready || snap == nil {
		return nil, ErrNotInitialized
	}
	if k <= 0 {
		k = DefaultTopK
	}

	qv, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(qv) != snap.dim {
		return nil, fmt.Errorf("search index: query dimension %d, index dimension %d", len(qv), snap.dim)
	}
	qu, err := normalize(qv)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	results := make([]SearchResult, len(snap.entries))
	for i, e := range snap.entries {
		results[i] = SearchResult{Chunk: e.chunk, Score: similarity(qu, e.unit)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Persist writes the current index to its path, replacing any previous file.
func (x *Index) Persist() error {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	x.mu.RLock()
	snap := x.snap
	x.mu.RUnlock()
	if snap == nil {
		return ErrNotInitialized
	}
	return x.persist(snap)
}

func (x *Index) persist(snap *snapshot) error {
	dir := filepath.Dir(x.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(x.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := writeSnapshot(tmpPath, snap); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persist index: %w", err)
	}
	if err := os.Rename(tmpPath, x.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persist index: %w", err)
	}
	log.Printf("[rag] persisted %d chunks to %s", len(snap.entries), x.path)
	return nil
}

var indexSchema = []string{
	`CREATE TABLE documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'web',
		content TEXT NOT NULL
	)`,
	`CREATE TABLE chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_url TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		vector BLOB NOT NULL
	)`,
	`CREATE INDEX idx_chunks_source ON chunks(source_url, chunk_index)`,
	`CREATE TABLE meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

func openIndexDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// rollback journal: the file is renamed into place after writing
	pragmas := []string{
		"PRAGMA journal_mode=DELETE",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return db, nil
}

func writeSnapshot(path string, snap *snapshot) error {
	db, err := openIndexDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, stmt := range indexSchema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range snap.documents {
		if _, err := tx.Exec(`INSERT INTO documents (url, type, content) VALUES (?, ?, ?)`, doc.URL, doc.Type, doc.Text); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	for _, e := range snap.entries {
		blob, err := EncodeVector(e.vector)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO chunks (source_url, chunk_index, content, vector) VALUES (?, ?, ?, ?)`,
			e.chunk.SourceURL, e.chunk.Index, e.chunk.Text, blob); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	meta := map[string]string{
		"dimension":  strconv.Itoa(snap.dim),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert meta: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Reload replaces the in-memory index with the persisted one. A missing or
// unreadable file returns false and leaves the current index as it was.
func (x *Index) Reload() bool {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()
	return x.reload()
}

func (x *Index) reload() bool {
	if _, err := os.Stat(x.path); err != nil {
		if os.IsNotExist(err) {
			log.Printf("[rag] no persisted index at %s", x.path)
		} else {
			log.Printf("[rag] stat index %s: %v", x.path, err)
		}
		return false
	}
	snap, err := readSnapshot(x.path)
	if err != nil {
		log.Printf("[rag] reload index %s: %v", x.path, err)
		return false
	}
	if len(snap.entries) == 0 {
		log.Printf("[rag] persisted index %s is empty", x.path)
		return false
	}
	x.swap(snap)
	log.Printf("[rag] reloaded index: %d documents, %d chunks", len(snap.documents), len(snap.entries))
	return true
}

func readSnapshot(path string) (*snapshot, error) {
	db, err := openIndexDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	snap := &snapshot{}

	docRows, err := db.Query(`SELECT url, type, content FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer docRows.Close()
	for docRows.Next() {
		var doc Document
		if err := docRows.Scan(&doc.URL, &doc.Type, &doc.Text); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		snap.documents = append(snap.documents, doc)
	}
	if err := docRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	rows, err := db.Query(`SELECT source_url, chunk_index, content, vector FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.SourceURL, &c.Index, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		vector, err := DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		e, err := newEntry(c, vector)
		if err != nil {
			return nil, fmt.Errorf("chunk %d of %s: %w", c.Index, c.SourceURL, err)
		}
		if err := snap.add(e); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return snap, nil
}

// Initialize makes the index ready. Unless force is set it first tries the
// persisted file; otherwise it loads fresh documents, builds and persists.
// It returns false when no documents could be loaded or the build failed,
// in which case any previously loaded index is kept.
func (x *Index) Initialize(ctx context.Context, force bool) bool {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	if !force && x.reload() {
		return true
	}
	if x.loader == nil {
		log.Printf("[rag] no loader configured")
		return false
	}

	docs := x.loader.Load(ctx)
	if len(docs) == 0 {
		log.Printf("[rag] no web documents loaded, keeping current index")
		return false
	}
	snap, err := x.build(ctx, docs)
	if err != nil {
		log.Printf("[rag] %v", err)
		return false
	}
	x.swap(snap)
	if err := x.persist(snap); err != nil {
		log.Printf("[rag] %v", err)
	}
	return true
}

package tours

import "context"

// Catalog binds a Cache to the Source that fills it, so callers can ask for
// tours without knowing whether a scrape is needed.
type Catalog struct {
	*Cache
	src Source
}

func NewCatalog(cache *Cache, src Source) *Catalog {
	return &Catalog{Cache: cache, src: src}
}

// Ensure loads or scrapes the collection when it is empty.
func (c *Catalog) Ensure(ctx context.Context) error {
	return c.Cache.Ensure(ctx, c.src)
}

// Refresh re-scrapes and replaces the collection.
func (c *Catalog) Refresh(ctx context.Context) ([]TourRecord, error) {
	return c.Cache.Refresh(ctx, c.src)
}

// Match is a Lookup hit. Direct is set when the query matched a tour name;
// Related counts the other search matches otherwise.
type Match struct {
	TourRecord
	Direct  bool
	Related int
}

// Lookup resolves query by name first and falls back to a name/description
// search. A miss is ErrNotFound.
func (c *Catalog) Lookup(query string) (Match, error) {
	if rec, ok := c.GetByName(query); ok {
		return Match{TourRecord: rec, Direct: true}, nil
	}
	matches := c.Search(query)
	if len(matches) == 0 {
		return Match{}, ErrNotFound
	}
	return Match{TourRecord: matches[0], Related: len(matches) - 1}, nil
}

// Package catalog builds the complete path→checksum map for one repository
// on one server by driving the paginated catalog query.
package catalog

import (
	"sort"

	"github.com/artifact-sre/rtsync/pkg/artifactory"
)

// Entry is one cataloged object. Uniquely keyed by (repository, path)
// within one server's catalog.
type Entry struct {
	Repo   string
	Path   string
	SHA256 string
	Size   int64
}

// Catalog maps relative path to Entry for one (server, repository) pair.
// Append-only while a fetch is building it; treated as immutable afterwards.
type Catalog struct {
	repo    string
	entries map[string]Entry
}

// New returns an empty catalog for repo.
func New(repo string) *Catalog {
	return &Catalog{
		repo:    repo,
		entries: make(map[string]Entry),
	}
}

// Repo returns the repository this catalog was built for.
func (c *Catalog) Repo() string {
	return c.repo
}

// Len returns the number of cataloged entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Get returns the entry for path.
func (c *Catalog) Get(path string) (Entry, bool) {
	e, ok := c.entries[path]
	return e, ok
}

// Paths returns all cataloged paths in lexical order.
func (c *Catalog) Paths() []string {
	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Add records an entry. Only the fetch that owns the catalog may call this;
// once the fetch returns the catalog is read-only.
func (c *Catalog) Add(e Entry) {
	e.Repo = c.repo
	c.entries[e.Path] = e
}

func (c *Catalog) add(item artifactory.Item) {
	c.Add(Entry{
		Path:   item.FullPath(),
		SHA256: item.SHA256,
		Size:   item.Size,
	})
}

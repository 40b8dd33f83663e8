// Package catalog keeps a SQLite catalog of the content tree: one row per
// document with its frontmatter, derived title and outgoing links.
package catalog

// Catalog defines the catalog operations used by the CLI and the pipeline.
// Consumers should depend on this interface rather than the concrete *DB.
type Catalog interface {
	Upsert(r Row, body string, links []string) error
	Delete(path string) error
	Get(path string) (*Row, error)
	List(f ListFilter) ([]Row, error)
	Checksums() (map[string]string, error)
	Backlinks(target string) ([]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

var _ Catalog = (*DB)(nil)

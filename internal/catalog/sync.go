package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/gardensite/internal/checksum"
	"github.com/starford/gardensite/internal/markdown"
	"github.com/starford/gardensite/internal/models"
	"github.com/starford/gardensite/internal/parser"
	"github.com/starford/gardensite/internal/policy"
	"github.com/starford/gardensite/internal/storage"
)

// SyncStats summarizes a Sync pass.
type SyncStats struct {
	Indexed   int
	Unchanged int
	Removed   int
	Failed    int
}

// Sync walks the content tree and brings the catalog up to date:
//   - new/changed documents are parsed and upserted
//   - documents removed from disk are deleted from the catalog
func Sync(ctx context.Context, db Catalog, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats
	logger = logger.With(slog.String("component", "catalog"))

	metas, err := store.List("")
	if err != nil {
		return stats, err
	}
	checksums, err := db.Checksums()
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		disk[m.Path] = struct{}{}

		if cs, ok := checksums[m.Path]; ok && cs == m.Checksum {
			stats.Unchanged++
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			stats.Failed++
			continue
		}
		if err := indexDocument(db, m, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			stats.Failed++
			continue
		}
		stats.Indexed++
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.Delete(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			stats.Failed++
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	logger.Info("sync: done",
		slog.Int("indexed", stats.Indexed),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("removed", stats.Removed))
	return stats, nil
}

// indexDocument parses data and upserts it.
func indexDocument(db Catalog, m models.DocumentMeta, data []byte) error {
	fields, body := parser.Parse(string(data))
	row := Row{
		Path:       m.Path,
		Kind:       m.Kind,
		Title:      parser.Title(fields, body),
		Type:       policy.Type(fields),
		Visibility: policy.Visibility(fields),
		Status:     policy.Status(fields),
		Fields:     fields,
		Checksum:   checksum.Sum(data),
		UpdatedAt:  time.Now().UTC(),
	}
	return db.Upsert(row, body, markdown.Links([]byte(body)))
}

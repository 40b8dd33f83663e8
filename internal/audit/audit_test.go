package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/gardensite/internal/testutil"
)

const (
	public  = "---\nvisibility: public\nstatus: tree\n---\n"
	private = "---\nvisibility: private\nstatus: tree\n---\n"
	bare    = "---\ntitle: Section\n---\n"
	page    = "<html></html>"
)

func leakFixture(t *testing.T) (string, string) {
	t.Helper()
	src, out := t.TempDir(), t.TempDir()
	testutil.WriteFiles(t, src, map[string]string{
		"_index.md":       public,
		"notes/_index.md": public,
		"notes/open.md":   public,
		"notes/secret.md": private,
	})
	testutil.WriteFiles(t, out, map[string]string{
		"index.html":              page,
		"notes/index.html":        page,
		"notes/open/index.html":   page,
		"notes/secret/index.html": page,
		"notes/secret/photo.jpg":  "not an index page",
	})
	return src, out
}

func TestRun_DirectLeak(t *testing.T) {
	src, out := leakFixture(t)

	rep, err := Run(Options{Source: src, Output: out})
	require.NoError(t, err)

	assert.False(t, rep.Passed)
	assert.False(t, rep.Fixed)
	assert.Equal(t, []Finding{{Path: "notes/secret/index.html", Kind: KindLeak, Source: "notes/secret.md"}}, rep.Findings)
	assert.Equal(t, 4, rep.Pages)
	assert.FileExists(t, filepath.Join(out, "notes", "secret", "index.html"), "audit without fix is read-only")
}

func TestRun_FixRemovesLeakAndEmptyParents(t *testing.T) {
	src, out := leakFixture(t)
	require.NoError(t, os.Remove(filepath.Join(out, "notes", "secret", "photo.jpg")))

	rep, err := Run(Options{Source: src, Output: out, Fix: true})
	require.NoError(t, err)

	assert.True(t, rep.Passed)
	assert.True(t, rep.Fixed)
	assert.Equal(t, []string{"notes/secret/index.html"}, rep.Removed)
	assert.NoDirExists(t, filepath.Join(out, "notes", "secret"))
	assert.FileExists(t, filepath.Join(out, "notes", "open", "index.html"))

	again, err := Run(Options{Source: src, Output: out})
	require.NoError(t, err)
	assert.True(t, again.Passed)
	assert.Empty(t, again.Findings)
}

func TestRun_FixKeepsNonEmptyParent(t *testing.T) {
	src, out := leakFixture(t)

	rep, err := Run(Options{Source: src, Output: out, Fix: true})
	require.NoError(t, err)

	assert.True(t, rep.Passed)
	assert.NoFileExists(t, filepath.Join(out, "notes", "secret", "index.html"))
	assert.FileExists(t, filepath.Join(out, "notes", "secret", "photo.jpg"))
}

func TestRun_Orphans(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	testutil.WriteFiles(t, src, map[string]string{
		"notes/_index.md": public,
		"notes/open.md":   public,
	})
	testutil.WriteFiles(t, out, map[string]string{
		"index.html":                page,
		"notes/index.html":          page,
		"notes/open/index.html":     page,
		"notes/removed/index.html":  page,
		"old/gone/deep/index.html":  page,
		"tags/garden/index.html":    page,
		"categories/a/b/index.html": page,
		"about/index.html":          page,
		"404.html":                  page,
	})

	rep, err := Run(Options{Source: src, Output: out})
	require.NoError(t, err)

	assert.False(t, rep.Passed)
	assert.Equal(t, []Finding{
		{Path: "notes/removed/index.html", Kind: KindOrphan},
		{Path: "old/gone/deep/index.html", Kind: KindOrphan},
	}, rep.Findings)
	assert.Equal(t, map[Kind]int{KindLeak: 0, KindOrphan: 2}, rep.Counts())
}

func TestRun_CustomTaxonomyDirs(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	testutil.WriteFiles(t, src, map[string]string{"notes/open.md": public})
	testutil.WriteFiles(t, out, map[string]string{
		"series/a/b/index.html": page,
		"tags/a/b/index.html":   page,
	})

	rep, err := Run(Options{Source: src, Output: out, TaxonomyDirs: []string{"series"}})
	require.NoError(t, err)

	require.Len(t, rep.Findings, 1)
	assert.Equal(t, "tags/a/b/index.html", rep.Findings[0].Path)
}

func TestRun_StructuralSectionsAreAllowed(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	testutil.WriteFiles(t, src, map[string]string{
		"trips/_index.md":             bare,
		"trips/2024/lisbon.md":        public,
		"politik/timeline/_index.md":  private,
		"politik/timeline/vote.md":    "---\ntype: timeline-entry\nvisibility: public\nstatus: tree\n---\n",
		"garden/deep/leaf/index.md":   public,
		"garden/deep/leaf/photo.jpeg": "jpeg",
	})
	testutil.WriteFiles(t, out, map[string]string{
		"trips/index.html":                 page,
		"trips/2024/index.html":            page,
		"trips/2024/lisbon/index.html":     page,
		"politik/index.html":               page,
		"politik/timeline/vote/index.html": page,
		"politik/timeline/index.html":      page,
		"garden/index.html":                page,
		"garden/deep/index.html":           page,
		"garden/deep/leaf/index.html":      page,
	})

	rep, err := Run(Options{Source: src, Output: out})
	require.NoError(t, err)

	assert.Equal(t, []Finding{
		{Path: "politik/timeline/index.html", Kind: KindLeak, Source: "politik/timeline/_index.md"},
	}, rep.Findings)
}

func TestRun_MissingOutputPasses(t *testing.T) {
	src := t.TempDir()
	testutil.WriteFiles(t, src, map[string]string{"a.md": private})

	rep, err := Run(Options{Source: src, Output: filepath.Join(t.TempDir(), "public")})
	require.NoError(t, err)
	assert.True(t, rep.Passed)
	assert.Empty(t, rep.Findings)
}

func TestRun_MissingSourceFails(t *testing.T) {
	_, err := Run(Options{Source: filepath.Join(t.TempDir(), "nope"), Output: t.TempDir()})
	assert.Error(t, err)
}

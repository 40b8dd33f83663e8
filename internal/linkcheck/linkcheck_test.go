package linkcheck

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/gardensite/internal/testutil"
)

func TestExtract(t *testing.T) {
	page := `<html><head><link rel="stylesheet" href="/css/site.css"></head>
<body>
<a href="/notes/">notes</a>
<a href="https://example.org/">ext</a>
<a href="//cdn.example.org/x.js">cdn</a>
<a href="relative/page/">rel</a>
<a href="/about/#team">about</a>
</body></html>`

	got, err := Extract(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, []string{"/css/site.css", "/notes/", "/about/#team"}, got)
}

func TestResolves(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"index.html":         "",
		"notes/index.html":   "",
		"css/site.css":       "",
		"feed.xml":           "",
		"my page/index.html": "",
		"empty/.keep":        "",
	})

	tests := []struct {
		href string
		want bool
	}{
		{"/", true},
		{"/#top", true},
		{"/notes/", true},
		{"/notes", true},
		{"/notes/?page=2", true},
		{"/css/site.css", true},
		{"/feed.xml/", true},
		{"/my%20page/", true},
		{"/missing/", false},
		{"/empty/", false},
		{"/css/other.css", false},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolves(root, tt.href))
		})
	}
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"index.html":       `<a href="/notes/">n</a><a href="/missing/">m</a>`,
		"notes/index.html": `<a href="/">home</a><a href="/gone.html#x">g</a>`,
		"404.html":         `<p>not found</p>`,
	})

	rep, err := Run(context.Background(), Options{Output: root})
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Files)
	assert.Equal(t, 4, rep.Links)
	assert.False(t, rep.Passed())
	assert.Equal(t, []Broken{
		{File: "index.html", Href: "/missing/"},
		{File: "notes/index.html", Href: "/gone.html#x"},
	}, rep.Broken)
	assert.Equal(t, "index.html: broken link /missing/", rep.Broken[0].String())
}

func TestRun_NoPages(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{"robots.txt": ""})

	_, err := Run(context.Background(), Options{Output: root})
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestRun_MissingOutput(t *testing.T) {
	_, err := Run(context.Background(), Options{Output: filepath.Join(t.TempDir(), "public")})
	assert.Error(t, err)
}

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/gardensite/internal/models"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := "---\nvisibility: public\nstatus: tree\ngroups:\n  - friends\n  - family\n---\nBODY"
	fields, body := Parse(input)

	assert.Equal(t, models.Fields{
		"visibility": models.ScalarValue("public"),
		"status":     models.ScalarValue("tree"),
		"groups":     models.ListValue("friends", "family"),
	}, fields)
	assert.Equal(t, "BODY", body)
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := "# Just a heading\nSome text.\n"
	fields, body := Parse(input)
	assert.Empty(t, fields)
	assert.Equal(t, input, body)
}

func TestParse_UnterminatedBlock(t *testing.T) {
	input := "---\ntitle: Lost\nno closing line\n"
	fields, body := Parse(input)
	assert.Empty(t, fields)
	assert.Equal(t, input, body)
}

func TestParse_CRLFAndBareCR(t *testing.T) {
	crlf := "---\r\ntitle: Hello\r\nstatus: plant\r\n---\r\nline one\r\nline two\r\n"
	cr := "---\rtitle: Hello\rstatus: plant\r---\rline one\rline two\r"

	f1, b1 := Parse(crlf)
	f2, b2 := Parse(cr)
	assert.Equal(t, f1, f2)
	assert.Equal(t, "line one\nline two\n", b1)
	assert.Equal(t, b1, b2)
	assert.Equal(t, models.ScalarValue("Hello"), f1["title"])
}

func TestParse_FirstClosingDelimiterWins(t *testing.T) {
	input := "---\ntitle: A\n---\nbody\n---\nnot: frontmatter\n---\n"
	fields, body := Parse(input)
	assert.Len(t, fields, 1)
	assert.Equal(t, "body\n---\nnot: frontmatter\n---\n", body)
}

func TestParse_ClosingDelimiterWithTrailingWhitespace(t *testing.T) {
	fields, body := Parse("---\ntitle: A\n---  \t\n\nbody")
	assert.Equal(t, models.ScalarValue("A"), fields["title"])
	assert.Equal(t, "\nbody", body, "exactly one line break is consumed")
}

func TestParse_ClosingDelimiterAtEOF(t *testing.T) {
	fields, body := Parse("---\ntitle: A\n---")
	assert.Equal(t, models.ScalarValue("A"), fields["title"])
	assert.Equal(t, "", body)
}

func TestParse_InlineLists(t *testing.T) {
	input := "---\ntags: [go, \"garden\", 'notes', ]\nempty: []\n---\n"
	fields, _ := Parse(input)
	assert.Equal(t, models.ListValue("go", "garden", "notes"), fields["tags"])
	assert.Equal(t, models.ListValue(), fields["empty"])
}

func TestParse_CommentsAndBlankLines(t *testing.T) {
	input := "---\n# a comment\n\ntitle: 'Quoted'\n   # indented comment\nstatus: plant\n---\n"
	fields, _ := Parse(input)
	assert.Equal(t, models.Fields{
		"title":  models.ScalarValue("Quoted"),
		"status": models.ScalarValue("plant"),
	}, fields)
}

func TestParse_NewKeyClearsListState(t *testing.T) {
	input := "---\ngroups:\n  - a\ntitle: T\n  - orphan\ntags:\n  - x\n---\n"
	fields, _ := Parse(input)
	assert.Equal(t, models.ListValue("a"), fields["groups"])
	assert.Equal(t, models.ScalarValue("T"), fields["title"])
	assert.Equal(t, models.ListValue("x"), fields["tags"])
}

func TestParse_ItemWithoutListIgnored(t *testing.T) {
	fields, _ := Parse("---\n- stray\ntitle: T\n---\n")
	assert.Equal(t, models.Fields{"title": models.ScalarValue("T")}, fields)
}

func TestParse_QuotedListItems(t *testing.T) {
	fields, _ := Parse("---\ngroups:\n  - \"friends\"\n  -   'family'  \n---\n")
	assert.Equal(t, models.ListValue("friends", "family"), fields["groups"])
}

func TestParse_EmptyBlock(t *testing.T) {
	fields, body := Parse("---\n---\nbody")
	assert.Empty(t, fields)
	assert.Equal(t, "body", body)
}

func TestRender_RoundTrip(t *testing.T) {
	fields := models.Fields{
		"zeta":       models.ScalarValue("last"),
		"visibility": models.ScalarValue("group"),
		"title":      models.ScalarValue("Hello"),
		"groups":     models.ListValue("friends"),
		"tags":       models.ListValue(),
	}
	out := Render(fields, "body\n")
	require.Equal(t, "---\ntitle: \"Hello\"\nvisibility: group\ngroups:\n  - friends\ntags: []\nzeta: last\n---\nbody\n", out)

	parsed, body := Parse(out)
	assert.Equal(t, fields, parsed)
	assert.Equal(t, "body\n", body)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "FM Title", Title(models.Fields{"title": models.ScalarValue("FM Title")}, "# H1\n"))
	assert.Equal(t, "My Heading", Title(models.Fields{}, "some text\n\n# My Heading\nmore"))
	assert.Equal(t, "", Title(nil, "plain"))
}

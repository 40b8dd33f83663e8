package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/starford/gardensite/internal/models"
)

func fm(kv ...string) models.Fields {
	f := models.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[kv[i]] = models.ScalarValue(kv[i+1])
	}
	return f
}

func TestShouldInclude(t *testing.T) {
	tests := []struct {
		name     string
		fields   models.Fields
		audience models.Audience
		group    string
		want     bool
	}{
		{"missing fields not public", fm(), models.AudiencePublic, "", false},
		{"public seedling withheld", fm("visibility", "public", "status", "seedling"), models.AudiencePublic, "", false},
		{"public plant", fm("visibility", "public", "status", "plant"), models.AudiencePublic, "", true},
		{"public tree mixed case", fm("visibility", " Public ", "status", "TREE"), models.AudiencePublic, "", true},
		{"public without status", fm("visibility", "public"), models.AudiencePublic, "", false},
		{"group visibility not public", fm("visibility", "group", "status", "tree"), models.AudiencePublic, "", false},
		{"unknown visibility fails closed", fm("visibility", "everyone", "status", "tree"), models.AudiencePublic, "", false},
		{"unknown status fails closed", fm("visibility", "public", "status", "bush"), models.AudiencePublic, "", false},
		{"group sees public seedling", fm("visibility", "public", "status", "seedling"), models.AudienceGroup, "friends", true},
		{"group sees public without group name", fm("visibility", "public"), models.AudienceGroup, "", true},
		{
			"group member",
			models.Fields{"visibility": models.ScalarValue("group"), "groups": models.ListValue("x")},
			models.AudienceGroup, "x", true,
		},
		{
			"group non member",
			models.Fields{"visibility": models.ScalarValue("group"), "groups": models.ListValue("x")},
			models.AudienceGroup, "y", false,
		},
		{
			"group without group parameter",
			models.Fields{"visibility": models.ScalarValue("group"), "groups": models.ListValue("x")},
			models.AudienceGroup, "", false,
		},
		{"scalar groups", fm("visibility", "group", "groups", "x"), models.AudienceGroup, "x", true},
		{"group private excluded", fm("visibility", "private"), models.AudienceGroup, "x", false},
		{"private sees private", fm("visibility", "private"), models.AudiencePrivate, "", true},
		{"private sees empty", fm(), models.AudiencePrivate, "", true},
		{"unknown audience", fm("visibility", "public", "status", "tree"), models.Audience("press"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldInclude(tt.fields, tt.audience, tt.group))
		})
	}
}

func TestDefaults(t *testing.T) {
	f := models.Fields{"visibility": models.ListValue("public")}
	assert.Equal(t, VisibilityPrivate, Visibility(f), "a list is not a visibility")
	assert.Equal(t, StatusSeedling, Status(models.Fields{}))
	assert.Equal(t, []string{}, Groups(models.Fields{}))
	assert.Equal(t, []string{}, Groups(fm("groups", "")))
}

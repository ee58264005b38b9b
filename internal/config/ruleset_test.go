package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/subjectmap/pkg/models"
)

const cleanYAML = `
record_element: item
retain:
  - field: research_subject_id
    op: matches
    value: '^\d+-\d+$'
  - field: redcap_event_name
    op: in
    values: [enrollment_arm_1]
fields:
  - from: research_subject_id
  - from: mrn
    to: medical_record_number
    type: trim
site_id:
  from: research_subject_id
  pattern: '^(\d+)-'
`

func TestLoadCleanRuleset(t *testing.T) {
	path := writeFile(t, t.TempDir(), "clean.yaml", cleanYAML)

	rs, err := LoadCleanRuleset(path)
	require.NoError(t, err)

	assert.Equal(t, "item", rs.RecordElement)
	require.Len(t, rs.Retain, 2)
	require.NotNil(t, rs.Retain[0].Regexp())
	assert.True(t, rs.Retain[0].Regexp().MatchString("10-001"))
	assert.Equal(t, []string{"enrollment_arm_1"}, rs.Retain[1].Values)
	assert.Equal(t, "medical_record_number", rs.Fields[1].Target())
	assert.Equal(t, "site_id", rs.SiteID.To)
	assert.Equal(t, "10", rs.SiteID.Regexp().FindStringSubmatch("10-001")[1])
}

func TestLoadCleanRulesetAcceptsJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "clean.json", `{"site_id": {"from": "dag", "to": "site"}}`)

	rs, err := LoadCleanRuleset(path)
	require.NoError(t, err)
	assert.Equal(t, "dag", rs.SiteID.From)
	assert.Equal(t, "site", rs.SiteID.To)
	assert.Equal(t, "item", rs.RecordElement)
}

func TestCompileCleanRulesetErrors(t *testing.T) {
	tests := []struct {
		name string
		rs   models.CleanRuleset
		want string
	}{
		{"missing site id", models.CleanRuleset{}, "site_id"},
		{"unknown op", models.CleanRuleset{
			Retain: []models.Predicate{{Field: "a", Op: "like"}},
			SiteID: models.SiteIDRule{From: "a"},
		}, "unknown op"},
		{"bad regex", models.CleanRuleset{
			Retain: []models.Predicate{{Field: "a", Op: models.OpMatches, Value: "("}},
			SiteID: models.SiteIDRule{From: "a"},
		}, "bad pattern"},
		{"pattern without group", models.CleanRuleset{
			SiteID: models.SiteIDRule{From: "a", Pattern: `^\d+`},
		}, "capture group"},
		{"unknown type", models.CleanRuleset{
			Fields: []models.FieldRule{{From: "a", Type: "blob"}},
			SiteID: models.SiteIDRule{From: "a"},
		}, "unknown type"},
		{"collision", models.CleanRuleset{
			Fields: []models.FieldRule{{From: "a", To: "site_id"}},
			SiteID: models.SiteIDRule{From: "a"},
		}, "collides"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := tt.rs
			err := CompileCleanRuleset(&rs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRulesetFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadGroupRuleset(dir + "/missing.yaml")
	var rfe *RulesetFileError
	require.True(t, errors.As(err, &rfe))
	assert.Equal(t, "failed to read", rfe.Reason)

	bad := writeFile(t, dir, "bad.yaml", "key_field: [unterminated")
	_, err = LoadGroupRuleset(bad)
	require.True(t, errors.As(err, &rfe))
	assert.Equal(t, "failed to parse", rfe.Reason)
}

func TestLoadGroupRulesetDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "group.yaml", "record_element: smi\n")

	rs, err := LoadGroupRuleset(path)
	require.NoError(t, err)
	assert.Equal(t, "site_id", rs.KeyField)
	assert.Equal(t, "site", rs.GroupElement)
	assert.Equal(t, "id", rs.IDAttribute)
	assert.Equal(t, "smi", rs.RecordElement)
	assert.False(t, rs.DropKeyField)
}

package etl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/subjectmap/pkg/models"
)

func groupedSample(t *testing.T) *models.GroupedRecordSet {
	t.Helper()
	clean, group := testRulesets()
	grouped, _, err := NewTransformer(clean, group).Transform(testRunContext(Options{}), &models.RawRecordSet{Data: []byte(sampleInput)})
	require.NoError(t, err)
	return grouped
}

func TestMaterializeOneArtifactPerGroup(t *testing.T) {
	dir := t.TempDir()
	_, rules := testRulesets()
	m := NewMaterializer(dir, "artifact-", rules)

	artifacts, err := m.Materialize(testRunContext(Options{}), groupedSample(t))
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	for i, id := range []string{"10", "20", "30"} {
		a := artifacts[i]
		assert.Equal(t, id, a.SiteID)
		assert.Equal(t, "artifact-"+id+".xml", a.FileName)
		assert.Equal(t, filepath.Join(dir, a.FileName), a.Path)

		fi, err := os.Stat(a.Path)
		require.NoError(t, err)
		assert.Equal(t, a.Size, fi.Size())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temp files left behind")
}

func TestMaterializeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	_, rules := testRulesets()
	m := NewMaterializer(dir, "smi", rules)

	first, err := m.Materialize(testRunContext(Options{}), groupedSample(t))
	require.NoError(t, err)
	before, err := os.ReadFile(first[0].Path)
	require.NoError(t, err)

	second, err := m.Materialize(testRunContext(Options{}), groupedSample(t))
	require.NoError(t, err)
	after, err := os.ReadFile(second[0].Path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, after)
	assert.Equal(t, "smi10.xml", first[0].FileName)
}

func TestMaterializeRejectsUnsafeSiteID(t *testing.T) {
	_, rules := testRulesets()
	m := NewMaterializer(t.TempDir(), "artifact-", rules)

	for _, id := range []string{"../10", "..", "a b"} {
		grouped := &models.GroupedRecordSet{Groups: []models.SiteGroup{{SiteID: id}}}
		_, err := m.Materialize(testRunContext(Options{}), grouped)

		var merr *MaterializationError
		require.ErrorAs(t, err, &merr, "site id %q", id)
		assert.Equal(t, id, merr.SiteID)
	}
}

func TestVerifyDetectsMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	_, rules := testRulesets()
	m := NewMaterializer(dir, "artifact-", rules)

	artifacts, err := m.Materialize(testRunContext(Options{}), groupedSample(t))
	require.NoError(t, err)
	require.NoError(t, m.Verify(artifacts))

	require.NoError(t, os.Remove(artifacts[1].Path))
	err = m.Verify(artifacts)
	require.True(t, IsMaterializationError(err))
	assert.Contains(t, err.Error(), `"20"`)
}

package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/subjectmap/pkg/models"
)

func newJob(t *testing.T, content string, entry models.SiteCatalogEntry) *models.TransferJob {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact-10.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	job := models.NewTransferJob(models.GroupArtifact{
		SiteID:   "10",
		Path:     path,
		FileName: "artifact-10.xml",
		Size:     int64(len(content)),
	}, entry)
	return job
}

func TestLocalTransportOverwrites(t *testing.T) {
	share := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(share, "incoming"), 0755))
	router := &Router{Local: &LocalTransport{}}
	entry := models.SiteCatalogEntry{SiteID: "10", Address: "file://" + share, RemotePath: "incoming"}

	for _, content := range []string{"<site id=\"10\">first</site>", "<site id=\"10\">second</site>"} {
		job := newJob(t, content, entry)
		require.NoError(t, router.Send(context.Background(), job))
		assert.Equal(t, models.StateTransferring, job.State)

		got, err := os.ReadFile(filepath.Join(share, "incoming", "artifact-10.xml"))
		require.NoError(t, err)
		assert.Equal(t, content, string(got))
	}

	entries, err := os.ReadDir(filepath.Join(share, "incoming"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalTransportMissingDirectory(t *testing.T) {
	router := &Router{Local: &LocalTransport{}}
	job := newJob(t, "x", models.SiteCatalogEntry{Address: "file://" + t.TempDir(), RemotePath: "nope"})

	err := router.Send(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, models.StateConnecting, job.State)
}

func TestRouterUnconfiguredScheme(t *testing.T) {
	job := newJob(t, "x", models.SiteCatalogEntry{Address: "s3://bucket"})
	err := (&Router{}).Send(context.Background(), job)
	assert.ErrorContains(t, err, "s3 transport not configured")
}

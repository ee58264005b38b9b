package etl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/subjectmap/pkg/models"
)

func TestREDCapSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "TOKEN", r.PostForm.Get("token"))
		assert.Equal(t, "record", r.PostForm.Get("content"))
		assert.Equal(t, "xml", r.PostForm.Get("format"))
		assert.Equal(t, "flat", r.PostForm.Get("type"))
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(sampleInput))
	}))
	defer srv.Close()

	raw, err := NewREDCapSource(srv.URL, "TOKEN", 5*time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleInput, string(raw.Data))
	assert.Equal(t, srv.URL, raw.Origin)
}

func TestREDCapSourceRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `<error>You do not have permissions to use the API</error>`, http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewREDCapSource(srv.URL, "bad", time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "permissions")
}

func TestREDCapSourceTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewREDCapSource(srv.URL, "t", 50*time.Millisecond).Fetch(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "export.xml", sampleInput)

	raw, err := (&FileSource{Path: path}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, raw.Origin)

	_, err = (&FileSource{Path: filepath.Join(dir, "missing.xml")}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestRowRecord(t *testing.T) {
	when := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := rowRecord(
		[]string{"record_id", "site", "mrn", "enrolled", "weight", "active", "notes"},
		[]interface{}{int64(7), []byte("10"), "A1", when, 71.5, true, nil},
	)

	assert.Equal(t, "7", field(t, rec, "record_id"))
	assert.Equal(t, "10", field(t, rec, "site"))
	assert.Equal(t, "A1", field(t, rec, "mrn"))
	assert.Equal(t, "2024-03-01T09:30:00Z", field(t, rec, "enrolled"))
	assert.Equal(t, "71.5", field(t, rec, "weight"))
	assert.Equal(t, "true", field(t, rec, "active"))
	assert.Equal(t, "", field(t, rec, "notes"))
}

func field(t *testing.T, rec models.Record, name string) string {
	t.Helper()
	v, ok := rec.Get(name)
	require.True(t, ok, "field %s", name)
	return v
}

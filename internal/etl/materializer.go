package etl

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BartekS5/subjectmap/pkg/models"
)

var safeSiteID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Materializer writes one artifact per site group into a directory.
type Materializer struct {
	Dir    string
	Prefix string
	Rules  *models.GroupRuleset
}

func NewMaterializer(dir, prefix string, rules *models.GroupRuleset) *Materializer {
	return &Materializer{Dir: dir, Prefix: prefix, Rules: rules}
}

// FileName is the artifact name for a site id. It does not depend on the
// run, so the same site always lands under the same name.
func (m *Materializer) FileName(siteID string) string {
	return m.Prefix + siteID + ".xml"
}

// Materialize persists every group and returns the artifacts in group
// order. The first failing group aborts with a MaterializationError.
func (m *Materializer) Materialize(rc *RunContext, grouped *models.GroupedRecordSet) ([]models.GroupArtifact, error) {
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return nil, &MaterializationError{Path: m.Dir, Err: err}
	}

	artifacts := make([]models.GroupArtifact, 0, len(grouped.Groups))
	for _, g := range grouped.Groups {
		a, err := m.write(g)
		if err != nil {
			return nil, err
		}
		rc.Log.Debugf("Wrote %s (%d records, %d bytes)", a.Path, len(g.Records), a.Size)
		artifacts = append(artifacts, a)
	}
	rc.Log.Infof("Materialized %d artifact(s) in %s", len(artifacts), m.Dir)
	return artifacts, nil
}

func (m *Materializer) write(g models.SiteGroup) (models.GroupArtifact, error) {
	if !safeSiteID.MatchString(g.SiteID) || g.SiteID == "." || g.SiteID == ".." {
		return models.GroupArtifact{}, &MaterializationError{SiteID: g.SiteID, Err: errors.New("site id is not a safe file name")}
	}

	name := m.FileName(g.SiteID)
	final := filepath.Join(m.Dir, name)

	var buf bytes.Buffer
	if err := EncodeGroup(&buf, m.Rules, g); err != nil {
		return models.GroupArtifact{}, &MaterializationError{SiteID: g.SiteID, Path: final, Err: err}
	}

	if err := writeAtomic(final, buf.Bytes()); err != nil {
		return models.GroupArtifact{}, &MaterializationError{SiteID: g.SiteID, Path: final, Err: err}
	}
	return models.GroupArtifact{SiteID: g.SiteID, Path: final, FileName: name, Size: int64(buf.Len())}, nil
}

// Verify re-checks that every artifact is still on disk.
func (m *Materializer) Verify(artifacts []models.GroupArtifact) error {
	for _, a := range artifacts {
		fi, err := os.Stat(a.Path)
		if err != nil {
			return &MaterializationError{SiteID: a.SiteID, Path: a.Path, Err: fmt.Errorf("artifact missing before dispatch: %w", err)}
		}
		if !fi.Mode().IsRegular() {
			return &MaterializationError{SiteID: a.SiteID, Path: a.Path, Err: errors.New("artifact is not a regular file")}
		}
	}
	return nil
}

// writeAtomic writes data next to path and renames it into place, so a
// reader never sees a partial file under the final name.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

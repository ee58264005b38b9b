package etl

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/BartekS5/subjectmap/pkg/models"
)

type catalogDocument struct {
	XMLName xml.Name                  `xml:"sites"`
	Sites   []models.SiteCatalogEntry `xml:"site"`
}

// Catalog is the read-only registry of site destinations for one run.
type Catalog struct {
	Path string

	entries    map[string]models.SiteCatalogEntry
	incomplete map[string]*CatalogEntryIncompleteError
	order      []string
	issues     []models.CatalogIssue
}

// LoadCatalog reads the site registry. A missing, unreadable or unparsable
// document is a CatalogNotFoundError. Incomplete and duplicate entries are
// kept out of the resolvable set and listed by Issues.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CatalogNotFoundError{Path: path, Err: err}
	}

	var doc catalogDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &CatalogNotFoundError{Path: path, Err: fmt.Errorf("parse: %w", err)}
	}

	c := &Catalog{
		Path:       path,
		entries:    make(map[string]models.SiteCatalogEntry),
		incomplete: make(map[string]*CatalogEntryIncompleteError),
	}
	seen := make(map[string]bool)

	for i, e := range doc.Sites {
		e = trimEntry(e)
		if e.SiteID == "" {
			c.issues = append(c.issues, models.CatalogIssue{
				SiteID:  fmt.Sprintf("#%d", i+1),
				Missing: []string{"site_code"},
				Reason:  "entry has no site_code",
			})
			continue
		}
		if seen[e.SiteID] {
			c.issues = append(c.issues, models.CatalogIssue{SiteID: e.SiteID, Reason: "duplicate site_code, first entry kept"})
			continue
		}
		seen[e.SiteID] = true
		c.order = append(c.order, e.SiteID)

		if missing := e.MissingFields(); len(missing) > 0 {
			ierr := &CatalogEntryIncompleteError{SiteID: e.SiteID, Missing: missing}
			c.incomplete[e.SiteID] = ierr
			c.issues = append(c.issues, models.CatalogIssue{SiteID: e.SiteID, Missing: missing, Reason: ierr.Error()})
			continue
		}
		c.entries[e.SiteID] = e
	}
	return c, nil
}

// Resolve returns the complete entry for a site. The error is
// ErrNoCatalogEntry when the site is unknown and a
// *CatalogEntryIncompleteError when its entry lacks required fields.
func (c *Catalog) Resolve(siteID string) (models.SiteCatalogEntry, error) {
	if e, ok := c.entries[siteID]; ok {
		return e, nil
	}
	if ierr, ok := c.incomplete[siteID]; ok {
		return models.SiteCatalogEntry{}, ierr
	}
	return models.SiteCatalogEntry{}, ErrNoCatalogEntry
}

// Entries returns the resolvable entries in document order.
func (c *Catalog) Entries() []models.SiteCatalogEntry {
	out := make([]models.SiteCatalogEntry, 0, len(c.entries))
	for _, id := range c.order {
		if e, ok := c.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Issues lists the entries that were excluded when the catalog was loaded.
func (c *Catalog) Issues() []models.CatalogIssue {
	return c.issues
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

func trimEntry(e models.SiteCatalogEntry) models.SiteCatalogEntry {
	e.SiteID = strings.TrimSpace(e.SiteID)
	e.Address = strings.TrimSpace(e.Address)
	e.Username = strings.TrimSpace(e.Username)
	e.KeyFile = strings.TrimSpace(e.KeyFile)
	e.RemotePath = strings.TrimSpace(e.RemotePath)
	e.RemoteName = strings.TrimSpace(e.RemoteName)
	e.FailureEmail = strings.TrimSpace(e.FailureEmail)
	return e
}

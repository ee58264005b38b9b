package etl

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogXML = `<?xml version="1.0"?>
<sites>
  <site>
    <site_code> 10 </site_code>
    <site_URI>sftp.site10.example.org</site_URI>
    <site_uname>gsmi</site_uname>
    <site_password>env:SITE10_PASSWORD</site_password>
    <site_contact_email>it@site10.example.org</site_contact_email>
    <site_remotepath>/incoming</site_remotepath>
  </site>
  <site>
    <site_code>20</site_code>
    <site_URI>sftp://sftp.site20.example.org:2222</site_URI>
    <site_uname>gsmi</site_uname>
    <site_key_file>/etc/subjectmap/keys/site20</site_key_file>
    <site_contact_email>it@site20.example.org</site_contact_email>
    <site_remotepath>/data</site_remotepath>
    <site_remotename>smi.xml</site_remotename>
  </site>
  <site>
    <site_code>40</site_code>
    <site_URI>sftp.site40.example.org</site_URI>
    <site_contact_email>it@site40.example.org</site_contact_email>
  </site>
  <site>
    <site_code>10</site_code>
    <site_URI>other.example.org</site_URI>
    <site_uname>x</site_uname>
    <site_password>y</site_password>
    <site_remotepath>/z</site_remotepath>
  </site>
</sites>`

func TestLoadCatalog(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "catalog.xml", catalogXML)

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	e, err := c.Resolve("10")
	require.NoError(t, err)
	assert.Equal(t, "sftp.site10.example.org", e.Address)
	assert.Equal(t, "env:SITE10_PASSWORD", e.Credential)
	assert.Equal(t, "it@site10.example.org", e.FailureEmail)

	e, err = c.Resolve("20")
	require.NoError(t, err)
	assert.Equal(t, "smi.xml", e.RemoteName)
	assert.Equal(t, "/etc/subjectmap/keys/site20", e.KeyFile)

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "10", entries[0].SiteID)
	assert.Equal(t, "20", entries[1].SiteID)
}

func TestCatalogIncompleteAndDuplicateEntries(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "catalog.xml", catalogXML)
	c, err := LoadCatalog(path)
	require.NoError(t, err)

	_, err = c.Resolve("40")
	var incomplete *CatalogEntryIncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{"site_uname", "site_password", "site_remotepath"}, incomplete.Missing)

	_, err = c.Resolve("99")
	assert.ErrorIs(t, err, ErrNoCatalogEntry)

	issues := c.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, "40", issues[0].SiteID)
	assert.Equal(t, "10", issues[1].SiteID)
	assert.Contains(t, issues[1].Reason, "duplicate")

	// First entry wins.
	e, _ := c.Resolve("10")
	assert.Equal(t, "sftp.site10.example.org", e.Address)
}

func TestLoadCatalogMissing(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.xml"))
	require.Error(t, err)
	assert.True(t, IsCatalogNotFound(err))
	assert.True(t, IsFatal(err))
}

func TestLoadCatalogUnparsable(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "catalog.xml", "<sites><site>")
	_, err := LoadCatalog(path)
	assert.True(t, IsCatalogNotFound(err))
}

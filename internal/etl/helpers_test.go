package etl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BartekS5/subjectmap/pkg/logger"
	"github.com/BartekS5/subjectmap/pkg/models"
)

const sampleInput = `<?xml version="1.0" encoding="UTF-8"?>
<records>
  <item><research_subject_id>10-001</research_subject_id><mrn> A1 </mrn><dob>2001-02-03</dob></item>
  <item><research_subject_id>20-001</research_subject_id><mrn>B1</mrn><dob>11/18/1999</dob></item>
  <item><research_subject_id>10-002</research_subject_id><mrn>A2</mrn><dob></dob></item>
  <item><research_subject_id>30-001</research_subject_id><mrn>C1</mrn><dob>2000-01-01</dob></item>
  <item><research_subject_id>bogus</research_subject_id><mrn>X</mrn><dob>2000-01-01</dob></item>
</records>
`

func testRunContext(opts Options) *RunContext {
	return NewRunContext(logger.Discard(), opts)
}

// testRulesets keeps mrn and dob, and takes the site from the subject id prefix.
func testRulesets() (*models.CleanRuleset, *models.GroupRuleset) {
	clean := &models.CleanRuleset{
		RecordElement: "item",
		Retain: []models.Predicate{
			{Field: "research_subject_id", Op: models.OpPresent},
		},
		Fields: []models.FieldRule{
			{From: "research_subject_id", To: "subject_id"},
			{From: "mrn", Type: "trim"},
			{From: "dob", Type: "date"},
		},
		SiteID: models.SiteIDRule{From: "research_subject_id", Pattern: `^(\d+)-`, To: "site_id"},
	}
	clean.SiteID.SetRegexp(regexp.MustCompile(clean.SiteID.Pattern))

	group := &models.GroupRuleset{
		KeyField:      "site_id",
		GroupElement:  "site",
		IDAttribute:   "id",
		RecordElement: "subject",
	}
	return clean, group
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

type catalogSite struct {
	code, uri, remotePath, contact string
}

func writeCatalog(t *testing.T, dir string, sites ...catalogSite) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("<sites>\n")
	for _, s := range sites {
		sb.WriteString("  <site>\n")
		sb.WriteString("    <site_code>" + s.code + "</site_code>\n")
		sb.WriteString("    <site_URI>" + s.uri + "</site_URI>\n")
		sb.WriteString("    <site_uname>gsmi</site_uname>\n")
		sb.WriteString("    <site_password>secret</site_password>\n")
		sb.WriteString("    <site_contact_email>" + s.contact + "</site_contact_email>\n")
		sb.WriteString("    <site_remotepath>" + s.remotePath + "</site_remotepath>\n")
		sb.WriteString("  </site>\n")
	}
	sb.WriteString("</sites>\n")
	return writeTestFile(t, dir, "catalog.xml", sb.String())
}

// fakeTransport walks jobs through the transfer states and lets a test
// decide, per address, how a transfer ends.
type fakeTransport struct {
	mu   sync.Mutex
	sent map[string][]byte

	// behave is keyed by catalog address; missing means success.
	behave map[string]func(ctx context.Context, job *models.TransferJob) error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sent:   make(map[string][]byte),
		behave: make(map[string]func(ctx context.Context, job *models.TransferJob) error),
	}
}

func (f *fakeTransport) Send(ctx context.Context, job *models.TransferJob) error {
	if fn, ok := f.behave[job.Entry.Address]; ok {
		return fn(ctx, job)
	}
	for _, s := range []models.JobState{models.StateConnecting, models.StateAuthenticated, models.StateTransferring} {
		if err := job.Advance(s); err != nil {
			return err
		}
	}
	data, err := os.ReadFile(job.Artifact.Path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.sent[job.SiteID()] = data
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) sentTo(siteID string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.sent[siteID]
	return data, ok
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// unreachable fails a job while it is connecting.
func unreachable(_ context.Context, job *models.TransferJob) error {
	if err := job.Advance(models.StateConnecting); err != nil {
		return err
	}
	return errors.New("dial tcp 192.0.2.1:22: connect: connection refused")
}

// hang blocks until the job's context ends.
func hang(ctx context.Context, job *models.TransferJob) error {
	if err := job.Advance(models.StateConnecting); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

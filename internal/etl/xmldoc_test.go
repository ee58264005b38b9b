package etl

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/subjectmap/pkg/models"
)

func TestParseRecords(t *testing.T) {
	doc := `<?xml version="1.0"?>
<records>
  <meta>ignored</meta>
  <item>
    <record_id><![CDATA[ 1 ]]></record_id>
    <name>A &amp; B</name>
    <empty/>
  </item>
</records>`

	records, err := ParseRecords([]byte(doc), "item")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []models.Field{
		{Name: "record_id", Value: "1"},
		{Name: "name", Value: "A & B"},
		{Name: "empty", Value: ""},
	}, records[0].Fields)
}

func TestParseRecordsEmptyRoot(t *testing.T) {
	records, err := ParseRecords([]byte("<records/>"), "item")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseRecordsRejectsForeignRecordElement(t *testing.T) {
	doc := `<records><row><research_subject_id>10-1</research_subject_id></row></records>`

	_, err := ParseRecords([]byte(doc), "item")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<item>")
	assert.Contains(t, err.Error(), "<row>")
}

func TestParseRecordsRejectsTrailingContent(t *testing.T) {
	_, err := ParseRecords([]byte("<records></records><records></records>"), "item")
	assert.Error(t, err)

	_, err = ParseRecords([]byte(""), "item")
	assert.Error(t, err)
}

func TestEncodeGroup(t *testing.T) {
	_, rules := testRulesets()
	group := models.SiteGroup{SiteID: "10", Records: []models.Record{
		{Fields: []models.Field{{Name: "subject_id", Value: "10-001"}, {Name: "note", Value: "a<b"}}},
	}}

	var buf bytes.Buffer
	require.NoError(t, EncodeGroup(&buf, rules, group))

	want := `<?xml version="1.0" encoding="UTF-8"?>
<site id="10">
  <subject>
    <subject_id>10-001</subject_id>
    <note>a&lt;b</note>
  </subject>
</site>
`
	assert.Equal(t, want, buf.String())
}

func TestEncodeRecordsRoundTrip(t *testing.T) {
	in := []models.Record{
		{Fields: []models.Field{{Name: "id", Value: "1"}, {Name: "site", Value: "10"}}},
		{Fields: []models.Field{{Name: "id", Value: "2"}, {Name: "site", Value: ""}}},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeRecords(&buf, "records", "item", in))

	out, err := ParseRecords(buf.Bytes(), "item")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncodeReportsWriteFailure(t *testing.T) {
	_, rules := testRulesets()
	err := EncodeGroup(failingWriter{}, rules, models.SiteGroup{SiteID: "10"})
	assert.ErrorContains(t, err, "disk full")

	err = EncodeRecords(failingWriter{}, "records", "item", nil)
	assert.ErrorContains(t, err, "disk full")
}

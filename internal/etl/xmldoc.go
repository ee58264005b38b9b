package etl

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// ParseRecords reads a flat XML document: the children of the root element
// named recordElement are records, and each of their child elements is one
// field. Other children of the root are ignored, but a root whose element
// children are all of some other name is an error.
func ParseRecords(data []byte, recordElement string) ([]models.Record, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	if err := findRoot(dec); err != nil {
		return nil, err
	}

	var records []models.Record
	other := ""
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("unexpected end of document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != recordElement {
				if other == "" {
					other = t.Name.Local
				}
				if err := dec.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			rec, err := parseRecord(dec, len(records))
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		case xml.EndElement:
			// End of root. Anything after it other than whitespace is invalid.
			if err := expectEOF(dec); err != nil {
				return nil, err
			}
			if len(records) == 0 && other != "" {
				return nil, fmt.Errorf("no <%s> records in document (found <%s>)", recordElement, other)
			}
			return records, nil
		}
	}
}

func findRoot(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return errors.New("document has no root element")
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			return nil
		}
	}
}

func expectEOF(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return errors.New("text after root element")
			}
		case xml.StartElement:
			return errors.New("more than one root element")
		}
	}
}

func parseRecord(dec *xml.Decoder, index int) (models.Record, error) {
	var rec models.Record
	for {
		tok, err := dec.Token()
		if err != nil {
			return rec, fmt.Errorf("record %d: %w", index, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			val, err := fieldText(dec)
			if err != nil {
				return rec, fmt.Errorf("record %d, field %q: %w", index, t.Name.Local, err)
			}
			rec.Fields = append(rec.Fields, models.Field{Name: t.Name.Local, Value: val})
		case xml.EndElement:
			return rec, nil
		}
	}
}

func fieldText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			return "", errors.New("nested element content is not supported")
		case xml.EndElement:
			return strings.TrimSpace(sb.String()), nil
		}
	}
}

// EncodeRecords renders records as a flat document with the given root and
// record element names.
func EncodeRecords(w io.Writer, root, recordElement string, records []models.Record) error {
	enc, err := newEncoder(w)
	if err != nil {
		return err
	}
	start := xml.StartElement{Name: xml.Name{Local: root}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, rec := range records {
		if err := encodeRecord(enc, recordElement, rec); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return err
	}
	return finish(w, enc)
}

// EncodeGroup renders one site group as an artifact document.
func EncodeGroup(w io.Writer, rs *models.GroupRuleset, group models.SiteGroup) error {
	enc, err := newEncoder(w)
	if err != nil {
		return err
	}
	start := xml.StartElement{
		Name: xml.Name{Local: rs.GroupElement},
		Attr: []xml.Attr{{Name: xml.Name{Local: rs.IDAttribute}, Value: group.SiteID}},
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, rec := range group.Records {
		if err := encodeRecord(enc, rs.RecordElement, rec); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return err
	}
	return finish(w, enc)
}

func newEncoder(w io.Writer) (*xml.Encoder, error) {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return nil, err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc, nil
}

func finish(w io.Writer, enc *xml.Encoder) error {
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func encodeRecord(enc *xml.Encoder, name string, rec models.Record) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, f := range rec.Fields {
		el := xml.StartElement{Name: xml.Name{Local: f.Name}}
		if err := enc.EncodeElement(f.Value, el); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return enc.EncodeToken(start.End())
}

package etl

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jacoelho/xsd"
	xsderrors "github.com/jacoelho/xsd/errors"

	"github.com/BartekS5/subjectmap/pkg/models"
)

// maxReportedViolations caps how many schema violations end up in the error.
const maxReportedViolations = 5

// SchemaValidator checks raw documents against an XSD before stage 1.
type SchemaValidator struct {
	path   string
	schema *xsd.Schema
}

func NewSchemaValidator(path string) (*SchemaValidator, error) {
	schema, err := xsd.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load source schema '%s': %w", path, err)
	}
	return &SchemaValidator{path: path, schema: schema}, nil
}

// Validate returns a MalformedInputError listing the first violations.
func (v *SchemaValidator) Validate(raw *models.RawRecordSet) error {
	err := v.schema.Validate(bytes.NewReader(raw.Data))
	if err == nil {
		return nil
	}

	violations, ok := xsderrors.AsValidations(err)
	if !ok {
		return &MalformedInputError{Origin: raw.Origin, Reason: "schema validation failed", Err: err}
	}

	msgs := make([]string, 0, maxReportedViolations)
	for i, viol := range violations {
		if i == maxReportedViolations {
			msgs = append(msgs, fmt.Sprintf("and %d more", len(violations)-i))
			break
		}
		if viol.Line > 0 {
			msgs = append(msgs, fmt.Sprintf("line %d: %s", viol.Line, viol.Message))
		} else {
			msgs = append(msgs, viol.Message)
		}
	}
	return &MalformedInputError{
		Origin: raw.Origin,
		Reason: fmt.Sprintf("does not conform to %s: %s", v.path, strings.Join(msgs, "; ")),
	}
}

package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ExportFilename is the name offered for downloaded reports.
const ExportFilename = "attribute_analysis.json"

//go:embed schema.json
var documentSchema string

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// Document is the exported form of an analysis.
type Document struct {
	Attributes        map[string]string `json:"attributes"`
	ConfidencePercent *int              `json:"confidence_percent"`
	MissingAttributes []string          `json:"missing_attributes"`
	InvalidAttributes []string          `json:"invalid_attributes"`
}

// NewDocument assembles the exported Document for a report.
func NewDocument(r Report, v Validation, c Confidence) *Document {
	doc := &Document{
		Attributes:        make(map[string]string, len(r)),
		MissingAttributes: v.Missing(),
		InvalidAttributes: v.Invalid(),
	}
	for k, val := range r {
		doc.Attributes[k] = val
	}
	if c.Known {
		pct := c.Percent
		doc.ConfidencePercent = &pct
	}

	return doc
}

// Export serializes the report as indented JSON. The output is checked
// against the embedded JSON schema before it is returned.
func Export(r Report, v Validation, c Confidence) ([]byte, error) {
	data, err := json.MarshalIndent(NewDocument(r, v, c), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}

	if err := validateDocument(data); err != nil {
		return nil, err
	}

	return data, nil
}

func validateDocument(data []byte) error {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	})
	if schemaErr != nil {
		return fmt.Errorf("loading report schema: %w", schemaErr)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validating report: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("report does not match schema: %s", strings.Join(msgs, "; "))
	}

	return nil
}

package tenderapi

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed evaluation_request.schema.json
var evaluationRequestSchema []byte

// ErrSchemaViolation is wrapped by ValidateEvaluationRequest when the document
// is well-formed JSON that does not match the request schema.
var ErrSchemaViolation = errors.New("evaluation request does not match schema")

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(evaluationRequestSchema))
})

// ValidateEvaluationRequest checks a raw evaluation_request document against
// the request schema before it is decoded.
func ValidateEvaluationRequest(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("load request schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(errs, "; "))
	}
	return nil
}

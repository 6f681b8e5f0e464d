package report

import (
	"embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	templateSchemaOnce sync.Once
	templateSchema     *gojsonschema.Schema
	templateSchemaErr  error
)

func loadTemplateSchema() (*gojsonschema.Schema, error) {
	templateSchemaOnce.Do(func() {
		data, err := schemaFS.ReadFile("schemas/template.json")
		if err != nil {
			templateSchemaErr = err
			return
		}
		templateSchema, templateSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	})
	return templateSchema, templateSchemaErr
}

// ValidateTemplatePayload checks a template create payload before it is
// stored. Rejecting malformed definitions here keeps generation free of
// config surprises.
func ValidateTemplatePayload(raw []byte) error {
	schema, err := loadTemplateSchema()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("template payload: %w", err)
	}
	if !result.Valid() {
		detail := "schema validation failed"
		if errs := result.Errors(); len(errs) > 0 {
			detail = errs[0].String()
		}
		return fmt.Errorf("template payload: %s", detail)
	}
	return nil
}

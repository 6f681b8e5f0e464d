package engine

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	actionSchemaOnce sync.Once
	actionSchema     *gojsonschema.Schema
	actionSchemaErr  error
)

func loadActionSchema() (*gojsonschema.Schema, error) {
	actionSchemaOnce.Do(func() {
		data, err := schemaFS.ReadFile("schemas/action_config.json")
		if err != nil {
			actionSchemaErr = err
			return
		}
		actionSchema, actionSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	})
	return actionSchema, actionSchemaErr
}

// ParseActionConfig validates and decodes a stored action_config blob. It is
// called when an action row is loaded, so malformed configuration is rejected
// before any prompt can reach it. An empty blob yields an empty config.
func ParseActionConfig(raw []byte) (ActionConfig, error) {
	if len(raw) == 0 || strings.TrimSpace(string(raw)) == "" {
		return ActionConfig{}, nil
	}
	schema, err := loadActionSchema()
	if err != nil {
		return ActionConfig{}, err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return ActionConfig{}, fmt.Errorf("%w: action config: %v", ErrConfig, err)
	}
	if !result.Valid() {
		detail := "schema validation failed"
		if errs := result.Errors(); len(errs) > 0 {
			detail = errs[0].String()
		}
		return ActionConfig{}, fmt.Errorf("%w: action config: %s", ErrConfig, detail)
	}
	var cfg ActionConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ActionConfig{}, fmt.Errorf("%w: action config: %v", ErrConfig, err)
	}
	return cfg, nil
}

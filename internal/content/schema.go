package content

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Output schema kinds, one per file in schemas/.
const (
	schemaProse   = "prose"
	schemaAreas   = "areas"
	schemaFAQs    = "faqs"
	schemaFAQsCTA = "faqs_cta"
	schemaCTA     = "cta"
)

var (
	schemaOnce     sync.Once
	compiledSchema map[string]*jsonschema.Schema
	schemaErr      error
)

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		kinds := []string{schemaProse, schemaAreas, schemaFAQs, schemaFAQsCTA, schemaCTA}
		for _, kind := range kinds {
			b, err := schemaFS.ReadFile("schemas/" + kind + ".json")
			if err != nil {
				schemaErr = fmt.Errorf("read schema %s: %w", kind, err)
				return
			}
			if err := compiler.AddResource(kind+".json", bytes.NewReader(b)); err != nil {
				schemaErr = fmt.Errorf("add schema %s: %w", kind, err)
				return
			}
		}
		out := make(map[string]*jsonschema.Schema, len(kinds))
		for _, kind := range kinds {
			s, err := compiler.Compile(kind + ".json")
			if err != nil {
				schemaErr = fmt.Errorf("compile schema %s: %w", kind, err)
				return
			}
			out[kind] = s
		}
		compiledSchema = out
	})
	return compiledSchema, schemaErr
}

// validateOutput checks raw JSON against the named schema.
func validateOutput(kind string, raw []byte) error {
	schemas, err := loadSchemas()
	if err != nil {
		return err
	}
	s, ok := schemas[kind]
	if !ok {
		return fmt.Errorf("unknown output schema %q", kind)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

package dashboard

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var embeddedSchemas embed.FS

// DocumentSchema names the built-in dashboard document schema.
const DocumentSchema = "document"

// SchemaValidator compiles JSON schemas once and validates raw payloads
// against them. The document schema is always available; callers may
// register more.
type SchemaValidator struct {
	mu       sync.RWMutex
	sources  map[string][]byte
	compiled map[string]*jsonschema.Schema
}

// NewSchemaValidator builds a validator backed by jsonschema v5.
func NewSchemaValidator() *SchemaValidator {
	v := &SchemaValidator{
		sources:  make(map[string][]byte),
		compiled: make(map[string]*jsonschema.Schema),
	}
	data, err := embeddedSchemas.ReadFile("schemas/document.schema.json")
	if err != nil {
		panic(fmt.Sprintf("dashboard: embedded document schema missing: %v", err))
	}
	v.sources[DocumentSchema] = data
	return v
}

// Register adds or replaces a named schema. A replaced schema is recompiled
// on next use.
func (v *SchemaValidator) Register(name string, schema map[string]any) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("dashboard: marshal schema %s: %w", name, err)
	}
	v.mu.Lock()
	v.sources[name] = data
	delete(v.compiled, name)
	v.mu.Unlock()
	return nil
}

// Validate checks a JSON payload against a named schema.
func (v *SchemaValidator) Validate(name string, data []byte) error {
	schema, err := v.schemaFor(name)
	if err != nil {
		return err
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("dashboard: decode %s payload: %w", name, err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("dashboard: %s payload failed validation: %w", name, err)
	}
	return nil
}

// ValidateValue marshals v and validates the result.
func (v *SchemaValidator) ValidateValue(name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("dashboard: marshal %s payload: %w", name, err)
	}
	return v.Validate(name, data)
}

func (v *SchemaValidator) schemaFor(name string) (*jsonschema.Schema, error) {
	v.mu.RLock()
	schema, ok := v.compiled[name]
	source, known := v.sources[name]
	v.mu.RUnlock()
	if ok {
		return schema, nil
	}
	if !known {
		return nil, fmt.Errorf("dashboard: unknown schema %q", name)
	}
	compiler := jsonschema.NewCompiler()
	resource := name + ".json"
	if err := compiler.AddResource(resource, bytes.NewReader(source)); err != nil {
		return nil, fmt.Errorf("dashboard: load schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("dashboard: compile schema %s: %w", name, err)
	}
	v.mu.Lock()
	v.compiled[name] = compiled
	v.mu.Unlock()
	return compiled, nil
}

var (
	defaultSchemasOnce sync.Once
	defaultSchemas     *SchemaValidator
)

// ValidateDocumentJSON validates a raw dashboard document against the
// built-in document schema.
func ValidateDocumentJSON(data []byte) error {
	defaultSchemasOnce.Do(func() {
		defaultSchemas = NewSchemaValidator()
	})
	return defaultSchemas.Validate(DocumentSchema, data)
}

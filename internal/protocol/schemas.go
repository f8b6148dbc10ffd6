package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names.
const (
	SchemaEdits    = "edits.schema.json"
	SchemaAck      = "ack.schema.json"
	SchemaReport   = "report.schema.json"
	SchemaTuning   = "tuning.schema.json"
	SchemaPalettes = "palettes.schema.json"
)

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*jsonschema.Schema{}
)

// Schema compiles (once) and returns an embedded schema by file name.
func Schema(name string) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[name]; ok {
		return s, nil
	}
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	s, err := jsonschema.CompileString(name, string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	schemaCache[name] = s
	return s, nil
}

// ValidateJSON checks raw JSON against an embedded schema.
func ValidateJSON(name string, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return ValidateValue(name, v)
}

// ValidateValue checks an already decoded JSON value (maps, slices, float64
// numbers) against an embedded schema.
func ValidateValue(name string, v any) error {
	s, err := Schema(name)
	if err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Validate marshals a Go value and validates the result.
func Validate(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return ValidateJSON(name, raw)
}

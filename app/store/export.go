package store

import (
	"fmt"
	"io"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// GenerateSchema returns JSON schema of the roster file
func GenerateSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{RequiredFromJSONSchemaTags: true}
	schema := r.Reflect(&Document{})
	schema.Title = "Technicians roster"
	schema.Description = "Schema for tech_be.json roster file"
	return schema
}

// WriteYAML exports technicians as yaml document with the same keys as the json file
func WriteYAML(w io.Writer, techs []Technician) error {
	if techs == nil {
		techs = []Technician{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Technicians: techs}); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush yaml: %w", err)
	}
	return nil
}

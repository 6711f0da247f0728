package config

import (
	"sync"

	"github.com/grovetools/extcore/schema"
)

var (
	schemaOnce      sync.Once
	schemaData      []byte
	schemaValidator *schema.Validator
	schemaErr       error
)

// GenerateSchema generates the JSON Schema for extcore.yml from the Config type.
func GenerateSchema() ([]byte, error) {
	return schema.Generate(&Config{}, "extcore Configuration", "Schema for extcore.yml, extcore.override.yml and their TOML equivalents.")
}

// NewSchemaValidator returns the validator for configuration documents. The
// schema is generated and compiled once per process.
func NewSchemaValidator() (*schema.Validator, error) {
	schemaOnce.Do(func() {
		schemaData, schemaErr = GenerateSchema()
		if schemaErr != nil {
			return
		}
		schemaValidator, schemaErr = schema.NewValidator("extcore.schema.json", schemaData)
	})
	return schemaValidator, schemaErr
}

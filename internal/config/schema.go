package config

import (
	"github.com/invopop/jsonschema"
)

// GenerateSchema produces a JSON schema for the options document, used
// by the CLI to validate and document config files.
func (o *Options) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
	}

	schema := reflector.Reflect(o)

	schema.Title = "strategy-options"
	schema.Description = "Configuration schema for the strategy engines"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

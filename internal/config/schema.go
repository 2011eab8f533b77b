package config

import (
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
)

// SchemaID identifies the configuration schema.
const SchemaID = "https://github.com/haasonsaas/agentbridge/config.schema.json"

// durationPattern accepts the strings time.ParseDuration accepts.
const durationPattern = `^(0|([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+)$`

var (
	schemaOnce sync.Once
	schemaJSON []byte
	schemaErr  error
)

// JSONSchema returns the JSON Schema of the configuration file. Keys follow
// the yaml tags and durations are strings such as "90s". No key is
// required, since every credential may come from the environment.
func JSONSchema() ([]byte, error) {
	schemaOnce.Do(func() {
		schemaJSON, schemaErr = json.MarshalIndent(buildSchema(), "", "  ")
	})
	return schemaJSON, schemaErr
}

var durationType = reflect.TypeOf(time.Duration(0))

func buildSchema() *jsonschema.Schema {
	// Inline everything: ratelimit.Config and Config share a type name.
	r := &jsonschema.Reflector{
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t != durationType {
				return nil
			}
			return &jsonschema.Schema{
				Type:     "string",
				Pattern:  durationPattern,
				Examples: []any{"1s", "10m"},
			}
		},
	}
	schema := r.Reflect(&Config{})
	schema.ID = SchemaID
	schema.Title = "agentbridge configuration"
	schema.Description = "Telegram to Letta bridge. String values may reference ${VAR} environment variables."
	if schema.Properties == nil {
		schema.Properties = jsonschema.NewProperties()
	}
	schema.Properties.Set(includeKey, &jsonschema.Schema{
		Description: "Files merged underneath this one, relative to it",
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	})
	return schema
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects the JSON Schema of T's fields. Fields without
// omitempty are required and unknown properties are rejected.
func SchemaFor[T any]() (json.RawMessage, error) {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero T
	schema := r.Reflect(&zero)
	schema.Version = ""
	return json.Marshal(schema)
}

// New builds a Tool whose arguments decode into T. The schema is reflected
// from T.
func New[T any](name, description string, fn func(ctx context.Context, args T) (string, error)) (Tool, error) {
	schema, err := SchemaFor[T]()
	if err != nil {
		return Tool{}, fmt.Errorf("tool %s: reflect schema: %w", name, err)
	}
	return Tool{
		Name:        name,
		Description: description,
		Schema:      schema,
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args T
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("decode arguments: %w", err)
			}
			return fn(ctx, args)
		},
	}, nil
}

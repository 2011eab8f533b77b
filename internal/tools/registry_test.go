package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/haasonsaas/agentbridge/internal/exchange"
	"github.com/haasonsaas/agentbridge/internal/letta"
)

type echoArgs struct {
	Text  string `json:"text"`
	Times int    `json:"times,omitempty" jsonschema:"minimum=1"`
}

func newEchoTool(t *testing.T) Tool {
	t.Helper()
	tool, err := New("echo", "Echo text back", func(_ context.Context, args echoArgs) (string, error) {
		n := args.Times
		if n == 0 {
			n = 1
		}
		return strings.Repeat(args.Text, n), nil
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tool
}

func TestRegistryCatalogOrder(t *testing.T) {
	r := NewRegistry(nil)
	if got := r.Catalog(); got != nil {
		t.Fatalf("empty catalog = %v, want nil", got)
	}
	r.MustRegister(newEchoTool(t))
	r.MustRegister(Tool{Name: "noop", Handler: func(context.Context, json.RawMessage) (string, error) { return "", nil }})
	r.MustRegister(newEchoTool(t))

	got := r.Catalog()
	if len(got) != 2 || got[0].Name != "echo" || got[1].Name != "noop" {
		t.Fatalf("catalog = %+v", got)
	}
	if got[0].Description != "Echo text back" || len(got[0].Parameters) == 0 {
		t.Errorf("echo declaration = %+v", got[0])
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d", r.Len())
	}
}

func TestRegistryRegisterValidation(t *testing.T) {
	r := NewRegistry(nil)
	noop := func(context.Context, json.RawMessage) (string, error) { return "", nil }

	tests := []struct {
		name string
		tool Tool
	}{
		{"empty name", Tool{Handler: noop}},
		{"long name", Tool{Name: strings.Repeat("x", MaxToolNameLength+1), Handler: noop}},
		{"no handler", Tool{Name: "x"}},
		{"bad schema", Tool{Name: "x", Handler: noop, Schema: json.RawMessage(`{"type": 7}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Register(tt.tool); err == nil {
				t.Error("Register() should fail")
			}
		})
	}
}

func TestRegistryHandle(t *testing.T) {
	r := NewRegistry(nil)
	r.MustRegister(newEchoTool(t))
	r.MustRegister(Tool{
		Name: "broken",
		Handler: func(context.Context, json.RawMessage) (string, error) {
			return "", errors.New("backend down")
		},
	})

	tests := []struct {
		name       string
		call       exchange.ToolCall
		wantStatus string
		wantReturn string
		wantErr    bool
	}{
		{
			name:       "success",
			call:       exchange.ToolCall{ID: "1", Name: "echo", Arguments: `{"text":"ab","times":2}`},
			wantStatus: letta.ApprovalSuccess,
			wantReturn: "abab",
		},
		{
			name:       "unknown tool",
			call:       exchange.ToolCall{ID: "2", Name: "missing", Arguments: `{}`},
			wantStatus: letta.ApprovalError,
			wantReturn: "tool not found: missing",
		},
		{
			name:       "malformed json",
			call:       exchange.ToolCall{ID: "3", Name: "echo", Arguments: `{"text":`},
			wantStatus: letta.ApprovalError,
			wantReturn: "invalid arguments",
		},
		{
			name:       "missing required field",
			call:       exchange.ToolCall{ID: "4", Name: "echo", Arguments: `{"times":2}`},
			wantStatus: letta.ApprovalError,
			wantReturn: "invalid arguments",
		},
		{
			name:       "unknown property",
			call:       exchange.ToolCall{ID: "5", Name: "echo", Arguments: `{"text":"a","loud":true}`},
			wantStatus: letta.ApprovalError,
			wantReturn: "invalid arguments",
		},
		{
			name:       "oversized arguments",
			call:       exchange.ToolCall{ID: "6", Name: "echo", Arguments: strings.Repeat(" ", MaxArgumentsSize+1)},
			wantStatus: letta.ApprovalError,
			wantReturn: "exceed maximum size",
		},
		{
			name:    "handler error",
			call:    exchange.ToolCall{ID: "7", Name: "broken", Arguments: `{}`},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Handle(context.Background(), tt.call)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Handle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
			if !strings.Contains(got.Return, tt.wantReturn) {
				t.Errorf("return = %q, want substring %q", got.Return, tt.wantReturn)
			}
		})
	}
}

func TestSchemaFor(t *testing.T) {
	raw, err := SchemaFor[editForumTopicArgs]()
	if err != nil {
		t.Fatalf("SchemaFor() error = %v", err)
	}
	var schema struct {
		Schema     string                     `json:"$schema"`
		ID         string                     `json:"$id"`
		Type       string                     `json:"type"`
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(raw, &schema); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	if schema.Schema != "" || schema.ID != "" {
		t.Errorf("schema should be anonymous, got $schema=%q $id=%q", schema.Schema, schema.ID)
	}
	if schema.Type != "object" {
		t.Errorf("type = %q", schema.Type)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "name" {
		t.Errorf("required = %v", schema.Required)
	}
	if _, ok := schema.Properties["icon_custom_emoji_id"]; !ok {
		t.Errorf("properties = %v", schema.Properties)
	}
}

package exchange

import (
	"testing"

	"github.com/haasonsaas/agentbridge/internal/letta"
)

func TestAccumulatorMerge(t *testing.T) {
	acc := newAccumulator()

	if ready := acc.merge([]letta.ToolCallDelta{{ToolCallID: "a", Name: "first"}}); len(ready) != 0 {
		t.Fatalf("ready after name only = %+v", ready)
	}
	// An empty field never clears what is already known.
	if ready := acc.merge([]letta.ToolCallDelta{{ToolCallID: "a"}}); len(ready) != 0 {
		t.Fatalf("ready after empty delta = %+v", ready)
	}
	// A non-empty field replaces.
	acc.merge([]letta.ToolCallDelta{{ToolCallID: "a", Name: "second"}})

	ready := acc.merge([]letta.ToolCallDelta{
		{ToolCallID: "b", Name: "other", Arguments: "{}"},
		{ToolCallID: "a", Arguments: `{"k":1}`},
		{Name: "no id", Arguments: "{}"},
	})
	if len(ready) != 2 {
		t.Fatalf("ready = %+v", ready)
	}
	if ready[0].ID != "b" || ready[1] != (ToolCall{ID: "a", Name: "second", Arguments: `{"k":1}`}) {
		t.Errorf("ready = %+v", ready)
	}

	if again := acc.merge([]letta.ToolCallDelta{{ToolCallID: "a", Name: "x", Arguments: "{}"}}); len(again) != 0 {
		t.Errorf("dispatched id became ready again: %+v", again)
	}
	if ids := acc.incomplete(); len(ids) != 0 {
		t.Errorf("incomplete = %v", ids)
	}

	acc.merge([]letta.ToolCallDelta{{ToolCallID: "c", Name: "dangling"}})
	if ids := acc.incomplete(); len(ids) != 1 || ids[0] != "c" {
		t.Errorf("incomplete = %v", ids)
	}
}

package exchange

import "github.com/haasonsaas/agentbridge/internal/letta"

// accumulator merges tool call fragments for one turn. It lives across all
// approval rounds of the turn, so an id is dispatched at most once no matter
// how many requests the turn spans.
type accumulator struct {
	pending    map[string]*ToolCall
	dispatched map[string]struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{
		pending:    make(map[string]*ToolCall),
		dispatched: make(map[string]struct{}),
	}
}

// merge folds deltas into the pending calls and returns, in arrival order,
// the calls that just became complete. A field is only replaced by a
// non-empty value. Deltas without an id, or for an id that was already
// dispatched, are ignored.
func (a *accumulator) merge(deltas []letta.ToolCallDelta) []ToolCall {
	var ready []ToolCall
	for _, d := range deltas {
		id := d.ToolCallID
		if id == "" {
			continue
		}
		if _, done := a.dispatched[id]; done {
			continue
		}
		call, ok := a.pending[id]
		if !ok {
			call = &ToolCall{ID: id}
			a.pending[id] = call
		}
		if d.Name != "" {
			call.Name = d.Name
		}
		if d.Arguments != "" {
			call.Arguments = d.Arguments
		}
		if call.Name != "" && call.Arguments != "" {
			a.dispatched[id] = struct{}{}
			delete(a.pending, id)
			ready = append(ready, *call)
		}
	}
	return ready
}

// incomplete returns the ids still waiting for a name or arguments.
func (a *accumulator) incomplete() []string {
	ids := make([]string, 0, len(a.pending))
	for id := range a.pending {
		ids = append(ids, id)
	}
	return ids
}

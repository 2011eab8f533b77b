package letta

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func collect(t *testing.T, s *EventStream) []Event {
	t.Helper()
	var out []Event
	for s.Next() {
		out = append(out, s.Event())
	}
	return out
}

func TestEventStream(t *testing.T) {
	body := strings.Join([]string{
		": keepalive",
		"",
		`data: {"id":"m1","message_type":"assistant_message","content":"Hel"}`,
		"",
		`data: {"id":"m1","message_type":"assistant_message","content":[{"type":"text","text":"lo"}," there"]}`,
		"",
		"event: message",
		`data: {"id":"m2","message_type":"approval_request_message","tool_call":{"tool_call_id":"c1","name":"lookup"}}`,
		"",
		`data: {"id":"m2","message_type":"approval_request_message","tool_calls":[{"tool_call_id":"c1","arguments":"{}"},{"tool_call_id":"c2","name":"x"}]}`,
		"",
		"data: [DONE]",
		"",
		`data: {"message_type":"assistant_message","content":"after done"}`,
		"",
	}, "\n")

	s := NewEventStream(io.NopCloser(strings.NewReader(body)))
	events := collect(t, s)
	if err := s.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(events), events)
	}

	if got := []string(events[0].Content); len(got) != 1 || got[0] != "Hel" {
		t.Errorf("event 0 content = %v", got)
	}
	if got := []string(events[1].Content); len(got) != 2 || got[0] != "lo" || got[1] != " there" {
		t.Errorf("event 1 content = %v", got)
	}
	if calls := events[2].AllToolCalls(); len(calls) != 1 || calls[0].Name != "lookup" {
		t.Errorf("event 2 calls = %+v", calls)
	}
	if calls := events[3].AllToolCalls(); len(calls) != 2 || calls[0].Arguments != "{}" || calls[1].ToolCallID != "c2" {
		t.Errorf("event 3 calls = %+v", calls)
	}
	if s.Next() {
		t.Error("Next() after end = true")
	}
}

func TestEventStreamMultilineDataAndNoTrailingBlank(t *testing.T) {
	body := "data: {\"message_type\":\"assistant_message\",\ndata: \"content\":\"hi\"}"
	s := NewEventStream(io.NopCloser(strings.NewReader(body)))
	events := collect(t, s)
	if s.Err() != nil || len(events) != 1 || events[0].Content[0] != "hi" {
		t.Fatalf("events = %+v, err = %v", events, s.Err())
	}
}

func TestEventStreamErrors(t *testing.T) {
	t.Run("error event", func(t *testing.T) {
		body := "data: {\"message_type\":\"assistant_message\",\"content\":\"a\"}\n\n" +
			"data: {\"message_type\":\"error_message\",\"message\":\"run failed\",\"detail\":\"quota\"}\n\n"
		s := NewEventStream(io.NopCloser(strings.NewReader(body)))
		events := collect(t, s)
		if len(events) != 1 {
			t.Fatalf("got %d events", len(events))
		}
		var streamErr *StreamError
		if !errors.As(s.Err(), &streamErr) || streamErr.Message != "run failed" || streamErr.Detail != "quota" {
			t.Errorf("Err() = %v", s.Err())
		}
	})

	t.Run("bad json", func(t *testing.T) {
		s := NewEventStream(io.NopCloser(strings.NewReader("data: {oops\n\n")))
		if s.Next() {
			t.Fatal("Next() = true")
		}
		if s.Err() == nil {
			t.Error("Err() = nil")
		}
	})
}

type closeTracker struct {
	io.Reader
	closed int
}

func (c *closeTracker) Close() error {
	c.closed++
	return nil
}

func TestEventStreamCloseIdempotent(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader("")}
	s := NewEventStream(body)
	_ = s.Close()
	_ = s.Close()
	if body.closed != 1 {
		t.Errorf("Close called body.Close %d times", body.closed)
	}
}

func TestStreamMessages(t *testing.T) {
	var gotPath, gotAccept string
	var gotReq map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"message_type\":\"assistant_message\",\"content\":\"ok\"}\n\ndata: [DONE]\n\n")
	})

	tools := []ClientTool{{Name: "t", Parameters: json.RawMessage(`{"type":"object"}`)}}
	s, err := c.StreamMessages(context.Background(), "agent-1", NewInputRequest("hello", tools))
	if err != nil {
		t.Fatalf("StreamMessages() error = %v", err)
	}
	defer s.Close()
	events := collect(t, s)
	if len(events) != 1 || events[0].Content[0] != "ok" {
		t.Fatalf("events = %+v", events)
	}

	if gotPath != "/v1/agents/agent-1/messages" || gotAccept != "text/event-stream" {
		t.Errorf("path=%q accept=%q", gotPath, gotAccept)
	}
	if gotReq["input"] != "hello" || gotReq["streaming"] != true || gotReq["stream_tokens"] != true {
		t.Errorf("request = %v", gotReq)
	}
	if _, ok := gotReq["messages"]; ok {
		t.Errorf("input request carried messages: %v", gotReq)
	}
	if tools, _ := gotReq["client_tools"].([]any); len(tools) != 1 {
		t.Errorf("client_tools = %v", gotReq["client_tools"])
	}
}

func TestNewApprovalRequestShape(t *testing.T) {
	data, err := json.Marshal(NewApprovalRequest(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"messages":[{"type":"approval","approvals":[]}],"streaming":true,"stream_tokens":true}`
	if string(data) != want {
		t.Errorf("approval request = %s, want %s", data, want)
	}
}

func TestStreamMessagesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent not found", http.StatusNotFound)
	})
	_, err := c.StreamMessages(context.Background(), "missing", NewInputRequest("hi", nil))
	if StatusCode(err) != http.StatusNotFound {
		t.Fatalf("error = %v, want 404", err)
	}
}

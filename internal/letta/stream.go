package letta

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const maxEventSize = 1 << 20

// StreamError is an error event sent by the server in the middle of a
// stream.
type StreamError struct {
	Message string
	Detail  string
}

func (e *StreamError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("letta stream error: %s: %s", e.Message, e.Detail)
	}
	return "letta stream error: " + e.Message
}

// StreamMessages submits req to the agent and returns the server-sent event
// stream. The caller must Close the stream. Cancelling ctx aborts the
// underlying connection.
func (c *Client) StreamMessages(ctx context.Context, agentID string, req MessageRequest) (*EventStream, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, errors.New("agent id is required")
	}
	req.Streaming = true

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/v1/agents/"+url.PathEscape(agentID)+"/messages", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stream messages: %w", err)
	}
	return NewEventStream(resp.Body), nil
}

// EventStream reads server-sent events one at a time. It is single-pass and
// not safe for concurrent use, apart from Close.
//
//	for stream.Next() {
//		ev := stream.Event()
//	}
//	if err := stream.Err(); err != nil { ... }
type EventStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	current Event
	err     error
	done    bool

	closeOnce sync.Once
	closeErr  error
}

// NewEventStream wraps an SSE body.
func NewEventStream(body io.ReadCloser) *EventStream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64<<10), maxEventSize)
	return &EventStream{body: body, scanner: sc}
}

// Next advances to the next event. It returns false at the end of the
// stream or on error.
func (s *EventStream) Next() bool {
	if s.done {
		return false
	}
	var data bytes.Buffer
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			if s.dispatch(data.Bytes()) {
				return true
			}
			data.Reset()
			if s.done {
				return false
			}
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := s.scanner.Err(); err != nil {
		s.fail(fmt.Errorf("read stream: %w", err))
		return false
	}
	// A final event may arrive without the trailing blank line.
	if data.Len() > 0 && s.dispatch(data.Bytes()) {
		s.done = true
		return true
	}
	s.done = true
	return false
}

// dispatch decodes one event payload. It returns true when an event is
// ready for the caller.
func (s *EventStream) dispatch(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	if string(trimmed) == "[DONE]" {
		s.done = true
		return false
	}
	var ev Event
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		s.fail(fmt.Errorf("decode event: %w", err))
		return false
	}
	if ev.MessageType == MessageTypeError {
		s.fail(&StreamError{Message: ev.Message, Detail: strings.Trim(string(ev.Detail), `"`)})
		return false
	}
	s.current = ev
	return true
}

func (s *EventStream) fail(err error) {
	s.err = err
	s.done = true
}

// Event returns the event read by the last successful Next.
func (s *EventStream) Event() Event { return s.current }

// Err returns the first error encountered, if any.
func (s *EventStream) Err() error { return s.err }

// Close releases the connection. It is safe to call more than once.
func (s *EventStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

package letta

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMalformedResponse is returned when provisioning succeeds at the HTTP
// level but the response carries no agent id.
var ErrMalformedResponse = errors.New("provisioning response malformed")

// APIError is a non-2xx response from the agent platform.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("letta api request failed: %d %s", e.Status, http.StatusText(e.Status))
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += " - " + body
	}
	return msg
}

// Retryable reports whether the failure is likely transient.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// ProvisioningError wraps a failed agent creation or deletion.
type ProvisioningError struct {
	Op      string
	AgentID string
	Err     error
}

func (e *ProvisioningError) Error() string {
	if e.AgentID != "" {
		return fmt.Sprintf("%s agent %s: %v", e.Op, e.AgentID, e.Err)
	}
	return fmt.Sprintf("%s agent: %v", e.Op, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// ConfigError reports an invalid client setting or memory variable payload.
// Key names the offending memory variable, when there is one.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

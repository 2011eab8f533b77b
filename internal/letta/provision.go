package letta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/haasonsaas/agentbridge/internal/backoff"
)

type createFromTemplateRequest struct {
	MemoryVariables map[string]string `json:"memory_variables,omitempty"`
}

type createFromTemplateResponse struct {
	Agents []struct {
		ID string `json:"id"`
	} `json:"agents"`
}

// CreateFromTemplate provisions a new agent from templateVersion and returns
// its id. memoryVariables is optional. A 429 response is retried with
// backoff; other failures are not, since the agent may already exist.
func (c *Client) CreateFromTemplate(ctx context.Context, templateVersion string, memoryVariables map[string]string) (string, error) {
	if strings.TrimSpace(templateVersion) == "" {
		return "", &ConfigError{Message: "template version is required"}
	}

	agentID, err := backoff.Retry(ctx, c.retry, c.maxAttempts, isRateLimited,
		func(ctx context.Context, attempt int) (string, error) {
			if attempt > 1 {
				c.logger.Debug("retrying agent creation", "attempt", attempt, "template", templateVersion)
			}
			return c.createOnce(ctx, templateVersion, memoryVariables)
		})
	if err != nil {
		return "", &ProvisioningError{Op: "create", Err: err}
	}
	c.logger.Debug("agent created", "agent_id", agentID, "template", templateVersion)
	return agentID, nil
}

func (c *Client) createOnce(ctx context.Context, templateVersion string, memoryVariables map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	path := "/v1/templates/" + escapePath(templateVersion) + "/agents"
	req, err := c.newRequest(ctx, http.MethodPost, path, createFromTemplateRequest{MemoryVariables: memoryVariables})
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out createFromTemplateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(out.Agents) == 0 || strings.TrimSpace(out.Agents[0].ID) == "" {
		return "", ErrMalformedResponse
	}
	return out.Agents[0].ID, nil
}

// Deprovision deletes an agent. Transient failures are retried with
// backoff.
func (c *Client) Deprovision(ctx context.Context, agentID string) error {
	if strings.TrimSpace(agentID) == "" {
		return &ProvisioningError{Op: "delete", Err: fmt.Errorf("agent id is required")}
	}

	_, err := backoff.Retry(ctx, c.retry, c.maxAttempts, isRetryable,
		func(ctx context.Context, _ int) (struct{}, error) {
			return struct{}{}, c.deleteOnce(ctx, agentID)
		})
	if err != nil {
		return &ProvisioningError{Op: "delete", AgentID: agentID, Err: err}
	}
	return nil
}

func (c *Client) deleteOnce(ctx context.Context, agentID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodDelete, "/v1/agents/"+url.PathEscape(agentID), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	return nil
}

func isRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

func isRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable()
}

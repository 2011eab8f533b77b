package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Deprovisioner tears down a remote agent.
type Deprovisioner interface {
	Deprovision(ctx context.Context, agentID string) error
}

// Store reads and writes bindings on top of a KV.
type Store struct {
	kv     KV
	remote Deprovisioner
	logger *slog.Logger
}

// NewStore creates a Store. remote may be nil, in which case Delete only
// removes the local record.
func NewStore(kv KV, remote Deprovisioner, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     kv,
		remote: remote,
		logger: logger.With("component", "sessions"),
	}
}

// Get returns the binding for key, or nil when there is none. A stored value
// that cannot be decoded is treated as missing.
func (s *Store) Get(ctx context.Context, key Key) (*Binding, error) {
	raw, ok, err := s.kv.Get(ctx, key.StorageKey())
	if err != nil {
		return nil, fmt.Errorf("get binding %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}

	var b Binding
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		s.logger.Warn("ignoring malformed binding", "key", key.String(), "error", err)
		return nil, nil
	}
	if strings.TrimSpace(b.AgentID) == "" {
		s.logger.Warn("ignoring binding without agent id", "key", key.String())
		return nil, nil
	}
	return &b, nil
}

// Put stores b under key, replacing whatever was there.
func (s *Store) Put(ctx context.Context, key Key, b Binding) error {
	b.ChatID = key.ChatID
	b.ThreadID = key.ThreadID
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode binding: %w", err)
	}
	if err := s.kv.Put(ctx, key.StorageKey(), string(data)); err != nil {
		return fmt.Errorf("put binding %s: %w", key, err)
	}
	return nil
}

// Delete removes the binding for key. The remote agent is deprovisioned
// first on a best-effort basis: a failure there is logged and the local
// record is removed anyway. When no binding exists nothing is called.
// It reports whether a binding was removed.
func (s *Store) Delete(ctx context.Context, key Key) (bool, error) {
	b, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}

	if s.remote != nil {
		if err := s.remote.Deprovision(ctx, b.AgentID); err != nil {
			s.logger.Warn("failed to deprovision agent",
				"key", key.String(),
				"agent_id", b.AgentID,
				"error", err)
		}
	}

	if err := s.kv.Delete(ctx, key.StorageKey()); err != nil {
		return false, fmt.Errorf("delete binding %s: %w", key, err)
	}
	return true, nil
}

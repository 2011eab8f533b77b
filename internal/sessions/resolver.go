package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Provisioner creates and tears down remote agents.
type Provisioner interface {
	Deprovisioner
	CreateFromTemplate(ctx context.Context, templateVersion string, memoryVariables map[string]string) (string, error)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// TemplateVersion is the template new agents are created from.
	TemplateVersion string
	// MemoryVariables seed every new agent. Optional.
	MemoryVariables map[string]string
	Logger          *slog.Logger
	// Locker defaults to a LocalLocker.
	Locker Locker
	// Now defaults to time.Now.
	Now func() time.Time
}

// Resolver hands out the agent for a conversation, creating one on first
// contact. Calls for the same conversation are serialized through the
// Locker so two concurrent first messages provision a single agent.
type Resolver struct {
	store    *Store
	remote   Provisioner
	template string
	vars     map[string]string
	locker   Locker
	logger   *slog.Logger
	now      func() time.Time
}

// NewResolver creates a Resolver over store using remote for provisioning.
func NewResolver(store *Store, remote Provisioner, cfg ResolverConfig) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if remote == nil {
		return nil, fmt.Errorf("provisioner is required")
	}
	if cfg.TemplateVersion == "" {
		return nil, fmt.Errorf("template version is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Locker == nil {
		cfg.Locker = NewLocalLocker()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{
		store:    store,
		remote:   remote,
		template: cfg.TemplateVersion,
		vars:     cfg.MemoryVariables,
		locker:   cfg.Locker,
		logger:   cfg.Logger.With("component", "resolver"),
		now:      cfg.Now,
	}, nil
}

// Resolve returns the agent bound to key. When there is no binding a new
// agent is provisioned and stored, and created is true.
func (r *Resolver) Resolve(ctx context.Context, key Key) (agentID string, created bool, err error) {
	if err := r.lock(ctx, key); err != nil {
		return "", false, err
	}
	defer r.locker.Unlock(key.StorageKey())

	b, err := r.store.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if b != nil {
		return b.AgentID, false, nil
	}

	agentID, err = r.create(ctx, key)
	if err != nil {
		return "", false, err
	}
	return agentID, true, nil
}

// Reset replaces the binding for key with a freshly provisioned agent. The
// previous agent is deprovisioned on a best-effort basis.
func (r *Resolver) Reset(ctx context.Context, key Key) (string, error) {
	if err := r.lock(ctx, key); err != nil {
		return "", err
	}
	defer r.locker.Unlock(key.StorageKey())

	if _, err := r.store.Delete(ctx, key); err != nil {
		return "", err
	}
	return r.create(ctx, key)
}

// Delete removes the binding for key and deprovisions its agent. It reports
// whether a binding existed.
func (r *Resolver) Delete(ctx context.Context, key Key) (bool, error) {
	if err := r.lock(ctx, key); err != nil {
		return false, err
	}
	defer r.locker.Unlock(key.StorageKey())
	return r.store.Delete(ctx, key)
}

// Lookup returns the current binding without creating one.
func (r *Resolver) Lookup(ctx context.Context, key Key) (*Binding, error) {
	return r.store.Get(ctx, key)
}

func (r *Resolver) lock(ctx context.Context, key Key) error {
	if err := r.locker.Lock(ctx, key.StorageKey()); err != nil {
		return fmt.Errorf("lock session %s: %w", key, err)
	}
	return nil
}

func (r *Resolver) create(ctx context.Context, key Key) (string, error) {
	agentID, err := r.remote.CreateFromTemplate(ctx, r.template, r.vars)
	if err != nil {
		return "", err
	}
	b := Binding{
		AgentID:         agentID,
		CreatedAt:       r.now().UTC(),
		TemplateVersion: r.template,
	}
	if err := r.store.Put(ctx, key, b); err != nil {
		return "", err
	}
	r.logger.Info("provisioned agent",
		"key", key.String(),
		"agent_id", agentID,
		"template", r.template)
	return agentID, nil
}

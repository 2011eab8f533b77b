package tools

import "context"

// Scope identifies the conversation a tool call runs in.
type Scope struct {
	ChatID   string
	ThreadID string
}

type scopeKey struct{}

// WithScope attaches the conversation scope to ctx.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope attached to ctx.
func ScopeFrom(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok && s.ChatID != ""
}

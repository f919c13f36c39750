package agent

import "context"

// debugCallbackKey is the context key for debug callbacks. The callback is
// carried through the context so the tool loop can surface tool invocations
// and LLM calls to whatever UI initiated the run.
type debugCallbackKey struct{}

// WithDebugCallback adds a DebugCallback to the context.
func WithDebugCallback(ctx context.Context, cb DebugCallback) context.Context {
	return context.WithValue(ctx, debugCallbackKey{}, cb)
}

// GetDebugCallback retrieves a DebugCallback from the context.
// Returns the callback and a bool indicating if it was set.
func GetDebugCallback(ctx context.Context) (DebugCallback, bool) {
	cb, ok := ctx.Value(debugCallbackKey{}).(DebugCallback)
	return cb, ok
}

// debugMessage sends a message to the debug callback in ctx, if one is set.
func debugMessage(ctx context.Context, msg string) {
	if cb, ok := GetDebugCallback(ctx); ok && cb != nil {
		cb(msg)
	}
}

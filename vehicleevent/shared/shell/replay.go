package shell

import "context"

type replayKey struct{}

// WithReplay marks ctx as part of a projection rebuild from the event log.
// Projections still store what they receive under such a context but tell no live subscriber about it.
func WithReplay(ctx context.Context) context.Context {
	return context.WithValue(ctx, replayKey{}, true)
}

// IsReplay reports whether ctx was marked by WithReplay.
func IsReplay(ctx context.Context) bool {
	replaying, _ := ctx.Value(replayKey{}).(bool)
	return replaying
}

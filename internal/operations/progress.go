package operations

import "context"

// progressFunc receives progress updates from inside a step's Execute.
type progressFunc func(percent int, message string)

type progressCtxKey struct{}

// withProgress attaches a progress callback to the context handed to a
// step. The manager installs one per step so updates land on the right
// StepState and broadcaster entry.
func withProgress(ctx context.Context, fn progressFunc) context.Context {
	return context.WithValue(ctx, progressCtxKey{}, fn)
}

// ReportProgress publishes step progress from inside Execute. Percent is
// clamped to [0, 100]. Outside a managed step it is a no-op, so steps can
// call it unconditionally.
func ReportProgress(ctx context.Context, percent int, message string) {
	fn, ok := ctx.Value(progressCtxKey{}).(progressFunc)
	if !ok {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	fn(percent, message)
}

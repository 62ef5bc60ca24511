// Package dryrun previews mutations without performing them.
package dryrun

import (
	"context"
	"fmt"
	"io"
)

type contextKey struct{}

// WithDryRun marks a context as dry-run.
func WithDryRun(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, contextKey{}, enabled)
}

// IsEnabled reports whether the context is in dry-run mode.
func IsEnabled(ctx context.Context) bool {
	v, ok := ctx.Value(contextKey{}).(bool)
	return ok && v
}

// Preview describes the mutation that would have been performed.
type Preview struct {
	Operation string
	Details   map[string]any
	Warnings  []string
}

// Write renders the preview.
func (p *Preview) Write(w io.Writer) {
	_, _ = fmt.Fprintf(w, "[dry-run] would %s\n", p.Operation)
	for k, v := range p.Details {
		_, _ = fmt.Fprintf(w, "  %s: %v\n", k, v)
	}
	for _, warning := range p.Warnings {
		_, _ = fmt.Fprintf(w, "  ! %s\n", warning)
	}
	_, _ = fmt.Fprintln(w, "no changes made")
}

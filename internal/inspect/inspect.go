// Package inspect produces the game and mod file checks shown in reports
// when FCX mode is on. Inspectors only read; they never fix files.
package inspect

import (
	"context"
	"strings"
)

// Inspector returns a pre-rendered block of report text.
type Inspector interface {
	Inspect(ctx context.Context) string
}

// Combined runs several inspectors and joins their output in order.
type Combined []Inspector

// Inspect implements Inspector.
func (c Combined) Inspect(ctx context.Context) string {
	var b strings.Builder
	for _, in := range c {
		if ctx.Err() != nil {
			break
		}
		b.WriteString(in.Inspect(ctx))
	}
	return b.String()
}

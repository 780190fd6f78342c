// Package mutator implements the typed write operations on workspace, notes
// and schedule documents.
//
// Every mutation follows the same protocol: exclusive advisory lock on the
// target file, read + normalize, mutate, atomic write, then exactly one
// event on the bus published while the lock is still held, so per-document
// event order matches commit order. A failed step leaves the file unchanged.
package mutator

import (
	"context"
	"time"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/bus"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// DefaultDeadline bounds a single mutation, lock wait included.
const DefaultDeadline = 10 * time.Second

// Mutator performs locked read-modify-write cycles on project documents.
type Mutator struct {
	res *resolver.Store
	bus *bus.Bus

	// now is injectable for time-based tests.
	now func() time.Time
}

// New creates a mutator over the given store and bus.
func New(res *resolver.Store, b *bus.Bus) *Mutator {
	return &Mutator{res: res, bus: b, now: time.Now}
}

// WithClock overrides the mutator's clock; test hook.
func (m *Mutator) WithClock(now func() time.Time) *Mutator {
	m.now = now
	return m
}

func (m *Mutator) stamp() string {
	return m.now().UTC().Format(time.RFC3339)
}

func (m *Mutator) publish(e models.Event) {
	if m.bus != nil {
		e.At = m.now().UTC()
		m.bus.Publish(e)
	}
}

func withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultDeadline)
}

// Package command implements the command-center side of the runtime: the
// awareness aggregator, system directives, the action dispatcher, and the
// per-node conversation buffer.
package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/bus"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fsjson"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// defaultDeadline bounds a directives mutation, lock wait included.
const defaultDeadline = 10 * time.Second

func withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultDeadline)
}

// Directives manages the fleet-level system directives file.
type Directives struct {
	res *resolver.Store
	bus *bus.Bus
	now func() time.Time
}

// NewDirectives creates a directive store.
func NewDirectives(res *resolver.Store, b *bus.Bus) *Directives {
	return &Directives{res: res, bus: b, now: time.Now}
}

// WithClock substitutes the time source. Test hook.
func (d *Directives) WithClock(now func() time.Time) *Directives {
	d.now = now
	return d
}

// List returns directives, newest updated first. Archived rows are excluded
// unless includeArchived is set.
func (d *Directives) List(includeArchived bool) ([]models.Directive, error) {
	var file models.DirectiveFile
	if err := fsjson.ReadJSON(d.res.DirectivesPath(), &file); err != nil {
		return nil, err
	}
	out := []models.Directive{}
	for _, dir := range file.Directives {
		if dir.ArchivedAt != "" && !includeArchived {
			continue
		}
		out = append(out, dir)
	}
	return out, nil
}

// Version returns the directive file's monotonic version counter.
func (d *Directives) Version() (int, error) {
	var file models.DirectiveFile
	if err := fsjson.ReadJSON(d.res.DirectivesPath(), &file); err != nil {
		return 0, err
	}
	return file.Version, nil
}

// Upsert creates or updates a directive. A missing id mints a UUID. Every
// successful mutation bumps the file version.
func (d *Directives) Upsert(ctx context.Context, dir models.Directive) (models.Directive, error) {
	if dir.Text == "" {
		return models.Directive{}, fault.New(fault.KindInvalidArgument, "directive text is required")
	}
	now := d.now().UTC().Format(time.RFC3339)

	var saved models.Directive
	err := d.update(ctx, func(file *models.DirectiveFile) error {
		if dir.ID != "" {
			for i := range file.Directives {
				if file.Directives[i].ID == dir.ID {
					ex := &file.Directives[i]
					ex.Text = dir.Text
					if dir.Scope != "" {
						ex.Scope = dir.Scope
					}
					if dir.UpdatedBy != "" {
						ex.UpdatedBy = dir.UpdatedBy
					}
					ex.ArchivedAt = ""
					ex.UpdatedAt = now
					saved = *ex
					return nil
				}
			}
			return fault.Newf(fault.KindNotFound, "directive %q not found", dir.ID)
		}
		dir.ID = uuid.New().String()
		dir.CreatedAt = now
		dir.UpdatedAt = now
		file.Directives = append(file.Directives, dir)
		saved = dir
		return nil
	})
	if err != nil {
		return models.Directive{}, err
	}
	return saved, nil
}

// Archive stamps archived_at on a directive. The row is retained so agents
// can see what was rescinded.
func (d *Directives) Archive(ctx context.Context, id string) (models.Directive, error) {
	if id == "" {
		return models.Directive{}, fault.New(fault.KindInvalidArgument, "directive id is required")
	}
	now := d.now().UTC().Format(time.RFC3339)

	var saved models.Directive
	err := d.update(ctx, func(file *models.DirectiveFile) error {
		for i := range file.Directives {
			if file.Directives[i].ID == id {
				file.Directives[i].ArchivedAt = now
				file.Directives[i].UpdatedAt = now
				saved = file.Directives[i]
				return nil
			}
		}
		return fault.Newf(fault.KindNotFound, "directive %q not found", id)
	})
	return saved, err
}

func (d *Directives) update(ctx context.Context, fn func(*models.DirectiveFile) error) error {
	path := d.res.DirectivesPath()
	ctx, cancel := withDeadline(ctx)
	defer cancel()
	return fsjson.WithLock(ctx, path, fsjson.Write, func() error {
		var file models.DirectiveFile
		if err := fsjson.ReadJSON(path, &file); err != nil {
			return err
		}
		if file.Directives == nil {
			file.Directives = []models.Directive{}
		}
		if err := fn(&file); err != nil {
			return err
		}
		file.Version++
		file.UpdatedAt = d.now().UTC().Format(time.RFC3339)
		if err := fsjson.WriteJSON(path, &file); err != nil {
			return err
		}
		// Publish before the lock drops so subscribers see directive events
		// in commit order.
		if d.bus != nil {
			d.bus.Publish(models.Event{Type: models.EventDirectiveChange})
		}
		return nil
	})
}

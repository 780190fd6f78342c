package mutator

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fsjson"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// GetProjectNotes reads and normalizes the project notes document. A missing
// file yields an empty, normalized document (general category present).
func (m *Mutator) GetProjectNotes(project string) (models.ProjectNotes, error) {
	var n models.ProjectNotes
	if err := fsjson.ReadJSON(m.res.NotesPath(project), &n); err != nil {
		return n, err
	}
	n.Normalize()
	return n, nil
}

// UpsertCategory creates or updates a note category. The id is derived from
// the name when absent; unknown colors clamp to slate with a warning.
func (m *Mutator) UpsertCategory(ctx context.Context, project string, cat models.NoteCategory) (models.ProjectNotes, error) {
	if cat.Name == "" && cat.ID == "" {
		return models.ProjectNotes{}, fault.New(fault.KindInvalidArgument, "category name is required")
	}
	if cat.ID == "" {
		cat.ID = resolver.ID(cat.Name)
	}
	if cat.Color != "" && !models.NoteColors[cat.Color] {
		log.Warn().Str("color", cat.Color).Msg("unknown category color, using slate")
		cat.Color = "slate"
	}

	var out models.ProjectNotes
	err := m.updateNotes(ctx, project, func(n *models.ProjectNotes) error {
		for i := range n.Categories {
			if n.Categories[i].ID == cat.ID {
				if cat.Name != "" {
					n.Categories[i].Name = cat.Name
				}
				if cat.Color != "" {
					n.Categories[i].Color = cat.Color
				}
				n.Categories[i].Order = cat.Order
				out = *n
				return nil
			}
		}
		if cat.Color == "" {
			cat.Color = "slate"
		}
		n.Categories = append(n.Categories, cat)
		out = *n
		return nil
	})
	return out, err
}

// AddOrUpdateNote upserts a note. A missing id mints a fresh UUID; updates
// match on id and refresh updated_at.
func (m *Mutator) AddOrUpdateNote(ctx context.Context, project string, note models.Note) (models.Note, error) {
	if note.Text == "" {
		return models.Note{}, fault.New(fault.KindInvalidArgument, "note text is required")
	}
	now := m.stamp()

	var saved models.Note
	err := m.updateNotes(ctx, project, func(n *models.ProjectNotes) error {
		if note.ID != "" {
			if i := n.FindNote(note.ID); i >= 0 {
				existing := &n.Notes[i]
				existing.Text = note.Text
				if note.CategoryID != "" {
					existing.CategoryID = note.CategoryID
				}
				if note.SourcePages != nil {
					existing.SourcePages = note.SourcePages
				}
				existing.UpdatedAt = now
				saved = *existing
				return nil
			}
			return fault.Newf(fault.KindNotFound, "note %q not found", note.ID)
		}
		note.ID = uuid.New().String()
		note.Status = "open"
		note.CreatedAt = now
		note.UpdatedAt = now
		n.Notes = append(n.Notes, note)
		saved = note
		return nil
	})
	return saved, err
}

// UpdateNoteState changes only status and/or pinned on an existing note.
func (m *Mutator) UpdateNoteState(ctx context.Context, project, noteID string, status *string, pinned *bool) (models.Note, error) {
	if noteID == "" {
		return models.Note{}, fault.New(fault.KindInvalidArgument, "note id is required")
	}
	if status != nil && !models.NoteStatuses[*status] {
		return models.Note{}, fault.Newf(fault.KindInvalidArgument, "status must be open or archived, got %q", *status)
	}

	var saved models.Note
	err := m.updateNotes(ctx, project, func(n *models.ProjectNotes) error {
		i := n.FindNote(noteID)
		if i < 0 {
			return fault.Newf(fault.KindNotFound, "note %q not found", noteID)
		}
		nt := &n.Notes[i]
		if status != nil {
			nt.Status = *status
		}
		if pinned != nil {
			nt.Pinned = *pinned
		}
		nt.UpdatedAt = m.stamp()
		saved = *nt
		return nil
	})
	return saved, err
}

func (m *Mutator) updateNotes(ctx context.Context, project string, fn func(*models.ProjectNotes) error) error {
	path := m.res.NotesPath(project)
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	return fsjson.WithLock(ctx, path, fsjson.Write, func() error {
		var n models.ProjectNotes
		if err := fsjson.ReadJSON(path, &n); err != nil {
			return err
		}
		n.Normalize()
		if err := fn(&n); err != nil {
			return err
		}
		n.UpdatedAt = m.stamp()
		n.Normalize()
		if err := fsjson.WriteJSON(path, &n); err != nil {
			return err
		}
		// Publish before the lock drops so subscribers see events for this
		// document in commit order.
		m.publish(models.Event{Type: models.EventNotesUpdate, Project: project})
		return nil
	})
}

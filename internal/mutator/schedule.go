package mutator

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fsjson"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// GetSchedule reads and normalizes the schedule document. A missing file
// yields an empty schedule.
func (m *Mutator) GetSchedule(project string) (models.Schedule, error) {
	var s models.Schedule
	if err := fsjson.ReadJSON(m.res.SchedulePath(project), &s); err != nil {
		return s, err
	}
	s.Normalize(m.now())
	return s, nil
}

// UpsertItem creates or updates a schedule item. Unknown type/status values
// are clamped to activity/pending with a warning rather than failing the
// call. A terminal status stamps closed_at; any non-terminal transition
// clears closed_at and close_reason.
func (m *Mutator) UpsertItem(ctx context.Context, project string, item models.ScheduleItem) (models.ScheduleItem, error) {
	if item.Title == "" && item.ID == "" {
		return models.ScheduleItem{}, fault.New(fault.KindInvalidArgument, "schedule item title is required")
	}
	if item.Type != "" && !models.ScheduleTypes[item.Type] {
		log.Warn().Str("type", item.Type).Msg("unknown schedule type, using activity")
		item.Type = "activity"
	}
	if item.Status != "" && !models.ScheduleStatuses[item.Status] {
		log.Warn().Str("status", item.Status).Msg("unknown schedule status, using pending")
		item.Status = "pending"
	}
	now := m.stamp()

	var saved models.ScheduleItem
	err := m.updateSchedule(ctx, project, func(s *models.Schedule) error {
		if item.ID != "" {
			if i := s.FindItem(item.ID); i >= 0 {
				ex := &s.Items[i]
				if item.Title != "" {
					ex.Title = item.Title
				}
				if item.Type != "" {
					ex.Type = item.Type
				}
				if item.Status != "" {
					ex.Status = item.Status
				}
				if item.DueDate != "" {
					ex.DueDate = item.DueDate
				}
				if item.Owner != "" {
					ex.Owner = item.Owner
				}
				if item.ActivityID != "" {
					ex.ActivityID = item.ActivityID
				}
				if item.Impact != "" {
					ex.Impact = item.Impact
				}
				if item.Notes != "" {
					ex.Notes = item.Notes
				}
				ex.UpdatedAt = now
				saved = *ex
				return nil
			}
			return fault.Newf(fault.KindNotFound, "schedule item %q not found", item.ID)
		}
		item.ID = uuid.New().String()
		if item.Type == "" {
			item.Type = "activity"
		}
		if item.Status == "" {
			item.Status = "pending"
		}
		item.CreatedAt = now
		item.UpdatedAt = now
		s.Items = append(s.Items, item)
		saved = item
		return nil
	})
	if err != nil {
		return models.ScheduleItem{}, err
	}
	return saved, nil
}

// SetConstraint records a constraint item with its impact; a convenience
// over UpsertItem that fixes type=constraint.
func (m *Mutator) SetConstraint(ctx context.Context, project string, item models.ScheduleItem) (models.ScheduleItem, error) {
	item.Type = "constraint"
	if item.Status == "" {
		item.Status = "blocked"
	}
	return m.UpsertItem(ctx, project, item)
}

// CloseItem transitions an item to done or cancelled and stamps closed_at.
func (m *Mutator) CloseItem(ctx context.Context, project, itemID, status, reason string) (models.ScheduleItem, error) {
	if itemID == "" {
		return models.ScheduleItem{}, fault.New(fault.KindInvalidArgument, "schedule item id is required")
	}
	if !models.TerminalStatus(status) {
		return models.ScheduleItem{}, fault.Newf(fault.KindInvalidArgument, "close status must be done or cancelled, got %q", status)
	}
	now := m.stamp()

	var saved models.ScheduleItem
	err := m.updateSchedule(ctx, project, func(s *models.Schedule) error {
		i := s.FindItem(itemID)
		if i < 0 {
			return fault.Newf(fault.KindNotFound, "schedule item %q not found", itemID)
		}
		it := &s.Items[i]
		it.Status = status
		it.ClosedAt = now
		it.CloseReason = reason
		it.UpdatedAt = now
		saved = *it
		return nil
	})
	return saved, err
}

func (m *Mutator) updateSchedule(ctx context.Context, project string, fn func(*models.Schedule) error) error {
	path := m.res.SchedulePath(project)
	ctx, cancel := withDeadline(ctx)
	defer cancel()

	return fsjson.WithLock(ctx, path, fsjson.Write, func() error {
		var s models.Schedule
		if err := fsjson.ReadJSON(path, &s); err != nil {
			return err
		}
		s.Normalize(m.now())
		if err := fn(&s); err != nil {
			return err
		}
		s.UpdatedAt = m.stamp()
		s.Normalize(m.now())
		if err := fsjson.WriteJSON(path, &s); err != nil {
			return err
		}
		// Publish before the lock drops so subscribers see events for this
		// document in commit order.
		m.publish(models.Event{Type: models.EventScheduleUpdate, Project: project})
		return nil
	})
}

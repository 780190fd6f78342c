package mutator

import (
	"sort"
	"time"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// unscheduledCap bounds the unscheduled list in a timeline response.
const unscheduledCap = 50

// ScheduleStatus summarizes the schedule by status and type.
type ScheduleStatus struct {
	Total    int            `json:"total"`
	Open     int            `json:"open"`
	Overdue  int            `json:"overdue"`
	ByStatus map[string]int `json:"by_status"`
	ByType   map[string]int `json:"by_type"`
}

// GetScheduleStatus computes counts over the schedule document.
func (m *Mutator) GetScheduleStatus(project string) (ScheduleStatus, error) {
	s, err := m.GetSchedule(project)
	if err != nil {
		return ScheduleStatus{}, err
	}
	st := ScheduleStatus{
		ByStatus: map[string]int{},
		ByType:   map[string]int{},
	}
	today := m.now().UTC().Format("2006-01-02")
	for _, it := range s.Items {
		st.Total++
		st.ByStatus[it.Status]++
		st.ByType[it.Type]++
		if !models.TerminalStatus(it.Status) {
			st.Open++
			if it.DueDate != "" && it.DueDate < today {
				st.Overdue++
			}
		}
	}
	return st, nil
}

// Timeline builds the month view for "YYYY-MM". Days are ordered date
// descending; items within a day keep their insertion order. Items whose
// due_date does not parse are returned under unscheduled, capped at 50.
func (m *Mutator) Timeline(project, month string, includeEmptyDays bool) (models.Timeline, error) {
	start, err := time.ParseInLocation("2006-01", month, time.UTC)
	if err != nil {
		return models.Timeline{}, fault.Newf(fault.KindInvalidArgument, "month must be YYYY-MM, got %q", month)
	}
	end := start.AddDate(0, 1, 0)

	s, err := m.GetSchedule(project)
	if err != nil {
		return models.Timeline{}, err
	}

	byDay := make(map[string][]models.ScheduleItem)
	unscheduled := []models.ScheduleItem{}
	for _, it := range s.Items {
		due, perr := time.ParseInLocation("2006-01-02", it.DueDate, time.UTC)
		if it.DueDate == "" || perr != nil {
			if len(unscheduled) < unscheduledCap {
				unscheduled = append(unscheduled, it)
			}
			continue
		}
		if due.Before(start) || !due.Before(end) {
			continue
		}
		key := due.Format("2006-01-02")
		byDay[key] = append(byDay[key], it)
	}

	today := m.now().UTC().Truncate(24 * time.Hour)
	tl := models.Timeline{Month: month, Days: []models.TimelineDay{}, Unscheduled: unscheduled}

	var dates []time.Time
	if includeEmptyDays {
		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
	} else {
		for key := range byDay {
			d, _ := time.ParseInLocation("2006-01-02", key, time.UTC)
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	for _, d := range dates {
		key := d.Format("2006-01-02")
		items := byDay[key]
		if items == nil {
			items = []models.ScheduleItem{}
		}
		ws := weekStart(d)
		tl.Days = append(tl.Days, models.TimelineDay{
			Date:      key,
			Label:     d.Format("Mon, Jan 2"),
			IsToday:   d.Equal(today),
			IsPast:    d.Before(today),
			IsFuture:  d.After(today),
			WeekStart: ws.Format("2006-01-02"),
			WeekLabel: "Week of " + ws.Format("Jan 2"),
			Items:     items,
		})
	}
	return tl, nil
}

// weekStart returns the Monday of d's week.
func weekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

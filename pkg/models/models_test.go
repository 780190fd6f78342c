package models

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
	"time"
)

func TestWorkspaceNormalizeIdempotent(t *testing.T) {
	ws := Workspace{
		Slug: "finishes",
		Pages: []WorkspacePage{{
			PageName:         "A101",
			SelectedPointers: []string{"r2", "r1", "r2", "r1"},
			CustomHighlights: []CustomHighlight{
				{ID: "good", BBox: BBox{X0: 0, Y0: 0, X1: 10, Y1: 10}},
				{ID: "inverted", BBox: BBox{X0: 10, Y0: 10, X1: 0, Y1: 0}},
				{ID: "nan", BBox: BBox{X0: math.NaN(), Y0: 0, X1: 1, Y1: 1}},
			},
		}},
	}
	ws.Normalize()

	p := ws.Pages[0]
	if !reflect.DeepEqual(p.SelectedPointers, []string{"r2", "r1"}) {
		t.Errorf("dedupe must preserve insertion order, got %v", p.SelectedPointers)
	}
	if len(p.CustomHighlights) != 1 || p.CustomHighlights[0].ID != "good" {
		t.Errorf("invalid highlights must be dropped, got %+v", p.CustomHighlights)
	}

	before, err := json.Marshal(ws)
	if err != nil {
		t.Fatal(err)
	}
	ws.Normalize()
	after, err := json.Marshal(ws)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Errorf("normalizing twice changed the document:\n%s\n%s", before, after)
	}
}

func TestBBoxValid(t *testing.T) {
	cases := []struct {
		b    BBox
		want bool
	}{
		{BBox{0, 0, 1, 1}, true},
		{BBox{1, 1, 0, 0}, false},
		{BBox{0, 0, 0, 1}, false},
		{BBox{math.Inf(1), 0, 1, 1}, false},
		{BBox{0, math.NaN(), 1, 1}, false},
	}
	for _, c := range cases {
		if got := c.b.Valid(); got != c.want {
			t.Errorf("Valid(%+v) = %v, want %v", c.b, got, c.want)
		}
	}
}

func TestProjectNotesNormalize(t *testing.T) {
	n := ProjectNotes{
		Categories: []NoteCategory{
			{ID: "rfi", Name: "RFIs", Color: "chartreuse", Order: 2},
			{ID: "field", Name: "Field", Color: "blue", Order: 1},
		},
		Notes: []Note{
			{ID: "n1", Text: "old", Status: "weird", CategoryID: "missing", UpdatedAt: "2026-01-01T00:00:00Z"},
			{ID: "n2", Text: "pinned", Pinned: true, Status: "open", CategoryID: "field", UpdatedAt: "2025-06-01T00:00:00Z"},
		},
	}
	n.Normalize()

	if n.Categories[len(n.Categories)-1].ID != "rfi" {
		t.Errorf("categories must sort by (order, name), got %+v", n.Categories)
	}
	var general *NoteCategory
	for i := range n.Categories {
		if n.Categories[i].ID == "general" {
			general = &n.Categories[i]
		}
		if !NoteColors[n.Categories[i].Color] {
			t.Errorf("color not clamped: %+v", n.Categories[i])
		}
	}
	if general == nil || general.Color != "slate" {
		t.Fatalf("general/slate category must exist, got %+v", n.Categories)
	}

	if n.Notes[0].ID != "n2" {
		t.Errorf("pinned notes sort first, got %v", n.Notes[0].ID)
	}
	if n.Notes[1].Status != "open" {
		t.Errorf("unknown status must clamp to open, got %q", n.Notes[1].Status)
	}
	if n.Notes[1].CategoryID != "general" {
		t.Errorf("orphaned category must fall back to general, got %q", n.Notes[1].CategoryID)
	}
}

func TestScheduleNormalizeClosedAt(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	s := Schedule{Items: []ScheduleItem{
		{ID: "a", Title: "pour slab", Type: "activity", Status: "done"},
		{ID: "b", Title: "reopened", Type: "task", Status: "pending", ClosedAt: "2026-01-01T00:00:00Z", CloseReason: "oops"},
		{ID: "c", Title: "mystery", Type: "banana", Status: "sideways"},
	}}
	s.Normalize(now)

	if s.Items[0].ClosedAt == "" {
		t.Error("terminal status must carry closed_at")
	}
	if s.Items[1].ClosedAt != "" || s.Items[1].CloseReason != "" {
		t.Errorf("non-terminal status must clear closed_at/close_reason, got %+v", s.Items[1])
	}
	if s.Items[2].Type != "activity" || s.Items[2].Status != "pending" {
		t.Errorf("unknown enums must clamp, got %+v", s.Items[2])
	}
}

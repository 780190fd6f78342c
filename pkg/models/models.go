// Package models defines the JSON documents that make up a Maestro knowledge
// store, plus the event frames broadcast by the runtime.
//
// Field names mirror the on-disk layout exactly: these structs are read from
// and written back to files the ingest pipeline also owns, so renaming a tag
// here is a wire-format change.
package models

import (
	"math"
	"sort"
	"time"
)

// ── Project ─────────────────────────────────────────────────

// Project is the metadata document at <project>/project.json.
type Project struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	CreatedAt string `json:"created_at,omitempty"`
}

// IndexRef is one page reference inside the search index.
type IndexRef struct {
	Page   string  `json:"page"`
	Weight float64 `json:"weight,omitempty"`
}

// Index is the derived search index at <project>/index.json.
type Index struct {
	Keywords  map[string][]IndexRef `json:"keywords,omitempty"`
	Materials map[string][]IndexRef `json:"materials,omitempty"`
	CrossRefs map[string][]string   `json:"cross_refs,omitempty"`
}

// ── Pages and regions ───────────────────────────────────────

// RegionStub is the sheet-level listing of a region inside pass1.json.
type RegionStub struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// Pass1 is the sheet-level analysis at <page>/pass1.json.
type Pass1 struct {
	PageName        string       `json:"page_name,omitempty"`
	Discipline      string       `json:"discipline,omitempty"`
	PageType        string       `json:"page_type,omitempty"`
	Regions         []RegionStub `json:"regions,omitempty"`
	CrossReferences []string     `json:"cross_references,omitempty"`
	SheetReflection string       `json:"sheet_reflection,omitempty"`
}

// Pass2 is the deep region analysis at <page>/pointers/<region>/pass2.json.
type Pass2 struct {
	RegionID          string   `json:"region_id,omitempty"`
	ContentMarkdown   string   `json:"content_markdown,omitempty"`
	Materials         []string `json:"materials,omitempty"`
	Dimensions        []string `json:"dimensions,omitempty"`
	Keynotes          []string `json:"keynotes,omitempty"`
	CrossReferences   []string `json:"cross_references,omitempty"`
	CoordinationNotes []string `json:"coordination_notes,omitempty"`
	Specifications    []string `json:"specifications,omitempty"`
}

// PageMeta is the loader's summary row for one page.
type PageMeta struct {
	Name        string `json:"page_name"`
	Discipline  string `json:"discipline,omitempty"`
	PageType    string `json:"page_type,omitempty"`
	RegionCount int    `json:"region_count"`
}

// CrossReferences pairs the outgoing and incoming references of a page.
type CrossReferences struct {
	Outgoing []string `json:"outgoing"`
	Incoming []string `json:"incoming"`
}

// SearchResult is one ranked page returned by the search operation.
type SearchResult struct {
	PageName   string   `json:"page_name"`
	Score      int      `json:"score"`
	Reasons    []string `json:"reasons"`
	Discipline string   `json:"discipline,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

// ── Workspace ───────────────────────────────────────────────

// BBox is a highlight rectangle in page coordinates.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Valid reports whether all corners are finite and the box has positive area.
func (b BBox) Valid() bool {
	for _, v := range []float64{b.X0, b.Y0, b.X1, b.Y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X0 < b.X1 && b.Y0 < b.Y1
}

// CustomHighlight is a user-drawn rectangle on a workspace page.
type CustomHighlight struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
	Color string `json:"color,omitempty"`
	BBox  BBox   `json:"bbox"`
}

// WorkspacePage is one curated page inside a workspace.
type WorkspacePage struct {
	PageName         string            `json:"page_name"`
	Description      string            `json:"description,omitempty"`
	SelectedPointers []string          `json:"selected_pointers"`
	Highlights       []string          `json:"highlights,omitempty"`
	CustomHighlights []CustomHighlight `json:"custom_highlights,omitempty"`
}

// GeneratedImage records an image produced into the workspace.
type GeneratedImage struct {
	Filename       string   `json:"filename"`
	Prompt         string   `json:"prompt,omitempty"`
	ReferencePages []string `json:"reference_pages,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty"`
}

// Workspace is the document at <project>/workspaces/<ws>/workspace.json.
type Workspace struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`

	Pages []WorkspacePage `json:"pages"`

	// Notes are the legacy per-workspace notes; retained alongside the
	// project-level notes document.
	Notes []string `json:"notes,omitempty"`

	GeneratedImages []GeneratedImage `json:"generated_images,omitempty"`
}

// Normalize canonicalizes a workspace in place: nil slices become empty,
// selected pointers are deduplicated preserving insertion order, and
// invalid custom highlights are dropped. Normalizing twice is a no-op.
func (w *Workspace) Normalize() {
	if w.Pages == nil {
		w.Pages = []WorkspacePage{}
	}
	for i := range w.Pages {
		p := &w.Pages[i]
		p.SelectedPointers = dedupe(p.SelectedPointers)
		if p.Highlights != nil {
			p.Highlights = dedupe(p.Highlights)
		}
		kept := p.CustomHighlights[:0]
		for _, h := range p.CustomHighlights {
			if h.BBox.Valid() {
				kept = append(kept, h)
			}
		}
		p.CustomHighlights = kept
	}
}

// FindPage returns the index of page name in Pages, or -1.
func (w *Workspace) FindPage(name string) int {
	for i := range w.Pages {
		if w.Pages[i].PageName == name {
			return i
		}
	}
	return -1
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ── Project notes ───────────────────────────────────────────

// NoteColors is the allowed category color set.
var NoteColors = map[string]bool{
	"slate": true, "blue": true, "green": true,
	"amber": true, "red": true, "purple": true,
}

// NoteStatuses is the allowed note status set.
var NoteStatuses = map[string]bool{"open": true, "archived": true}

// NoteCategory groups project notes.
type NoteCategory struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Order int    `json:"order"`
}

// NoteSource links a note back to the page it came from.
type NoteSource struct {
	PageName      string `json:"page_name"`
	WorkspaceSlug string `json:"workspace_slug,omitempty"`
}

// Note is one project-level note.
type Note struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	CategoryID  string       `json:"category_id"`
	SourcePages []NoteSource `json:"source_pages,omitempty"`
	Pinned      bool         `json:"pinned"`
	Status      string       `json:"status"`
	CreatedAt   string       `json:"created_at,omitempty"`
	UpdatedAt   string       `json:"updated_at,omitempty"`
}

// ProjectNotes is the document at <project>/notes/project_notes.json.
type ProjectNotes struct {
	Version    int            `json:"version"`
	UpdatedAt  string         `json:"updated_at,omitempty"`
	Categories []NoteCategory `json:"categories"`
	Notes      []Note         `json:"notes"`
}

// Normalize canonicalizes the notes document: the general/slate category
// always exists, unknown colors clamp to slate, unknown statuses to open,
// categories sort by (order, name) and notes by (pinned desc, updated_at desc).
func (n *ProjectNotes) Normalize() {
	if n.Version == 0 {
		n.Version = 1
	}
	if n.Categories == nil {
		n.Categories = []NoteCategory{}
	}
	if n.Notes == nil {
		n.Notes = []Note{}
	}

	hasGeneral := false
	for i := range n.Categories {
		c := &n.Categories[i]
		if !NoteColors[c.Color] {
			c.Color = "slate"
		}
		if c.ID == "general" {
			hasGeneral = true
		}
	}
	if !hasGeneral {
		n.Categories = append(n.Categories, NoteCategory{
			ID: "general", Name: "General", Color: "slate", Order: 0,
		})
	}

	known := make(map[string]bool, len(n.Categories))
	for _, c := range n.Categories {
		known[c.ID] = true
	}
	for i := range n.Notes {
		nt := &n.Notes[i]
		if nt.CategoryID == "" || !known[nt.CategoryID] {
			nt.CategoryID = "general"
		}
		if !NoteStatuses[nt.Status] {
			nt.Status = "open"
		}
	}

	sort.SliceStable(n.Categories, func(i, j int) bool {
		a, b := n.Categories[i], n.Categories[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Name < b.Name
	})
	sort.SliceStable(n.Notes, func(i, j int) bool {
		a, b := n.Notes[i], n.Notes[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		return a.UpdatedAt > b.UpdatedAt
	})
}

// FindNote returns the index of the note with id, or -1.
func (n *ProjectNotes) FindNote(id string) int {
	for i := range n.Notes {
		if n.Notes[i].ID == id {
			return i
		}
	}
	return -1
}

// ── Schedule ────────────────────────────────────────────────

// ScheduleTypes is the allowed item type set; unknown types clamp to activity.
var ScheduleTypes = map[string]bool{
	"activity": true, "milestone": true, "constraint": true,
	"inspection": true, "delivery": true, "task": true,
}

// ScheduleStatuses is the allowed status set; unknown statuses clamp to pending.
var ScheduleStatuses = map[string]bool{
	"pending": true, "in_progress": true, "blocked": true,
	"done": true, "cancelled": true,
}

// TerminalStatus reports whether status closes an item.
func TerminalStatus(status string) bool {
	return status == "done" || status == "cancelled"
}

// ScheduleItem is one row of the project schedule.
type ScheduleItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	DueDate     string `json:"due_date,omitempty"`
	Owner       string `json:"owner,omitempty"`
	ActivityID  string `json:"activity_id,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	ClosedAt    string `json:"closed_at,omitempty"`
	CloseReason string `json:"close_reason,omitempty"`
}

// Schedule is the document at <project>/schedule/maestro_schedule.json.
type Schedule struct {
	Version   int            `json:"version"`
	UpdatedAt string         `json:"updated_at,omitempty"`
	Items     []ScheduleItem `json:"items"`
}

// Normalize clamps enums and enforces the closed_at invariant: terminal
// statuses carry a closed_at, non-terminal statuses carry neither closed_at
// nor close_reason.
func (s *Schedule) Normalize(now time.Time) {
	if s.Version == 0 {
		s.Version = 1
	}
	if s.Items == nil {
		s.Items = []ScheduleItem{}
	}
	for i := range s.Items {
		it := &s.Items[i]
		if !ScheduleTypes[it.Type] {
			it.Type = "activity"
		}
		if !ScheduleStatuses[it.Status] {
			it.Status = "pending"
		}
		if TerminalStatus(it.Status) {
			if it.ClosedAt == "" {
				it.ClosedAt = now.UTC().Format(time.RFC3339)
			}
		} else {
			it.ClosedAt = ""
			it.CloseReason = ""
		}
	}
}

// FindItem returns the index of the item with id, or -1.
func (s *Schedule) FindItem(id string) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// TimelineDay is one row of the schedule timeline.
type TimelineDay struct {
	Date      string         `json:"date"`
	Label     string         `json:"label"`
	IsToday   bool           `json:"is_today"`
	IsPast    bool           `json:"is_past"`
	IsFuture  bool           `json:"is_future"`
	WeekStart string         `json:"week_start"`
	WeekLabel string         `json:"week_label"`
	Items     []ScheduleItem `json:"items"`
}

// Timeline is the month view returned by get_schedule_timeline.
type Timeline struct {
	Month       string         `json:"month"`
	Days        []TimelineDay  `json:"days"`
	Unscheduled []ScheduleItem `json:"unscheduled"`
}

// ── Control plane ───────────────────────────────────────────

// Registry roles.
const (
	RoleCommander = "commander"
	RoleProject   = "project"
)

// RegistryEntry is one agent row in the fleet registry.
type RegistryEntry struct {
	AgentID      string `json:"agent_id"`
	ProjectSlug  string `json:"project_slug,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	Role         string `json:"role"`
	RegisteredAt string `json:"registered_at,omitempty"`
	Archived     bool   `json:"archived"`
}

// FleetRegistry is the document at <fleet>/.command_center/fleet_registry.json.
type FleetRegistry struct {
	Agents []RegistryEntry `json:"agents"`
}

// Heartbeat loop states.
const (
	LoopIdle      = "idle"
	LoopComputing = "computing"
	LoopBlocked   = "blocked"
)

// Heartbeat is the freshness document at <project>/.command_center/heartbeat.json.
type Heartbeat struct {
	LoopState string             `json:"loop_state"`
	Summary   string             `json:"summary,omitempty"`
	UpdatedAt string             `json:"updated_at"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// NodeStatus is the per-agent row served by the command center.
type NodeStatus struct {
	AgentID       string             `json:"agent_id"`
	DisplayName   string             `json:"display_name,omitempty"`
	ProjectSlug   string             `json:"project_slug,omitempty"`
	LoopState     string             `json:"loop_state"`
	IsFresh       bool               `json:"is_fresh"`
	Summary       string             `json:"summary,omitempty"`
	LastMessageAt string             `json:"last_message_at,omitempty"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
}

// Directive is one system directive.
type Directive struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Scope      string `json:"scope,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
	ArchivedAt string `json:"archived_at,omitempty"`
	UpdatedBy  string `json:"updated_by,omitempty"`
}

// DirectiveFile is the document at <fleet>/.command_center/system_directives.json.
// Version is a monotonic counter bumped on every successful mutation.
type DirectiveFile struct {
	Version    int         `json:"version"`
	UpdatedAt  string      `json:"updated_at,omitempty"`
	Directives []Directive `json:"directives"`
}

// InstallState is written by the installer CLI at ~/.maestro-solo/install.json.
type InstallState struct {
	ActiveProjectSlug string   `json:"active_project_slug,omitempty"`
	ActiveProjectName string   `json:"active_project_name,omitempty"`
	StoreRoot         string   `json:"store_root,omitempty"`
	AwarenessURLs     []string `json:"awareness_urls,omitempty"`
}

// ── Events ──────────────────────────────────────────────────

// EventType names a store-change event. The values double as WebSocket
// frame types; clients ignore types they do not know.
type EventType string

const (
	EventProjectAdded    EventType = "project_added"
	EventProjectRemoved  EventType = "project_removed"
	EventPageAdded       EventType = "page_added"
	EventPageUpdated     EventType = "page_updated"
	EventPageImageReady  EventType = "page_image_ready"
	EventRegionComplete  EventType = "region_complete"
	EventWorkspaceUpdate EventType = "workspace_updated"
	EventScheduleUpdate  EventType = "schedule_updated"
	EventNotesUpdate     EventType = "notes_updated"
	EventHeartbeat       EventType = "heartbeat"
	EventDirectiveChange EventType = "directive_changed"
	EventRegistryUpdate  EventType = "fleet_registry_updated"
	EventActionProgress  EventType = "action_progress"
)

// Event is one store-change notification on the bus and the wire.
type Event struct {
	Type      EventType `json:"type"`
	Project   string    `json:"project,omitempty"`
	Page      string    `json:"page,omitempty"`
	Region    string    `json:"region,omitempty"`
	Workspace string    `json:"workspace,omitempty"`
	Directive string    `json:"directive_id,omitempty"`
	Handle    string    `json:"handle,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

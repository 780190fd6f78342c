package tools

import (
	"context"
	"fmt"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/knowledge"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/mutator"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// Op categories.
const (
	CategoryProject   = "project"
	CategoryKnowledge = "knowledge"
	CategoryWorkspace = "workspace"
	CategoryNotes     = "notes"
	CategorySchedule  = "schedule"
)

// NewRegistry builds the full op set over the given loader and mutator.
// baseURL is the externally reachable address advertised by get_access_urls.
func NewRegistry(loader *knowledge.Loader, mut *mutator.Mutator, baseURL string) *Registry {
	r := &Registry{ops: make(map[string]*op)}

	pageParam := ParamSpec{Name: "page", Type: TypeString, Required: true, Description: "page name or fuzzy token"}
	wsParam := ParamSpec{Name: "workspace", Type: TypeString, Required: true, Description: "workspace slug"}

	// ── Project context ─────────────────────────────────

	r.register(OpSpec{
		Name: "project_context", Category: CategoryProject,
		Description: "Project metadata plus page and workspace counts.",
	}, func(_ context.Context, project string, _ Args) (any, error) {
		p, err := loader.GetProject(project)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"project":    p,
			"pages":      loader.CountPages(project),
			"workspaces": loader.CountWorkspaces(project),
		}, nil
	})

	r.register(OpSpec{
		Name: "get_access_urls", Category: CategoryProject,
		Description: "URLs where the workspace UI and API are reachable.",
	}, func(_ context.Context, project string, _ Args) (any, error) {
		urls := []string{
			fmt.Sprintf("%s/%s", baseURL, project),
			fmt.Sprintf("%s/%s/api/project", baseURL, project),
		}
		if st, err := resolver.LoadInstallState(); err == nil {
			urls = append(urls, st.AwarenessURLs...)
		}
		return map[string]any{"urls": urls}, nil
	})

	// ── Knowledge ───────────────────────────────────────

	r.register(OpSpec{
		Name: "list_pages", Category: CategoryKnowledge,
		Description: "Pages of the project, optionally filtered by discipline.",
		Params: []ParamSpec{
			{Name: "discipline", Type: TypeString},
		},
	}, func(_ context.Context, project string, args Args) (any, error) {
		return loader.ListPages(project, args.Str("discipline"))
	})

	r.register(OpSpec{
		Name: "search", Category: CategoryKnowledge,
		Description: "Rank pages against a query using the derived index.",
		Params: []ParamSpec{
			{Name: "query", Type: TypeString, Required: true},
			{Name: "limit", Type: TypeInt},
		},
	}, func(_ context.Context, project string, args Args) (any, error) {
		return loader.Search(project, args.Str("query"), args.Int("limit"))
	})

	r.register(OpSpec{
		Name: "get_sheet_summary", Category: CategoryKnowledge,
		Description: "Sheet-level analysis of one page.",
		Params:      []ParamSpec{pageParam},
	}, func(_ context.Context, project string, args Args) (any, error) {
		return loader.LoadPass1(project, args.Str("page"))
	})

	r.register(OpSpec{
		Name: "list_regions", Category: CategoryKnowledge,
		Description: "Region stubs declared by a page.",
		Params:      []ParamSpec{pageParam},
	}, func(_ context.Context, project string, args Args) (any, error) {
		return loader.ListRegions(project, args.Str("page"))
	})

	r.register(OpSpec{
		Name: "get_region_detail", Category: CategoryKnowledge,
		Description: "Deep detail for one region of a page.",
		Params: []ParamSpec{
			pageParam,
			{Name: "region", Type: TypeString, Required: true},
		},
	}, func(_ context.Context, project string, args Args) (any, error) {
		return loader.LoadPass2(project, args.Str("page"), args.Str("region"))
	})

	r.register(OpSpec{
		Name: "find_cross_references", Category: CategoryKnowledge,
		Description: "Outgoing and incoming sheet references for a page.",
		Params:      []ParamSpec{pageParam},
	}, func(_ context.Context, project string, args Args) (any, error) {
		return loader.FindCrossReferences(project, args.Str("page"))
	})

	// ── Workspaces ──────────────────────────────────────

	r.register(OpSpec{
		Name: "list_workspaces", Category: CategoryWorkspace,
		Description: "All workspaces of the project.",
	}, func(_ context.Context, project string, _ Args) (any, error) {
		return mut.ListWorkspaces(project)
	})

	r.register(OpSpec{
		Name: "get_workspace", Category: CategoryWorkspace,
		Description: "One workspace document.",
		Params:      []ParamSpec{wsParam},
	}, func(_ context.Context, project string, args Args) (any, error) {
		return mut.GetWorkspace(project, args.Str("workspace"))
	})

	r.register(OpSpec{
		Name: "create_workspace", Category: CategoryWorkspace,
		Description: "Create a workspace, or return the existing one with that title.",
		Params: []ParamSpec{
			{Name: "title", Type: TypeString, Required: true},
			{Name: "description", Type: TypeString},
		},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		ws, created, err := mut.CreateOrGetWorkspace(ctx, project, args.Str("title"), args.Str("description"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"workspace": ws, "created": created}, nil
	})

	r.register(OpSpec{
		Name: "add_page", Category: CategoryWorkspace,
		Description: "Add a page to a workspace. Adding twice is a no-op.",
		Params: []ParamSpec{
			wsParam, pageParam,
			{Name: "description", Type: TypeString},
		},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		ws, added, err := mut.AddPage(ctx, project, args.Str("workspace"), args.Str("page"), args.Str("description"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"workspace": ws, "added": added}, nil
	})

	r.register(OpSpec{
		Name: "remove_page", Category: CategoryWorkspace,
		Description: "Remove a page from a workspace.",
		Params:      []ParamSpec{wsParam, pageParam},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		return mut.RemovePage(ctx, project, args.Str("workspace"), args.Str("page"))
	})

	r.register(OpSpec{
		Name: "select_pointers", Category: CategoryWorkspace,
		Description: "Add region ids to a workspace page's selection.",
		Params: []ParamSpec{
			wsParam, pageParam,
			{Name: "regions", Type: TypeList, Required: true},
		},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		return mut.SelectPointers(ctx, project, args.Str("workspace"), args.Str("page"), args.StrList("regions"))
	})

	r.register(OpSpec{
		Name: "deselect_pointers", Category: CategoryWorkspace,
		Description: "Remove region ids from a workspace page's selection.",
		Params: []ParamSpec{
			wsParam, pageParam,
			{Name: "regions", Type: TypeList, Required: true},
		},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		return mut.DeselectPointers(ctx, project, args.Str("workspace"), args.Str("page"), args.StrList("regions"))
	})

	r.register(OpSpec{
		Name: "add_description", Category: CategoryWorkspace,
		Description: "Set the description of a workspace page.",
		Params: []ParamSpec{
			wsParam, pageParam,
			{Name: "description", Type: TypeString, Required: true},
		},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		return mut.SetPageDescription(ctx, project, args.Str("workspace"), args.Str("page"), args.Str("description"))
	})

	r.register(OpSpec{
		Name: "set_custom_highlight", Category: CategoryWorkspace,
		Description: "Add a drawn rectangle to a workspace page.",
		Params: []ParamSpec{
			wsParam, pageParam,
			{Name: "bbox", Type: TypeObject, Required: true, Description: "{x0,y0,x1,y1} in page coordinates"},
			{Name: "label", Type: TypeString},
			{Name: "color", Type: TypeString},
		},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		h := models.CustomHighlight{
			Label: args.Str("label"),
			Color: args.Str("color"),
			BBox:  bboxFrom(args.Object("bbox")),
		}
		return mut.AddCustomHighlight(ctx, project, args.Str("workspace"), args.Str("page"), h)
	})

	r.register(OpSpec{
		Name: "clear_custom_highlights", Category: CategoryWorkspace,
		Description: "Remove all drawn rectangles from a workspace page.",
		Params:      []ParamSpec{wsParam, pageParam},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		return mut.ClearCustomHighlights(ctx, project, args.Str("workspace"), args.Str("page"))
	})

	// ── Notes ───────────────────────────────────────────

	r.register(OpSpec{
		Name: "get_project_notes", Category: CategoryNotes,
		Description: "The project notes document, normalized.",
	}, func(_ context.Context, project string, _ Args) (any, error) {
		return mut.GetProjectNotes(project)
	})

	r.register(OpSpec{
		Name: "upsert_note_category", Category: CategoryNotes,
		Description: "Create or update a note category.",
		Params: []ParamSpec{
			{Name: "name", Type: TypeString, Required: true},
			{Name: "color", Type: TypeString},
			{Name: "order", Type: TypeInt},
		},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		return mut.UpsertCategory(ctx, project, models.NoteCategory{
			Name:  args.Str("name"),
			Color: args.Str("color"),
			Order: args.Int("order"),
		})
	})

	r.register(OpSpec{
		Name: "add_note", Category: CategoryNotes,
		Description: "Add a note, or update one by id.",
		Params: []ParamSpec{
			{Name: "text", Type: TypeString, Required: true},
			{Name: "id", Type: TypeString},
			{Name: "category", Type: TypeString},
			{Name: "source_pages", Type: TypeList},
		},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		note := models.Note{
			ID:         args.Str("id"),
			Text:       args.Str("text"),
			CategoryID: args.Str("category"),
		}
		for _, p := range args.StrList("source_pages") {
			note.SourcePages = append(note.SourcePages, models.NoteSource{PageName: p})
		}
		return mut.AddOrUpdateNote(ctx, project, note)
	})

	r.register(OpSpec{
		Name: "update_note_state", Category: CategoryNotes,
		Description: "Change a note's status or pinned flag.",
		Params: []ParamSpec{
			{Name: "id", Type: TypeString, Required: true},
			{Name: "status", Type: TypeString, Enum: []string{"open", "archived"}},
			{Name: "pinned", Type: TypeBool},
		},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		var status *string
		if s, ok := args["status"].(string); ok {
			status = &s
		}
		var pinned *bool
		if b, ok := args["pinned"].(bool); ok {
			pinned = &b
		}
		return mut.UpdateNoteState(ctx, project, args.Str("id"), status, pinned)
	})

	// ── Schedule ────────────────────────────────────────

	r.register(OpSpec{
		Name: "get_schedule_status", Category: CategorySchedule,
		Description: "Counts of schedule items by status and type.",
	}, func(_ context.Context, project string, _ Args) (any, error) {
		return mut.GetScheduleStatus(project)
	})

	r.register(OpSpec{
		Name: "get_schedule_timeline", Category: CategorySchedule,
		Description: "Month view of the schedule, days date-descending.",
		Params: []ParamSpec{
			{Name: "month", Type: TypeString, Required: true, Description: "YYYY-MM"},
			{Name: "include_empty_days", Type: TypeBool},
		},
	}, func(_ context.Context, project string, args Args) (any, error) {
		return mut.Timeline(project, args.Str("month"), args.Bool("include_empty_days"))
	})

	r.register(OpSpec{
		Name: "list_schedule_items", Category: CategorySchedule,
		Description: "All schedule items, normalized.",
	}, func(_ context.Context, project string, _ Args) (any, error) {
		s, err := mut.GetSchedule(project)
		if err != nil {
			return nil, err
		}
		return s.Items, nil
	})

	r.register(OpSpec{
		Name: "upsert_schedule_item", Category: CategorySchedule,
		Description: "Create or update a schedule item.",
		Params: []ParamSpec{
			{Name: "title", Type: TypeString},
			{Name: "id", Type: TypeString},
			{Name: "type", Type: TypeString},
			{Name: "status", Type: TypeString},
			{Name: "due_date", Type: TypeString, Description: "YYYY-MM-DD"},
			{Name: "owner", Type: TypeString},
			{Name: "activity_id", Type: TypeString},
			{Name: "impact", Type: TypeString},
			{Name: "notes", Type: TypeString},
		},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		return mut.UpsertItem(ctx, project, scheduleItemFrom(args))
	})

	r.register(OpSpec{
		Name: "set_schedule_constraint", Category: CategorySchedule,
		Description: "Record a constraint with its impact.",
		Params: []ParamSpec{
			{Name: "title", Type: TypeString, Required: true},
			{Name: "impact", Type: TypeString},
			{Name: "due_date", Type: TypeString},
			{Name: "owner", Type: TypeString},
			{Name: "notes", Type: TypeString},
		},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		return mut.SetConstraint(ctx, project, scheduleItemFrom(args))
	})

	r.register(OpSpec{
		Name: "close_schedule_item", Category: CategorySchedule,
		Description: "Close an item as done or cancelled.",
		Params: []ParamSpec{
			{Name: "id", Type: TypeString, Required: true},
			{Name: "status", Type: TypeString, Required: true, Enum: []string{"done", "cancelled"}},
			{Name: "reason", Type: TypeString},
		},
	}, func(ctx context.Context, project string, args Args) (any, error) {
		return mut.CloseItem(ctx, project, args.Str("id"), args.Str("status"), args.Str("reason"))
	})

	return r
}

func scheduleItemFrom(args Args) models.ScheduleItem {
	return models.ScheduleItem{
		ID:         args.Str("id"),
		Title:      args.Str("title"),
		Type:       args.Str("type"),
		Status:     args.Str("status"),
		DueDate:    args.Str("due_date"),
		Owner:      args.Str("owner"),
		ActivityID: args.Str("activity_id"),
		Impact:     args.Str("impact"),
		Notes:      args.Str("notes"),
	}
}

func bboxFrom(m map[string]any) models.BBox {
	f := func(key string) float64 {
		v, _ := m[key].(float64)
		return v
	}
	return models.BBox{X0: f("x0"), Y0: f("y0"), X1: f("x1"), Y1: f("y1")}
}

package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fsjson"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// fixtureStore builds a multi-project store with one project and two pages.
func fixtureStore(t *testing.T) (string, *Loader) {
	t.Helper()
	root := t.TempDir()
	p := filepath.Join(root, "riverside")
	writeFile(t, filepath.Join(p, "project.json"), `{"name":"Riverside","slug":"riverside"}`)
	writeFile(t, filepath.Join(p, "index.json"), `{
		"keywords": {"waterproofing": [{"page":"A101_Floor_Plan_p001","weight":1}]},
		"materials": {"membrane": [{"page":"A111_Floor_Finish_Plan_p001"}]}
	}`)
	writeFile(t, filepath.Join(p, "pages", "A101_Floor_Plan_p001", "pass1.json"), `{
		"page_name":"A101_Floor_Plan_p001","discipline":"Architectural","page_type":"plan",
		"regions":[{"id":"r1","label":"north wing"},{"id":"r2","label":"south wing"}],
		"cross_references":["A111"],
		"sheet_reflection":"Ground floor plan with waterproofing callouts at the loading dock."
	}`)
	writeFile(t, filepath.Join(p, "pages", "A111_Floor_Finish_Plan_p001", "pass1.json"), `{
		"page_name":"A111_Floor_Finish_Plan_p001","discipline":"Architectural","page_type":"plan",
		"regions":[{"id":"r1","label":"finish schedule"}],
		"sheet_reflection":"Finish plan referencing membrane flooring."
	}`)
	writeFile(t, filepath.Join(p, "pages", "A101_Floor_Plan_p001", "pointers", "r1", "pass2.json"), `{
		"region_id":"r1","content_markdown":"north wing detail",
		"materials":["membrane"],"keynotes":["K1"]
	}`)
	return root, NewLoader(resolver.New(root))
}

func TestListProjects(t *testing.T) {
	_, l := fixtureStore(t)
	projects, err := l.ListProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 || projects[0].Slug != "riverside" {
		t.Fatalf("projects = %+v", projects)
	}
}

func TestGetProjectNotAProject(t *testing.T) {
	_, l := fixtureStore(t)
	_, err := l.GetProject("nope")
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func TestListPagesSkipsMissingPass1(t *testing.T) {
	root, l := fixtureStore(t)
	// A bare page directory without pass1.json is skipped, not an error.
	if err := os.MkdirAll(filepath.Join(root, "riverside", "pages", "Z999_Empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	pages, err := l.ListPages("riverside", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("want 2 pages, got %+v", pages)
	}
	if pages[0].RegionCount != 2 {
		t.Errorf("region count = %d, want 2", pages[0].RegionCount)
	}
}

func TestListPagesDisciplineFilter(t *testing.T) {
	_, l := fixtureStore(t)
	pages, err := l.ListPages("riverside", "structural")
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 0 {
		t.Errorf("filter mismatch should yield empty, got %+v", pages)
	}
	pages, err = l.ListPages("riverside", "ARCHITECTURAL")
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Errorf("filter is case-insensitive, got %+v", pages)
	}
}

func TestLoadPass1FuzzyToken(t *testing.T) {
	_, l := fixtureStore(t)
	p1, err := l.LoadPass1("riverside", "a101")
	if err != nil {
		t.Fatal(err)
	}
	if p1.PageName != "A101_Floor_Plan_p001" {
		t.Errorf("fuzzy resolution failed, got %q", p1.PageName)
	}
}

func TestLoadPass2(t *testing.T) {
	_, l := fixtureStore(t)
	p2, err := l.LoadPass2("riverside", "A101", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if p2.ContentMarkdown != "north wing detail" {
		t.Errorf("pass2 = %+v", p2)
	}
	if _, err := l.LoadPass2("riverside", "A101", "r99"); !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("missing region should be NotFound, got %v", err)
	}
}

func TestFindCrossReferences(t *testing.T) {
	_, l := fixtureStore(t)
	refs, err := l.FindCrossReferences("riverside", "A111")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs.Incoming) != 1 || refs.Incoming[0] != "A101_Floor_Plan_p001" {
		t.Errorf("incoming = %v", refs.Incoming)
	}
	if len(refs.Outgoing) != 0 {
		t.Errorf("outgoing = %v", refs.Outgoing)
	}
}

func TestSearchKeywordHit(t *testing.T) {
	_, l := fixtureStore(t)
	results, err := l.Search("riverside", "waterproofing", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("want exactly one result, got %+v", results)
	}
	r := results[0]
	if r.PageName != "A101_Floor_Plan_p001" || r.Score != 3 {
		t.Errorf("got %+v, want A101 with score 3", r)
	}
	if !reflect.DeepEqual(r.Reasons, []string{"keyword:waterproofing"}) {
		t.Errorf("reasons = %v", r.Reasons)
	}
	if r.Discipline != "Architectural" || r.Summary == "" {
		t.Errorf("missing attachment fields: %+v", r)
	}
}

func TestSearchOrderingDeterministic(t *testing.T) {
	_, l := fixtureStore(t)
	// Both pages hit on page name (+5); the tie breaks lexicographically.
	first, err := l.Search("riverside", "floor", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("want both pages, got %+v", first)
	}
	if first[0].PageName != "A101_Floor_Plan_p001" || first[0].Score != 5 {
		t.Errorf("unexpected winner: %+v", first[0])
	}
	for i := 0; i < 5; i++ {
		again, err := l.Search("riverside", "floor", 10)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("search order unstable on run %d:\n%+v\n%+v", i, first, again)
		}
	}
}

func TestSearchNewHighScoringPageReorders(t *testing.T) {
	root, l := fixtureStore(t)
	before, err := l.Search("riverside", "floor", 10)
	if err != nil {
		t.Fatal(err)
	}
	// A page whose name also matches, plus a keyword hit, outranks the rest.
	writeFile(t, filepath.Join(root, "riverside", "pages", "A001_Floor_Index_p001", "pass1.json"),
		`{"page_name":"A001_Floor_Index_p001","discipline":"Architectural"}`)
	writeFile(t, filepath.Join(root, "riverside", "index.json"), `{
		"keywords": {"floor drains": [{"page":"A001_Floor_Index_p001"}]},
		"materials": {"membrane": [{"page":"A111_Floor_Finish_Plan_p001"}]}
	}`)
	after, err := l.Search("riverside", "floor", 10)
	if err != nil {
		t.Fatal(err)
	}
	if after[0].PageName != "A001_Floor_Index_p001" || after[0].Score != 8 {
		t.Errorf("new page must lead with 5+3=8, got %+v", after[0])
	}
	if len(after) != len(before)+1 {
		t.Errorf("result count: before %d after %d", len(before), len(after))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	_, l := fixtureStore(t)
	results, err := l.Search("riverside", "   ", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("blank query returns empty, got %+v", results)
	}
}

func TestSearchTieBreakByPageName(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "p")
	writeFile(t, filepath.Join(p, "project.json"), `{"name":"P","slug":"p"}`)
	for i := 3; i >= 1; i-- {
		writeFile(t, filepath.Join(p, "pages", fmt.Sprintf("B%d_Detail", i), "pass1.json"), `{}`)
	}
	l := NewLoader(resolver.New(root))
	results, err := l.Search("p", "detail", 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"B1_Detail", "B2_Detail", "B3_Detail"}
	for i, r := range results {
		if r.PageName != want[i] {
			t.Fatalf("tie break order wrong: %+v", results)
		}
	}
}

func TestSearchHonorsLargeLimit(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "p")
	writeFile(t, filepath.Join(p, "project.json"), `{"name":"P","slug":"p"}`)
	for i := 0; i < 120; i++ {
		writeFile(t, filepath.Join(p, "pages", fmt.Sprintf("C%03d_Detail", i), "pass1.json"), `{}`)
	}
	l := NewLoader(resolver.New(root))
	results, err := l.Search("p", "detail", 120)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 120 {
		t.Fatalf("limit must be taken as given, got %d results", len(results))
	}
}

func TestSummaryTruncatesOnRuneBoundary(t *testing.T) {
	// The 'é' starts at byte 379 and would be split by a byte cut at 380.
	long := strings.Repeat("a", 379) + "é and more"
	got := truncate(long, 380)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated summary is not valid UTF-8")
	}
	if len(got) != 379 {
		t.Errorf("cut must back off to the rune boundary, got %d bytes", len(got))
	}
	if truncate("short", 380) != "short" {
		t.Error("short strings pass through unchanged")
	}
}

func TestLoadIndexSharedRead(t *testing.T) {
	root, l := fixtureStore(t)
	path := filepath.Join(root, "riverside", "index.json")
	// A concurrent shared holder must not block the index read.
	err := fsjson.WithLock(context.Background(), path, fsjson.Read, func() error {
		idx, err := l.LoadIndex("riverside")
		if err != nil {
			return err
		}
		if len(idx.Keywords) != 1 {
			t.Errorf("index = %+v", idx)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

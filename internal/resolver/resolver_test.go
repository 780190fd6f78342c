package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
)

func TestSlugAndID(t *testing.T) {
	cases := []struct {
		in   string
		slug string
		id   string
	}{
		{"Riverside Medical Tower", "riverside-medical-tower", "riverside_medical_tower"},
		{"  A101 - Floor Plan  ", "a101-floor-plan", "a101_floor_plan"},
		{"Café Überbau", "cafe-uberbau", "cafe_uberbau"},
		{"UPPER___case", "upper-case", "upper_case"},
		{"---", "", ""},
		{"", "", ""},
	}
	for _, c := range cases {
		if got := Slug(c.in); got != c.slug {
			t.Errorf("Slug(%q) = %q, want %q", c.in, got, c.slug)
		}
		if got := ID(c.in); got != c.id {
			t.Errorf("ID(%q) = %q, want %q", c.in, got, c.id)
		}
	}
}

func TestResolveAgainst(t *testing.T) {
	pages := []string{
		"A101_Floor_Plan_p001",
		"A111_Floor_Finish_Plan_p001",
		"S201_Framing_Plan_p001",
	}
	cases := []struct {
		token string
		want  string
	}{
		{"A101_Floor_Plan_p001", "A101_Floor_Plan_p001"}, // exact
		{"A101", "A101_Floor_Plan_p001"},                 // prefix
		{"a101 floor", "A101_Floor_Plan_p001"},           // normalized prefix
		{"framing", "S201_Framing_Plan_p001"},            // substring
		{"floor", "A101_Floor_Plan_p001"},                // substring tie: lexicographic first
		{"A1", "A101_Floor_Plan_p001"},                   // prefix tie: lexicographic first
	}
	for _, c := range cases {
		got, err := ResolveAgainst(pages, c.token)
		if err != nil {
			t.Errorf("ResolveAgainst(%q) errored: %v", c.token, err)
			continue
		}
		if got != c.want {
			t.Errorf("ResolveAgainst(%q) = %q, want %q", c.token, got, c.want)
		}
	}
}

func TestResolveIdempotent(t *testing.T) {
	pages := []string{"A101_Floor_Plan_p001", "A111_Floor_Finish_Plan_p001"}
	first, err := ResolveAgainst(pages, "floor")
	if err != nil {
		t.Fatal(err)
	}
	second, err := ResolveAgainst(pages, first)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("resolution not idempotent: %q then %q", first, second)
	}
}

func TestResolveMissCarriesCandidates(t *testing.T) {
	pages := []string{"A101", "A102", "A103", "A104", "A105", "A106", "A107"}
	_, err := ResolveAgainst(pages, "zzz")
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
	detail, ok := fault.DetailOf(err).(map[string]any)
	if !ok {
		t.Fatalf("miss should carry structured detail, got %#v", fault.DetailOf(err))
	}
	cands, ok := detail["candidates"].([]string)
	if !ok || len(cands) != 5 {
		t.Errorf("want 5 candidates, got %#v", detail["candidates"])
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLayoutDetection(t *testing.T) {
	single := t.TempDir()
	writeFile(t, filepath.Join(single, "project.json"), `{"name":"Solo Job","slug":"solo-job"}`)
	s := New(single)
	if !s.SingleProject() {
		t.Error("root with project.json should be single-project")
	}
	slugs, err := s.ProjectSlugs()
	if err != nil {
		t.Fatal(err)
	}
	if len(slugs) != 1 || slugs[0] != "solo-job" {
		t.Errorf("single-project slugs = %v", slugs)
	}

	multi := t.TempDir()
	writeFile(t, filepath.Join(multi, "beta", "project.json"), `{"name":"Beta","slug":"beta"}`)
	writeFile(t, filepath.Join(multi, "alpha", "project.json"), `{"name":"Alpha","slug":"alpha"}`)
	// A bare directory is not a project.
	if err := os.MkdirAll(filepath.Join(multi, "notaproject"), 0o755); err != nil {
		t.Fatal(err)
	}
	m := New(multi)
	if m.SingleProject() {
		t.Error("root without project.json should be multi-project")
	}
	slugs, err = m.ProjectSlugs()
	if err != nil {
		t.Fatal(err)
	}
	if len(slugs) != 2 || slugs[0] != "alpha" || slugs[1] != "beta" {
		t.Errorf("multi-project slugs = %v, want [alpha beta]", slugs)
	}
}

func TestActiveProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "beta", "project.json"), `{"slug":"beta"}`)
	writeFile(t, filepath.Join(root, "alpha", "project.json"), `{"slug":"alpha"}`)
	s := New(root)

	if got, err := s.ActiveProject("beta"); err != nil || got != "beta" {
		t.Errorf("override: got %q, %v", got, err)
	}
	if _, err := s.ActiveProject("gamma"); !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("unknown override should be NotFound, got %v", err)
	}
	// No override, no install state match: lexicographic first.
	if got, err := s.ActiveProject(""); err != nil || got != "alpha" {
		t.Errorf("fallback: got %q, %v", got, err)
	}
}

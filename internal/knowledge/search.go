package knowledge

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

const (
	pageNameWeight = 5
	keywordWeight  = 3
	materialWeight = 2

	// refCap bounds how many refs a single index term can contribute.
	refCap = 80

	maxReasons    = 6
	summaryMaxLen = 380
	defaultLimit  = 10
)

type pageScore struct {
	score   int
	reasons []string
}

// Search ranks pages against a lowercase query. Scoring: +5 for a page-name
// substring hit, +3 per page for each index keyword containing the query,
// +2 per page for each material, each term capped at its first 80 refs.
// Results are totally ordered by (-score, page_name) and truncated to limit.
func (l *Loader) Search(slug, query string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []models.SearchResult{}, nil
	}

	names, err := l.res.ListPageNames(slug)
	if err != nil {
		return nil, err
	}
	idx, err := l.LoadIndex(slug)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]*pageScore)
	bump := func(page string, pts int, reason string) {
		ps := scores[page]
		if ps == nil {
			ps = &pageScore{}
			scores[page] = ps
		}
		ps.score += pts
		if len(ps.reasons) < maxReasons {
			ps.reasons = append(ps.reasons, reason)
		}
	}

	for _, name := range names {
		if strings.Contains(strings.ToLower(name), q) {
			bump(name, pageNameWeight, "page_name")
		}
	}

	// Map iteration order is random; sort the matching terms so scoring is
	// deterministic, including which reasons survive the cap.
	scoreTerms(idx.Keywords, q, keywordWeight, "keyword:", bump)
	scoreTerms(idx.Materials, q, materialWeight, "material:", bump)

	results := make([]models.SearchResult, 0, len(scores))
	for page, ps := range scores {
		r := models.SearchResult{PageName: page, Score: ps.score, Reasons: ps.reasons}
		if p1, err := l.LoadPass1(slug, page); err == nil {
			r.Discipline = p1.Discipline
			r.Summary = truncate(p1.SheetReflection, summaryMaxLen)
		}
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].PageName < results[j].PageName
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func scoreTerms(terms map[string][]models.IndexRef, q string, pts int, prefix string, bump func(string, int, string)) {
	matched := make([]string, 0, len(terms))
	for term := range terms {
		if strings.Contains(strings.ToLower(term), q) {
			matched = append(matched, term)
		}
	}
	sort.Strings(matched)
	for _, term := range matched {
		refs := terms[term]
		if len(refs) > refCap {
			refs = refs[:refCap]
		}
		seen := make(map[string]bool, len(refs))
		for _, ref := range refs {
			if ref.Page == "" || seen[ref.Page] {
				continue
			}
			seen[ref.Page] = true
			bump(ref.Page, pts, prefix+term)
		}
	}
}

// truncate cuts s at n bytes, backing off to the previous rune boundary so
// the result is always valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

package command

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fault"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/fsjson"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/internal/resolver"
	"github.com/seanschneidewent/maestro-openclaw-agent-teams-sub000/pkg/models"
)

// Finding severities.
const (
	SeverityError = "error"
	SeverityWarn  = "warn"
)

// Finding is one doctor observation about the store layout.
type Finding struct {
	Severity string `json:"severity"`
	Path     string `json:"path"`
	Message  string `json:"message"`
	Fixed    bool   `json:"fixed,omitempty"`
}

// DoctorReport summarizes a store health check.
type DoctorReport struct {
	StoreRoot string    `json:"store_root"`
	Projects  int       `json:"projects"`
	Findings  []Finding `json:"findings"`
	Healthy   bool      `json:"healthy"`
}

// Doctor checks the store layout: readable project.json per project,
// parseable documents, control sidecars present, no leftover temp files.
// With fix set it creates missing directories and removes temp litter.
func Doctor(res *resolver.Store, fix bool) (DoctorReport, error) {
	rep := DoctorReport{StoreRoot: res.Root, Findings: []Finding{}}

	info, err := os.Stat(res.Root)
	if err != nil || !info.IsDir() {
		rep.Findings = append(rep.Findings, Finding{
			Severity: SeverityError, Path: res.Root, Message: "store root is not a directory",
		})
		return rep, nil
	}

	slugs, err := res.ProjectSlugs()
	if err != nil {
		return rep, err
	}
	rep.Projects = len(slugs)
	if len(slugs) == 0 {
		rep.Findings = append(rep.Findings, Finding{
			Severity: SeverityWarn, Path: res.Root, Message: "store contains no projects",
		})
	}

	controlDir := filepath.Dir(res.RegistryPath())
	if _, err := os.Stat(controlDir); os.IsNotExist(err) {
		f := Finding{Severity: SeverityWarn, Path: controlDir, Message: "missing command-center directory"}
		if fix {
			if err := os.MkdirAll(controlDir, 0o755); err == nil {
				f.Fixed = true
			}
		}
		rep.Findings = append(rep.Findings, f)
	}

	for _, slug := range slugs {
		var p models.Project
		if err := fsjson.ReadJSON(res.ProjectPath(slug), &p); err != nil {
			rep.Findings = append(rep.Findings, Finding{
				Severity: SeverityError, Path: res.ProjectPath(slug),
				Message: "project.json unreadable: " + err.Error(),
			})
			continue
		}
		for _, dir := range []string{
			filepath.Dir(res.NotesPath(slug)),
			filepath.Dir(res.SchedulePath(slug)),
			filepath.Dir(res.HeartbeatPath(slug)),
		} {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				f := Finding{Severity: SeverityWarn, Path: dir, Message: "missing document directory"}
				if fix {
					if err := os.MkdirAll(dir, 0o755); err == nil {
						f.Fixed = true
					}
				}
				rep.Findings = append(rep.Findings, f)
			}
		}
		names, _ := res.ListPageNames(slug)
		for _, page := range names {
			p1 := res.Pass1Path(slug, page)
			if !fsjson.Exists(p1) {
				rep.Findings = append(rep.Findings, Finding{
					Severity: SeverityWarn, Path: p1, Message: "page has no pass1.json",
				})
				continue
			}
			var doc models.Pass1
			if err := fsjson.ReadJSON(p1, &doc); err != nil {
				rep.Findings = append(rep.Findings, Finding{
					Severity: SeverityError, Path: p1, Message: "pass1.json unreadable: " + err.Error(),
				})
			}
		}
	}

	// Interrupted writes leave .tmp siblings behind.
	filepath.Walk(res.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(info.Name(), ".tmp") {
			f := Finding{Severity: SeverityWarn, Path: path, Message: "leftover temp file from interrupted write"}
			if fix {
				if err := os.Remove(path); err == nil {
					f.Fixed = true
				}
			}
			rep.Findings = append(rep.Findings, f)
		}
		return nil
	})

	rep.Healthy = true
	for _, f := range rep.Findings {
		if f.Severity == SeverityError && !f.Fixed {
			rep.Healthy = false
		}
	}
	return rep, nil
}

// DoctorErr converts an unhealthy report to a Corrupt error for the CLI exit
// code contract.
func DoctorErr(rep DoctorReport) error {
	if rep.Healthy {
		return nil
	}
	return fault.New(fault.KindCorrupt, "store failed doctor checks").WithDetail(rep.Findings)
}

package validation

import (
	"sort"
	"strings"
)

// Severity grades a validation finding.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// EntityType identifies which kind of entity a finding points at.
type EntityType string

const (
	EntitySupervisor EntityType = "SUPERVISOR"
	EntityRoom       EntityType = "ROOM"
	EntitySector     EntityType = "SECTOR"
)

// EntityRef is a typed reference to an affected entity.
type EntityRef struct {
	Type EntityType `json:"type"`
	ID   string     `json:"id"`
}

// Issue is one structured validation finding. Issues are produced fresh on
// every validation run and never persisted as mutable state. Identifiers are
// derived from the issue content so identical input yields identical output.
type Issue struct {
	ID          string      `json:"id"`
	Code        string      `json:"code"`
	RuleID      string      `json:"ruleId,omitempty"`
	Description string      `json:"description"`
	Severity    Severity    `json:"severite"`
	Entities    []EntityRef `json:"entitesAffectees"`
	Resolved    bool        `json:"estResolu"`
}

func newIssue(code, ruleID, description string, severity Severity, entities ...EntityRef) Issue {
	parts := make([]string, 0, len(entities)+1)
	parts = append(parts, code)
	for _, entity := range entities {
		parts = append(parts, string(entity.Type)+"="+entity.ID)
	}
	return Issue{
		ID:          strings.Join(parts, "/"),
		Code:        code,
		RuleID:      ruleID,
		Description: description,
		Severity:    severity,
		Entities:    entities,
	}
}

// Result is the outcome of validating one day planning.
type Result struct {
	Valid    bool    `json:"isValid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	Infos    []Issue `json:"infos"`
}

// Issues returns every finding regardless of severity.
func (r Result) Issues() []Issue {
	out := make([]Issue, 0, len(r.Errors)+len(r.Warnings)+len(r.Infos))
	out = append(out, r.Errors...)
	out = append(out, r.Warnings...)
	out = append(out, r.Infos...)
	return out
}

func (r *Result) add(issue Issue) {
	switch issue.Severity {
	case SeverityError:
		r.Errors = append(r.Errors, issue)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, issue)
	default:
		r.Infos = append(r.Infos, issue)
	}
}

func (r *Result) finalize() {
	r.Errors = dedupeSorted(r.Errors)
	r.Warnings = dedupeSorted(r.Warnings)
	r.Infos = dedupeSorted(r.Infos)
	r.Valid = len(r.Errors) == 0
}

// dedupeSorted orders issues by identifier and drops repeats. Identifiers are
// content-derived, so a check that fires twice for the same entities (e.g. a
// basic rule evaluated for several sectors) yields one finding.
func dedupeSorted(issues []Issue) []Issue {
	if len(issues) == 0 {
		return nil
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].ID < issues[j].ID })
	out := issues[:1]
	for _, issue := range issues[1:] {
		if issue.ID != out[len(out)-1].ID {
			out = append(out, issue)
		}
	}
	return out
}

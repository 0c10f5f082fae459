package rules

import (
	"errors"
	"fmt"
	"sort"
)

// ErrAmbiguousPriority indicates two active rules with the same type and
// scope carry equal priority, leaving conflict resolution undefined.
var ErrAmbiguousPriority = errors.New("rules: ambiguous rule priority")

// ErrInvalidRule indicates a rule is structurally malformed.
var ErrInvalidRule = errors.New("rules: invalid rule")

// Scope narrows a catalog query.
type Scope struct {
	SectorID string
	RuleType RuleType
}

// Catalog is the read-only set of active supervision rules. It is built once
// at load time, validated, and safe for concurrent readers; callers needing
// fresh configuration construct a new catalog.
type Catalog struct {
	rules []SupervisionRule
}

// NewCatalog validates and indexes the given rules. Inactive rules are kept
// out of the catalog entirely. Construction fails fast on malformed rules
// and on equal-priority rules sharing a scope.
func NewCatalog(all []SupervisionRule) (*Catalog, error) {
	active := make([]SupervisionRule, 0, len(all))
	for _, rule := range all {
		switch rule.Type {
		case TypeBasic, TypeException:
		case TypeSpecific:
			if rule.SectorID == "" {
				return nil, fmt.Errorf("%w: specific rule %q has no sector", ErrInvalidRule, rule.ID)
			}
		default:
			return nil, fmt.Errorf("%w: rule %q has unknown type %q", ErrInvalidRule, rule.ID, rule.Type)
		}
		if !rule.Active {
			continue
		}
		active = append(active, rule)
	}

	seen := make(map[string]string, len(active))
	for _, rule := range active {
		key := fmt.Sprintf("%s|%s|%d", rule.Type, rule.SectorID, rule.Priority)
		if otherID, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: rules %q and %q (type %s, sector %q, priority %d)",
				ErrAmbiguousPriority, otherID, rule.ID, rule.Type, rule.SectorID, rule.Priority)
		}
		seen[key] = rule.ID
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority == active[j].Priority {
			return active[i].ID < active[j].ID
		}
		return active[i].Priority > active[j].Priority
	})

	return &Catalog{rules: active}, nil
}

// Rules returns the active rules matching the scope, ordered by descending
// priority with ties broken by rule identifier. An empty scope matches every
// rule. The result is a copy; callers may not mutate catalog state.
func (c *Catalog) Rules(scope Scope) []SupervisionRule {
	if c == nil {
		return nil
	}
	out := make([]SupervisionRule, 0, len(c.rules))
	for _, rule := range c.rules {
		if scope.RuleType != "" && rule.Type != scope.RuleType {
			continue
		}
		if scope.SectorID != "" && rule.SectorID != "" && rule.SectorID != scope.SectorID {
			continue
		}
		out = append(out, rule)
	}
	return out
}

// SectorRules returns the rules governing one sector: the sector's SPECIFIC
// rules when any exist, otherwise the global BASIC rules. The second result
// reports whether specific rules superseded the basic ones.
func (c *Catalog) SectorRules(sectorID string) ([]SupervisionRule, bool) {
	specific := c.Rules(Scope{SectorID: sectorID, RuleType: TypeSpecific})
	if len(specific) > 0 {
		return specific, len(c.Rules(Scope{RuleType: TypeBasic})) > 0
	}
	return c.Rules(Scope{RuleType: TypeBasic}), false
}

// ExceptionRules returns the active exception rules for a sector.
func (c *Catalog) ExceptionRules(sectorID string) []SupervisionRule {
	return c.Rules(Scope{SectorID: sectorID, RuleType: TypeException})
}

package rules

import (
	"encoding/json"
	"fmt"
)

// RuleType partitions supervision rules by how they are scoped.
type RuleType string

const (
	// TypeBasic rules apply to every sector unless a specific rule
	// supersedes them.
	TypeBasic RuleType = "BASIC"
	// TypeSpecific rules apply to a single sector and supersede basic
	// rules there.
	TypeSpecific RuleType = "SPECIFIC"
	// TypeException rules relax or tighten limits in exceptional
	// situations, e.g. a headcount shortfall.
	TypeException RuleType = "EXCEPTION"
)

// Constraint is one condition carried by a supervision rule. The concrete
// types below form a closed set so validator dispatch is exhaustive.
type Constraint interface {
	kind() string
}

// MaxRoomsConstraint caps how many rooms one supervisor may cover.
// ExceptionalMax, when positive, is the ceiling an exception rule allows;
// counts between Max and ExceptionalMax degrade to warnings.
type MaxRoomsConstraint struct {
	Max            int `json:"maxSallesParMAR"`
	ExceptionalMax int `json:"maxSallesExceptionnel,omitempty"`
}

func (MaxRoomsConstraint) kind() string { return "max-rooms" }

// InternalSupervisionConstraint requires supervisors to belong to the room's
// own sector, or to one of the explicitly allowed external sectors.
type InternalSupervisionConstraint struct {
	AllowedSectors []string `json:"supervisionDepuisAutreSecteur,omitempty"`
}

func (InternalSupervisionConstraint) kind() string { return "internal-supervision" }

// ContiguityConstraint requires a supervisor's rooms within the sector to
// form one uninterrupted block in the sector's room ordering.
type ContiguityConstraint struct{}

func (ContiguityConstraint) kind() string { return "contiguity" }

// SkillConstraint requires every listed competence of each supervisor.
type SkillConstraint struct {
	Required []string `json:"competencesRequises"`
}

func (SkillConstraint) kind() string { return "skills" }

// IncompatibilityConstraint forbids supervisors from the listed sectors.
type IncompatibilityConstraint struct {
	SectorIDs []string `json:"incompatibilites"`
}

func (IncompatibilityConstraint) kind() string { return "incompatibility" }

// SupervisionRule is one configured supervision constraint set. Rules are
// read-only at evaluation time; higher priority wins on conflict.
type SupervisionRule struct {
	ID          string
	Name        string
	Type        RuleType
	SectorID    string
	Priority    int
	Active      bool
	Constraints []Constraint
}

type constraintEnvelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalConstraints encodes a constraint list as tagged envelopes for
// storage.
func MarshalConstraints(constraints []Constraint) ([]byte, error) {
	envelopes := make([]constraintEnvelope, 0, len(constraints))
	for _, constraint := range constraints {
		payload, err := json.Marshal(constraint)
		if err != nil {
			return nil, fmt.Errorf("rules: encode %s constraint: %w", constraint.kind(), err)
		}
		envelopes = append(envelopes, constraintEnvelope{Kind: constraint.kind(), Payload: payload})
	}
	return json.Marshal(envelopes)
}

// UnmarshalConstraints decodes a tagged envelope list produced by
// MarshalConstraints. Unknown kinds are rejected rather than skipped so a
// configuration typo cannot silently disable a rule.
func UnmarshalConstraints(data []byte) ([]Constraint, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var envelopes []constraintEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("rules: decode constraints: %w", err)
	}
	constraints := make([]Constraint, 0, len(envelopes))
	for _, envelope := range envelopes {
		var (
			constraint Constraint
			err        error
		)
		switch envelope.Kind {
		case "max-rooms":
			var c MaxRoomsConstraint
			err = json.Unmarshal(envelope.Payload, &c)
			constraint = c
		case "internal-supervision":
			var c InternalSupervisionConstraint
			err = json.Unmarshal(envelope.Payload, &c)
			constraint = c
		case "contiguity":
			constraint = ContiguityConstraint{}
		case "skills":
			var c SkillConstraint
			err = json.Unmarshal(envelope.Payload, &c)
			constraint = c
		case "incompatibility":
			var c IncompatibilityConstraint
			err = json.Unmarshal(envelope.Payload, &c)
			constraint = c
		default:
			return nil, fmt.Errorf("rules: unknown constraint kind %q", envelope.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("rules: decode %s constraint: %w", envelope.Kind, err)
		}
		constraints = append(constraints, constraint)
	}
	return constraints, nil
}

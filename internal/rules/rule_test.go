package rules

import (
	"strings"
	"testing"
)

func TestConstraintEncoding(t *testing.T) {
	t.Run("round trips the full constraint set", func(t *testing.T) {
		original := []Constraint{
			MaxRoomsConstraint{Max: 2, ExceptionalMax: 3},
			InternalSupervisionConstraint{AllowedSectors: []string{"ortho"}},
			ContiguityConstraint{},
			SkillConstraint{Required: []string{"cardio"}},
			IncompatibilityConstraint{SectorIDs: []string{"pediatrie"}},
		}

		data, err := MarshalConstraints(original)
		if err != nil {
			t.Fatalf("MarshalConstraints returned error: %v", err)
		}

		decoded, err := UnmarshalConstraints(data)
		if err != nil {
			t.Fatalf("UnmarshalConstraints returned error: %v", err)
		}
		if len(decoded) != len(original) {
			t.Fatalf("expected %d constraints, got %d", len(original), len(decoded))
		}

		mr, ok := decoded[0].(MaxRoomsConstraint)
		if !ok || mr.Max != 2 || mr.ExceptionalMax != 3 {
			t.Fatalf("unexpected max-rooms constraint: %#v", decoded[0])
		}
		sk, ok := decoded[3].(SkillConstraint)
		if !ok || len(sk.Required) != 1 || sk.Required[0] != "cardio" {
			t.Fatalf("unexpected skills constraint: %#v", decoded[3])
		}
	})

	t.Run("rejects unknown constraint kinds", func(t *testing.T) {
		_, err := UnmarshalConstraints([]byte(`[{"kind":"quota","payload":{}}]`))
		if err == nil {
			t.Fatal("expected error for unknown kind")
		}
		if !strings.Contains(err.Error(), "quota") {
			t.Fatalf("error should name the offending kind: %v", err)
		}
	})

	t.Run("empty input decodes to nothing", func(t *testing.T) {
		decoded, err := UnmarshalConstraints(nil)
		if err != nil || decoded != nil {
			t.Fatalf("expected nil, nil, got %v, %v", decoded, err)
		}
	})
}

package rules

import (
	"errors"
	"slices"
	"testing"

	"rebooto/pkg/errs"
)

func TestOrderInsert(t *testing.T) {
	tests := []struct {
		name    string
		initial Order
		insert  string
		before  string
		after   string
		want    Order
	}{
		{"append to empty", Order{}, "a", "", "", Order{"a"}},
		{"append by default", Order{"a", "b"}, "c", "", "", Order{"a", "b", "c"}},
		{"before first", Order{"a", "b"}, "c", "a", "", Order{"c", "a", "b"}},
		{"before middle", Order{"a", "b", "c"}, "x", "b", "", Order{"a", "x", "b", "c"}},
		{"after last", Order{"a", "b"}, "c", "", "b", Order{"a", "b", "c"}},
		{"after first", Order{"a", "b"}, "c", "", "a", Order{"a", "c", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.initial.Insert(tt.insert, tt.before, tt.after)
			if err != nil {
				t.Fatalf("Insert() error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Insert() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderInsertMissingTarget(t *testing.T) {
	o := Order{"a", "b"}

	if _, err := o.Insert("c", "ghost", ""); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Insert(before=ghost) error = %v, want NotFound", err)
	}
	if _, err := o.Insert("c", "", "ghost"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Insert(after=ghost) error = %v, want NotFound", err)
	}
}

func TestOrderMove(t *testing.T) {
	o := Order{"a", "b", "c"}

	moved, err := o.Move("c", "a", "")
	if err != nil {
		t.Fatalf("Move() error: %v", err)
	}
	if !slices.Equal(moved, Order{"c", "a", "b"}) {
		t.Errorf("Move() = %v, want [c a b]", moved)
	}

	// Moving to the end.
	moved, err = o.Move("a", "", "c")
	if err != nil {
		t.Fatalf("Move() error: %v", err)
	}
	if !slices.Equal(moved, Order{"b", "c", "a"}) {
		t.Errorf("Move() = %v, want [b c a]", moved)
	}
}

func TestOrderRemoveKeepsDensity(t *testing.T) {
	o := Order{"a", "b", "c"}

	got := o.Remove("b")
	if !slices.Equal(got, Order{"a", "c"}) {
		t.Errorf("Remove() = %v, want [a c]", got)
	}
	if got.PositionOf("a") != 1 || got.PositionOf("c") != 2 {
		t.Errorf("positions after remove = %d, %d; want 1, 2", got.PositionOf("a"), got.PositionOf("c"))
	}

	// Removing an absent name changes nothing.
	if got := o.Remove("ghost"); !slices.Equal(got, o) {
		t.Errorf("Remove(ghost) = %v, want %v", got, o)
	}
}

func TestOrderPositionOf(t *testing.T) {
	o := Order{"a", "b"}
	if got := o.PositionOf("b"); got != 2 {
		t.Errorf("PositionOf(b) = %d, want 2", got)
	}
	if got := o.PositionOf("ghost"); got != 0 {
		t.Errorf("PositionOf(ghost) = %d, want 0", got)
	}
}

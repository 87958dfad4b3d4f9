package rules

import (
	"slices"

	"rebooto/pkg/errs"
)

// Order is the global rule ordering as a dense list of rule names; index i
// holds the rule at position i+1. All mutations return a new dense order, so
// the store can rewrite positions 1..N in one transaction.
type Order []string

// Insert places name into the order. When before or after names an existing
// rule, the new name lands immediately before or after it; otherwise it is
// appended. The target not existing is a NotFound error.
func (o Order) Insert(name, before, after string) (Order, error) {
	switch {
	case before != "":
		idx := slices.Index(o, before)
		if idx < 0 {
			return nil, errs.NotFound("rule with name '%s' was not found", before)
		}
		return slices.Insert(slices.Clone(o), idx, name), nil
	case after != "":
		idx := slices.Index(o, after)
		if idx < 0 {
			return nil, errs.NotFound("rule with name '%s' was not found", after)
		}
		return slices.Insert(slices.Clone(o), idx+1, name), nil
	default:
		return append(slices.Clone(o), name), nil
	}
}

// Move removes name and re-inserts it relative to the target rule.
func (o Order) Move(name, before, after string) (Order, error) {
	return o.Remove(name).Insert(name, before, after)
}

// Remove drops name from the order. Removing an absent name is a no-op.
func (o Order) Remove(name string) Order {
	idx := slices.Index(o, name)
	if idx < 0 {
		return slices.Clone(o)
	}
	return slices.Delete(slices.Clone(o), idx, idx+1)
}

// PositionOf returns the dense 1..N position of name, or 0 when absent.
func (o Order) PositionOf(name string) int {
	return slices.Index(o, name) + 1
}

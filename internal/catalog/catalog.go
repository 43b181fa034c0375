package catalog

import (
	"fmt"
	"strings"
)

// NoPending is returned by FirstPending when every unit is done.
const NoPending = -1

// WorkUnit is one ordered clip triple. Order matters: it is the cut order.
type WorkUnit struct {
	Clips [3]string
	Done  bool
}

// Label renders the triple for logs and tables.
func (u WorkUnit) Label() string {
	return strings.Join(u.Clips[:], " + ")
}

func (u WorkUnit) distinct() bool {
	return u.Clips[0] != u.Clips[1] && u.Clips[1] != u.Clips[2] && u.Clips[0] != u.Clips[2]
}

// Catalog is the ordered list of every unit in the batch. Index order is the
// only authority on what runs next.
type Catalog struct {
	Units []WorkUnit
}

// Build enumerates every ordered triple of pairwise-distinct clips in
// nested-loop order (outer i, middle j, inner k). Duplicate ids are dropped,
// first occurrence wins.
func Build(clipIDs []string) (*Catalog, error) {
	clips := dedupe(clipIDs)
	if len(clips) < 3 {
		return nil, &EmptyInputError{Distinct: len(clips)}
	}

	n := len(clips)
	units := make([]WorkUnit, 0, n*(n-1)*(n-2))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			for k := 0; k < n; k++ {
				if k == i || k == j {
					continue
				}
				units = append(units, WorkUnit{Clips: [3]string{clips[i], clips[j], clips[k]}})
			}
		}
	}
	return &Catalog{Units: units}, nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Len returns the number of units.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Units)
}

// FirstPending scans from index 0 and returns the first unit not yet done.
func (c *Catalog) FirstPending() (int, bool) {
	if c == nil {
		return NoPending, false
	}
	for idx, unit := range c.Units {
		if !unit.Done {
			return idx, true
		}
	}
	return NoPending, false
}

// MarkDone flips the done flag for idx. A unit is marked exactly once.
func (c *Catalog) MarkDone(idx int) error {
	if c == nil || idx < 0 || idx >= len(c.Units) {
		return fmt.Errorf("mark done: index %d out of range", idx)
	}
	if c.Units[idx].Done {
		return fmt.Errorf("mark done: unit %d already done", idx)
	}
	c.Units[idx].Done = true
	return nil
}

// Counts reports done and pending totals.
func (c *Catalog) Counts() (done, pending int) {
	if c == nil {
		return 0, 0
	}
	for _, unit := range c.Units {
		if unit.Done {
			done++
		} else {
			pending++
		}
	}
	return done, pending
}

// Unit returns a copy of the unit at idx.
func (c *Catalog) Unit(idx int) (WorkUnit, bool) {
	if c == nil || idx < 0 || idx >= len(c.Units) {
		return WorkUnit{}, false
	}
	return c.Units[idx], true
}

// Clips lists every clip id referenced by the catalog in first-seen order.
func (c *Catalog) Clips() []string {
	if c == nil {
		return nil
	}
	var ids []string
	for _, unit := range c.Units {
		ids = append(ids, unit.Clips[:]...)
	}
	return dedupe(ids)
}

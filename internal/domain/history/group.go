package history

import (
	"sort"

	"github.com/google/uuid"
)

// GroupStatus returns the status shared by all entries, or StatusOpen when
// they disagree. An empty group is open.
func GroupStatus(entries []*Entry) Status {
	if len(entries) == 0 {
		return StatusOpen
	}
	first := entries[0].Status
	for _, e := range entries[1:] {
		if e.Status != first {
			return StatusOpen
		}
	}
	return first
}

// GroupEntries groups entries (given in creation order) by GroupKey. Groups
// are ordered by the Seq of their first member, newest first; members keep
// their input order.
func GroupEntries(entries []*Entry) []Group {
	index := make(map[uuid.UUID]int)
	var groups []Group
	for _, e := range entries {
		key := e.GroupKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	for i := range groups {
		groups[i].Status = GroupStatus(groups[i].Entries)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Entries[0].Seq > groups[b].Entries[0].Seq
	})
	return groups
}

// CountEntries tallies entries by status according to mode.
func CountEntries(entries []*Entry, mode CountMode) Counts {
	var c Counts
	if mode == CountByEntry {
		for _, e := range entries {
			c.add(e.Status)
		}
		return c
	}
	for _, g := range GroupEntries(entries) {
		c.add(g.Status)
	}
	return c
}

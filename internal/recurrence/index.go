package recurrence

import "taskbridge/internal/model"

// Index maps mother ids to their known children. Children point to their
// mother by id only; the index is rebuilt from the flat task list.
type Index struct {
	byDay    map[string]map[string]string
	children map[string][]string
	ids      map[string]struct{}
	done     map[string]struct{}
}

func NewIndex(tasks []model.Task) *Index {
	idx := &Index{
		byDay:    make(map[string]map[string]string),
		children: make(map[string][]string),
		ids:      make(map[string]struct{}, len(tasks)),
		done:     make(map[string]struct{}),
	}
	for _, t := range tasks {
		idx.Add(t)
	}
	return idx
}

// Add records t. Tasks without a parent only reserve their id.
func (i *Index) Add(t model.Task) {
	i.ids[t.ID] = struct{}{}
	if t.Status == model.StatusDone {
		i.done[t.ID] = struct{}{}
	}
	if !t.IsChild() {
		return
	}
	parent := *t.ParentTaskID
	days, ok := i.byDay[parent]
	if !ok {
		days = make(map[string]string)
		i.byDay[parent] = days
	}
	if _, dup := days[t.StartDate]; !dup {
		days[t.StartDate] = t.ID
	}
	i.children[parent] = append(i.children[parent], t.ID)
}

// Has reports whether parentID already has an occurrence starting on day.
func (i *Index) Has(parentID, day string) bool {
	_, ok := i.byDay[parentID][day]
	return ok
}

func (i *Index) HasID(id string) bool {
	_, ok := i.ids[id]
	return ok
}

// Children returns the ids of parentID's children in insertion order.
func (i *Index) Children(parentID string) []string {
	return append([]string(nil), i.children[parentID]...)
}

// Pending returns the ids of parentID's children that are not done.
func (i *Index) Pending(parentID string) []string {
	var out []string
	for _, id := range i.children[parentID] {
		if _, ok := i.done[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

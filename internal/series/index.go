package series

import "github.com/geocoder89/happenings/internal/domain/event"

// Index maps a parent instance id to the ids of its children, in pool order.
type Index map[string][]string

func BuildIndex(pool []event.Event) Index {
	idx := make(Index)
	for _, ev := range pool {
		if ev.ParentEventID == nil || *ev.ParentEventID == "" {
			continue
		}
		idx[*ev.ParentEventID] = append(idx[*ev.ParentEventID], ev.ID)
	}
	return idx
}

// Members returns the parent id followed by its children.
func (idx Index) Members(parentID string) []string {
	children := idx[parentID]
	out := make([]string, 0, len(children)+1)
	out = append(out, parentID)
	return append(out, children...)
}

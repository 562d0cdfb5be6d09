package domain

// ListEntry is one client-submitted row of a collection edit. An entry with an
// ID targets an existing item; an entry with text but no ID requests a new
// item. The same shape serves board columns and task subtasks.
type ListEntry struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text,omitempty"`
}

// ListItem is implemented by collection items that can be reconciled against
// client-submitted entries.
type ListItem[T any] interface {
	ListID() string
	Renamed(text string) T
}

// ReconcileList applies client-submitted entries to a stored ordered
// collection. Per entry, evaluated independently:
//
//   - ID and text present: rename the matching item in place. A rename whose
//     ID matches nothing is dropped.
//   - ID present, text empty: remove the matching item.
//   - text present, ID empty: append a new item built by create.
//
// Entries matching none of these shapes are no-ops. The result is the
// surviving stored items in their original order followed by the appended
// items in submission order.
func ReconcileList[T ListItem[T]](stored []T, entries []ListEntry, create func(text string) T) []T {
	removed := make(map[string]bool)
	renamed := make(map[string]string)
	var appended []T
	for _, e := range entries {
		switch {
		case e.ID != "" && e.Text != "":
			renamed[e.ID] = e.Text
		case e.ID != "":
			removed[e.ID] = true
		case e.Text != "":
			appended = append(appended, create(e.Text))
		}
	}

	out := make([]T, 0, len(stored)+len(appended))
	for _, item := range stored {
		id := item.ListID()
		if removed[id] {
			continue
		}
		if text, ok := renamed[id]; ok {
			item = item.Renamed(text)
		}
		out = append(out, item)
	}
	return append(out, appended...)
}

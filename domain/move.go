package domain

// MoveTarget names where a task should land. A nil Index means append at the
// end of the destination column.
type MoveTarget struct {
	ColumnID string `json:"columnId"`
	Index    *int   `json:"index,omitempty"`
}

// MoveTask relocates a task within or across columns. The task keeps its
// identity, subtasks and assignees; only containment and position change.
func (b *Board) MoveTask(fromColumnID, taskID string, fromIndex int, dest MoveTarget) error {
	src := b.Column(fromColumnID)
	if src == nil {
		return NotFound("column", fromColumnID)
	}
	if fromIndex < 0 || fromIndex >= len(src.Tasks) {
		return InvalidPosition("task", "fromIndex")
	}
	task := src.Tasks[fromIndex]
	if task.ID != taskID {
		return NotFound("task", taskID)
	}

	if dest.ColumnID == fromColumnID {
		return src.reorder(fromIndex, dest.Index)
	}

	dst := b.Column(dest.ColumnID)
	if dst == nil {
		return NotFound("column", dest.ColumnID)
	}
	if dest.Index != nil {
		at := *dest.Index
		if at < 0 || at > len(dst.Tasks) {
			return InvalidPosition("task", "index")
		}
		spliced := make([]Task, 0, len(dst.Tasks)+1)
		spliced = append(spliced, dst.Tasks[:at]...)
		spliced = append(spliced, task)
		spliced = append(spliced, dst.Tasks[at:]...)
		dst.Tasks = spliced
	} else {
		dst.Tasks = append(dst.Tasks, task)
	}

	// Remove from the source by identifier, not index: the destination splice
	// above already holds a copy, and index-based removal would break if both
	// columns alias the same backing data.
	src.removeTask(taskID)
	return nil
}

func (c *Column) reorder(from int, to *int) error {
	target := len(c.Tasks) - 1
	if to != nil {
		target = *to
	}
	if target < 0 || target >= len(c.Tasks) {
		return InvalidPosition("task", "index")
	}
	task := c.Tasks[from]
	rest := append(c.Tasks[:from:from], c.Tasks[from+1:]...)
	reordered := make([]Task, 0, len(c.Tasks))
	reordered = append(reordered, rest[:target]...)
	reordered = append(reordered, task)
	reordered = append(reordered, rest[target:]...)
	c.Tasks = reordered
	return nil
}

func (c *Column) removeTask(taskID string) {
	kept := c.Tasks[:0]
	for _, t := range c.Tasks {
		if t.ID != taskID {
			kept = append(kept, t)
		}
	}
	c.Tasks = kept
}

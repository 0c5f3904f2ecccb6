// Package history keeps bounded undo/redo stacks of text snapshots.
package history

// DefaultLimit is the undo depth used when no limit is configured.
const DefaultLimit = 50

// History is a pair of snapshot stacks. The undo stack evicts its oldest
// entry once it holds Limit snapshots. It is not safe for concurrent use;
// the owning session serializes access.
type History struct {
	undo  []string
	redo  []string
	limit int
}

// New returns an empty history. A limit below 1 falls back to DefaultLimit.
func New(limit int) *History {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &History{
		undo:  make([]string, 0, limit),
		limit: limit,
	}
}

// Restore rebuilds a history from persisted stacks, oldest first. Stacks
// longer than the limit keep their newest entries.
func Restore(limit int, undo, redo []string) *History {
	h := New(limit)
	for _, s := range undo {
		h.pushUndo(s)
	}
	h.redo = append(h.redo, redo...)
	return h
}

// Limit is the maximum undo depth.
func (h *History) Limit() int { return h.limit }

// Record saves prev as an undo step and discards anything that could be
// redone.
func (h *History) Record(prev string) {
	h.pushUndo(prev)
	h.redo = h.redo[:0]
}

// Undo swaps current for the most recent undo snapshot. ok is false when
// there is nothing to undo.
func (h *History) Undo(current string) (string, bool) {
	if len(h.undo) == 0 {
		return current, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current)
	return prev, true
}

// Redo is the inverse of Undo.
func (h *History) Redo(current string) (string, bool) {
	if len(h.redo) == 0 {
		return current, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.pushUndo(current)
	return next, true
}

// Clear drops both stacks.
func (h *History) Clear() {
	h.undo = h.undo[:0]
	h.redo = h.redo[:0]
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// UndoDepth and RedoDepth report the stack sizes.
func (h *History) UndoDepth() int { return len(h.undo) }
func (h *History) RedoDepth() int { return len(h.redo) }

// Stacks returns copies of both stacks, oldest first.
func (h *History) Stacks() (undo, redo []string) {
	return append([]string(nil), h.undo...), append([]string(nil), h.redo...)
}

// pushUndo evicts the oldest snapshot in FIFO order once full.
func (h *History) pushUndo(s string) {
	if len(h.undo) >= h.limit {
		copy(h.undo, h.undo[1:])
		h.undo = h.undo[:len(h.undo)-1]
	}
	h.undo = append(h.undo, s)
}

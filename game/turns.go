package game

// TurnTracker computes whose action is expected next. The index walks the
// roster in insertion order and wraps at the end. A fresh (or reset)
// tracker binds the first roster slot on its next Advance, so the
// contract is advance-then-bind everywhere.
type TurnTracker struct {
	index int
}

func NewTurnTracker() *TurnTracker {
	return &TurnTracker{index: -1}
}

// Current returns the active index without advancing. Never negative.
func (t *TurnTracker) Current() int {
	if t.index < 0 {
		return 0
	}
	return t.index
}

// Advance moves to the next rotation slot and returns it. A roster size
// of zero always yields 0; roster emptiness ends the session before this
// is consulted in practice.
func (t *TurnTracker) Advance(rosterSize int) int {
	if rosterSize <= 0 {
		t.index = 0
		return 0
	}
	if t.index >= rosterSize-1 {
		t.index = 0
	} else {
		t.index++
	}
	return t.index
}

// HandleRemoval keeps the index valid after the roster entry at
// removedIndex was deleted. Removing the current-turn entry leaves the
// index pointing at what was the next entry, which is exactly one
// rotation step forward.
func (t *TurnTracker) HandleRemoval(removedIndex, newSize int) {
	if t.index < 0 {
		return
	}
	if removedIndex < t.index {
		t.index--
	}
	if t.index >= newSize {
		t.index = 0
	}
}

// Reset returns the tracker to its fresh state.
func (t *TurnTracker) Reset() {
	t.index = -1
}

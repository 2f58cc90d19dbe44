package game

import "testing"

func TestTurnTracker_AdvanceWraps(t *testing.T) {
	tracker := NewTurnTracker()

	// A fresh tracker binds the first slot.
	if got := tracker.Advance(3); got != 0 {
		t.Fatalf("Expected first advance to yield 0, got %d", got)
	}
	if got := tracker.Advance(3); got != 1 {
		t.Errorf("Expected 1, got %d", got)
	}
	if got := tracker.Advance(3); got != 2 {
		t.Errorf("Expected 2, got %d", got)
	}
	if got := tracker.Advance(3); got != 0 {
		t.Errorf("Expected wrap to 0, got %d", got)
	}
}

func TestTurnTracker_EmptyRoster(t *testing.T) {
	tracker := NewTurnTracker()
	if got := tracker.Advance(0); got != 0 {
		t.Errorf("Expected 0 for an empty roster, got %d", got)
	}
	if got := tracker.Current(); got != 0 {
		t.Errorf("Expected current 0, got %d", got)
	}
}

func TestTurnTracker_CurrentIsReadOnly(t *testing.T) {
	tracker := NewTurnTracker()
	tracker.Advance(3)
	tracker.Advance(3) // index 1

	for i := 0; i < 3; i++ {
		if got := tracker.Current(); got != 1 {
			t.Fatalf("Current must not advance, read %d got %d", i, got)
		}
	}
}

func TestTurnTracker_HandleRemoval(t *testing.T) {
	cases := []struct {
		name         string
		index        int // advances applied to reach this index with size 3
		removedIndex int
		newSize      int
		want         int
	}{
		{"removed before current", 2, 0, 2, 1},
		{"removed current mid-roster", 1, 1, 2, 1},
		{"removed current at end wraps", 2, 2, 2, 0},
		{"removed after current", 0, 2, 2, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracker := NewTurnTracker()
			for i := 0; i <= tc.index; i++ {
				tracker.Advance(3)
			}
			tracker.HandleRemoval(tc.removedIndex, tc.newSize)
			if got := tracker.Current(); got != tc.want {
				t.Errorf("Expected index %d, got %d", tc.want, got)
			}
		})
	}
}

func TestTurnTracker_Reset(t *testing.T) {
	tracker := NewTurnTracker()
	tracker.Advance(4)
	tracker.Advance(4)
	tracker.Reset()

	if got := tracker.Current(); got != 0 {
		t.Errorf("Expected current 0 after reset, got %d", got)
	}
	if got := tracker.Advance(4); got != 0 {
		t.Errorf("Expected the first advance after reset to yield 0, got %d", got)
	}
}

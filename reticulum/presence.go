package reticulum

import (
	"encoding/json"
	"sync"
)

// presenceMeta is one presence entry for a participant. Hubs uses the
// presence field to distinguish the lobby from the room proper.
type presenceMeta struct {
	Presence string `json:"presence"`
	Profile  struct {
		DisplayName string `json:"displayName"`
	} `json:"profile"`
}

type presenceEntry struct {
	Metas []presenceMeta `json:"metas"`
}

type presenceDiff struct {
	Joins  map[string]presenceEntry `json:"joins"`
	Leaves map[string]presenceEntry `json:"leaves"`
}

// presenceChange describes the outcome of applying one diff entry.
type presenceChange struct {
	SessionID   string
	DisplayName string
	Presence    string
	Previous    string // previous presence, "" for a fresh join
	Joined      bool   // participant was not present before
	Left        bool   // participant has no metas left
}

// presenceState tracks who is in the room. Reads come from session
// handlers and the read loop concurrently.
type presenceState struct {
	mu      sync.RWMutex
	entries map[string]presenceEntry
}

func newPresenceState() *presenceState {
	return &presenceState{entries: make(map[string]presenceEntry)}
}

func (p *presenceState) replace(raw json.RawMessage) error {
	var entries map[string]presenceEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if entries == nil {
		entries = make(map[string]presenceEntry)
	}
	p.entries = entries
	return nil
}

// applyDiff merges a presence_diff and returns the resulting changes in
// a deterministic joins-then-leaves order.
func (p *presenceState) applyDiff(raw json.RawMessage) ([]presenceChange, error) {
	var diff presenceDiff
	if err := json.Unmarshal(raw, &diff); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var changes []presenceChange
	for sessionID, entry := range diff.Joins {
		if len(entry.Metas) == 0 {
			continue
		}
		recent := entry.Metas[len(entry.Metas)-1]
		change := presenceChange{
			SessionID:   sessionID,
			DisplayName: recent.Profile.DisplayName,
			Presence:    recent.Presence,
		}
		if prev, ok := p.entries[sessionID]; ok && len(prev.Metas) > 0 {
			change.Previous = prev.Metas[len(prev.Metas)-1].Presence
		} else {
			change.Joined = true
		}
		p.entries[sessionID] = entry
		changes = append(changes, change)
	}

	for sessionID, entry := range diff.Leaves {
		prev, ok := p.entries[sessionID]
		if !ok {
			continue
		}
		remaining := removeMetas(prev.Metas, entry.Metas)
		if len(remaining) == 0 {
			delete(p.entries, sessionID)
			change := presenceChange{SessionID: sessionID, Left: true}
			if len(entry.Metas) > 0 {
				change.DisplayName = entry.Metas[len(entry.Metas)-1].Profile.DisplayName
			}
			changes = append(changes, change)
		} else {
			prev.Metas = remaining
			p.entries[sessionID] = prev
		}
	}

	return changes, nil
}

// removeMetas drops as many metas as the leave carried. Hubs does not
// give us stable meta refs in this shape, so count-based removal is the
// best available approximation.
func removeMetas(current, leaving []presenceMeta) []presenceMeta {
	if len(leaving) >= len(current) {
		return nil
	}
	return current[:len(current)-len(leaving)]
}

// name returns the most recent display name of a participant, or "".
func (p *presenceState) name(sessionID string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.entries[sessionID]
	if !ok || len(entry.Metas) == 0 {
		return ""
	}
	return entry.Metas[len(entry.Metas)-1].Profile.DisplayName
}

// users lists present participants, excluding the given session ID.
func (p *presenceState) users(excludeID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var ids []string
	for id := range p.entries {
		if id != excludeID {
			ids = append(ids, id)
		}
	}
	return ids
}

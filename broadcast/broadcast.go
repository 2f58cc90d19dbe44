package broadcast

import (
	"errors"

	"github.com/wfunc/gamebot/game"
)

var ErrRoomNotFound = errors.New("room not found")

// Broadcaster pushes chat messages into connected rooms.
type Broadcaster interface {
	ToRoom(hubID, text string) error
	ToAll(text string) int
}

// RoomBroadcaster sends through the sessions held by the registry.
type RoomBroadcaster struct {
	registry *game.Registry
}

func NewRoomBroadcaster(registry *game.Registry) *RoomBroadcaster {
	return &RoomBroadcaster{registry: registry}
}

// ToRoom delivers a chat message to one room.
func (b *RoomBroadcaster) ToRoom(hubID, text string) error {
	session, ok := b.registry.Get(hubID)
	if !ok {
		return ErrRoomNotFound
	}
	return session.Say(text)
}

// ToAll delivers a chat message to every connected room, returning how
// many rooms received it.
func (b *RoomBroadcaster) ToAll(text string) int {
	sent := 0
	for _, session := range b.registry.All() {
		if err := session.Say(text); err == nil {
			sent++
		}
	}
	return sent
}

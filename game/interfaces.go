package game

import (
	"context"

	"github.com/wfunc/gamebot/models"
)

// Role of a narrative message, mirroring the chat completion roles the
// narrator understands.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one entry sent to the Narrator.
type Message struct {
	Role    Role
	Content string
}

// Command is the structured body pushed to the room channel.
type Command struct {
	Command string        `json:"command"`
	Args    []interface{} `json:"args"`
}

// Channel is the room transport a session publishes through. Defined
// here, on the consumer side, so game does not import reticulum.
type Channel interface {
	SendCommand(from string, body Command) error
	SendMessage(from, text string) error
	// Name returns the display name for a participant, or "" when the
	// participant is not present.
	Name(sessionID string) string
	// Users lists the session IDs present in the room, excluding the
	// given one.
	Users(excludeID string) []string
	Close() error
}

// Narrator produces the next narrative payload. It owns the running
// transcript; the session only sends and clears.
type Narrator interface {
	Send(ctx context.Context, sessionID string, msgs ...Message) (string, error)
	Clear()
}

// Renderer generates scene images. CancelAll voids every pending
// generation on the provider account, not just this session's.
type Renderer interface {
	Generate(ctx context.Context, prompt string, styleID int) (string, error)
	CancelAll(ctx context.Context) error
}

// Recorder persists finished game records. Optional; a nil Recorder
// disables persistence.
type Recorder interface {
	SaveOutcome(record *models.GameRecord) error
}

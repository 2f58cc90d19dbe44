package bot

import (
	"testing"

	"github.com/openai/openai-go"

	"github.com/wfunc/gamebot/game"
)

func primedBot(extraMessages int) *GameBot {
	b := &GameBot{}
	b.messages = append(b.messages,
		toParam(game.Message{Role: game.RoleSystem, Content: "theme"}),
		toParam(game.Message{Role: game.RoleUser, Content: "rules"}),
		toParam(game.Message{Role: game.RoleUser, Content: "Start. Players: P1"}),
	)
	for i := 0; i < extraMessages; i++ {
		b.messages = append(b.messages, toParam(game.Message{Role: game.RoleUser, Content: "turn"}))
	}
	return b
}

func TestTrim_BelowCeilingKeepsTranscript(t *testing.T) {
	b := primedBot(6)
	before := len(b.messages)

	b.trim(openai.CompletionUsage{TotalTokens: 1000, CompletionTokens: 100})

	if len(b.messages) != before {
		t.Errorf("Trim below the ceiling must not drop messages: %d -> %d", before, len(b.messages))
	}
}

func TestTrim_AboveCeilingDropsPostPriming(t *testing.T) {
	b := primedBot(6)
	before := len(b.messages)

	b.trim(openai.CompletionUsage{TotalTokens: 3800, CompletionTokens: 300})

	if len(b.messages) != before-2 {
		t.Fatalf("Expected 2 messages dropped, %d -> %d", before, len(b.messages))
	}

	// The priming block must survive.
	if b.messages[0].OfSystem == nil {
		t.Error("The system framing message must survive trimming")
	}
	if b.messages[1].OfUser == nil || b.messages[2].OfUser == nil {
		t.Error("The rules and start messages must survive trimming")
	}
}

func TestTrim_NeverDrainsShortTranscript(t *testing.T) {
	b := primedBot(1)
	before := len(b.messages)

	b.trim(openai.CompletionUsage{TotalTokens: 4000, CompletionTokens: 400})

	if len(b.messages) != before {
		t.Errorf("A short transcript must not be trimmed: %d -> %d", before, len(b.messages))
	}
}

func TestClear(t *testing.T) {
	b := primedBot(3)
	b.Clear()

	if b.TranscriptLen() != 0 {
		t.Errorf("Expected an empty transcript after Clear, got %d", b.TranscriptLen())
	}
}

func TestToParam_Roles(t *testing.T) {
	system := toParam(game.Message{Role: game.RoleSystem, Content: "framing"})
	if system.OfSystem == nil {
		t.Error("System messages must map to the system role")
	}

	user := toParam(game.Message{Role: game.RoleUser, Content: "action"})
	if user.OfUser == nil {
		t.Error("User messages must map to the user role")
	}
}

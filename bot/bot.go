package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/wfunc/gamebot/game"
)

// maxModelTokens is the context ceiling the trim policy defends.
const maxModelTokens = 4097

// primingMessages is how many leading transcript entries (theme, rules,
// start) survive every trim.
const primingMessages = 3

type Config struct {
	APIKey       string
	Organization string
	Model        string
	Temperature  float64
	MaxTokens    int64
}

// GameBot drives the narrative model. It holds the running transcript,
// so concurrent sends for the same bot would corrupt conversational
// context; game.Session serializes them with its in-flight permit and
// the mutex here is the last line of defense.
type GameBot struct {
	client openai.Client
	cfg    Config

	mu       sync.Mutex
	messages []openai.ChatCompletionMessageParamUnion
}

func New(cfg Config) *GameBot {
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.6
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}

	return &GameBot{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

// Send appends the messages to the transcript, requests the next
// completion and returns the assistant reply. Provider errors propagate
// to the caller unchanged.
func (b *GameBot) Send(ctx context.Context, sessionID string, msgs ...game.Message) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, msg := range msgs {
		b.messages = append(b.messages, toParam(msg))
	}

	completion, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:         b.messages,
		Model:            shared.ChatModel(b.cfg.Model),
		Temperature:      openai.Float(b.cfg.Temperature),
		MaxTokens:        openai.Int(b.cfg.MaxTokens),
		TopP:             openai.Float(1),
		FrequencyPenalty: openai.Float(0),
		PresencePenalty:  openai.Float(0.6),
		User:             openai.String(sessionID),
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}

	reply := completion.Choices[0].Message
	b.trim(completion.Usage)
	b.messages = append(b.messages, reply.ToParam())
	return reply.Content, nil
}

// Clear resets the transcript for a new game.
func (b *GameBot) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
}

// TranscriptLen reports the current transcript size.
func (b *GameBot) TranscriptLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

// trim drops the oldest post-priming messages once reported usage gets
// close to the model's context ceiling. The priming block stays intact
// so the model never loses the theme and rules.
func (b *GameBot) trim(usage openai.CompletionUsage) {
	if usage.TotalTokens+usage.CompletionTokens*2 <= maxModelTokens {
		return
	}
	if len(b.messages) <= primingMessages+2 {
		return
	}
	kept := make([]openai.ChatCompletionMessageParamUnion, 0, len(b.messages)-2)
	kept = append(kept, b.messages[:primingMessages]...)
	kept = append(kept, b.messages[primingMessages+2:]...)
	b.messages = kept
}

func toParam(msg game.Message) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case game.RoleSystem:
		return openai.SystemMessage(msg.Content)
	default:
		return openai.UserMessage(msg.Content)
	}
}

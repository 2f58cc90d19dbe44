package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/models"
	"github.com/wfunc/gamebot/monitor"
	"github.com/wfunc/gamebot/timer"
)

// BotName is the display name the bot publishes under.
const BotName = "GameBot"

// Lifecycle is the session state. Player actions only mutate game state
// while Started.
type Lifecycle int

const (
	Disconnected Lifecycle = iota
	Connected
	Started
	Ended
)

func (l Lifecycle) String() string {
	switch l {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Started:
		return "started"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// SessionConfig wires a session to its collaborators. Recorder and
// Monitor are optional.
type SessionConfig struct {
	HubID     string
	SessionID string
	Channel   Channel
	Narrator  Narrator
	Renderer  Renderer
	Recorder  Recorder
	Timers    *timer.Manager
	Monitor   *monitor.Monitor
	Debounce  time.Duration
}

// Session is the per-room game state machine. It owns the roster, turn
// order, last published result and scene cache, and serializes player
// actions into a single narrative thread.
type Session struct {
	hubID     string
	sessionID string

	channel  Channel
	narrator Narrator
	renderer Renderer
	recorder Recorder
	timers   *timer.Manager
	mon      *monitor.Monitor
	debounce time.Duration

	mu        sync.Mutex
	state     Lifecycle
	theme     *Theme
	gameID    string
	gameType  string
	roster    []string
	turns     *TurnTracker
	last      Result
	scenes    *SceneCache
	busy      bool // one narrative call in flight at most
	republish int64
	startedAt time.Time
}

func NewSession(cfg SessionConfig) *Session {
	timers := cfg.Timers
	if timers == nil {
		timers = timer.NewManager()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Session{
		hubID:     cfg.HubID,
		sessionID: cfg.SessionID,
		channel:   cfg.Channel,
		narrator:  cfg.Narrator,
		renderer:  cfg.Renderer,
		recorder:  cfg.Recorder,
		timers:    timers,
		mon:       cfg.Monitor,
		debounce:  debounce,
		state:     Disconnected,
		theme:     ThemeByCode(DefaultThemeCode),
		turns:     NewTurnTracker(),
		last:      Banner(),
		scenes:    NewSceneCache(),
	}
}

func (s *Session) HubID() string { return s.hubID }

// SessionID is the bot's own participant ID, never part of the roster.
func (s *Session) SessionID() string { return s.sessionID }

func (s *Session) State() Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// GameID identifies the current (or last) game. Empty before the first
// Start.
func (s *Session) GameID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameID
}

func (s *Session) GameType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameType
}

// Roster returns a copy of the participant list in turn order.
func (s *Session) Roster() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := make([]string, len(s.roster))
	copy(roster, s.roster)
	return roster
}

func (s *Session) TurnIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns.Current()
}

func (s *Session) LastResult() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Connect announces the bot and republishes the last result, initially
// the startup banner.
func (s *Session) Connect() {
	s.mu.Lock()
	s.state = Connected
	res := s.last
	s.mu.Unlock()

	s.publish("connect")
	s.process(res)
}

// Disconnect publishes the last result and releases the room channel.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.state = Disconnected
	res := s.last
	s.mu.Unlock()

	s.process(res)
	if err := s.channel.Close(); err != nil {
		logger.Log.Warnf("Room %s: closing channel: %v", s.hubID, err)
	}
}

// Start begins a new game with the given participants. A start while a
// game is running is ignored.
func (s *Session) Start(gameType string, participantIDs []string) {
	s.mu.Lock()
	if s.state == Started {
		logger.Log.Infof("Room %s: the game is already started", s.hubID)
		s.mu.Unlock()
		return
	}
	if s.busy {
		logger.Log.Infof("Room %s: narrative call in flight, dropping start", s.hubID)
		s.mu.Unlock()
		return
	}

	s.theme = ThemeByCode(gameType)
	s.gameType = gameType
	s.roster = nil
	for _, id := range participantIDs {
		if id != s.sessionID && !s.inRosterLocked(id) {
			s.roster = append(s.roster, id)
		}
	}
	s.turns.Reset()
	s.scenes.Clear()
	s.state = Started
	s.gameID = uuid.NewString()
	s.startedAt = time.Now()

	theme := s.theme
	gameID := s.gameID
	players := strings.Join(s.roster, ", ")
	s.busy = true
	s.mu.Unlock()

	logger.Log.Infof("Room %s: starting %s game %s with players [%s]", s.hubID, theme.Name, gameID, players)
	s.text("Creating a new game...")

	res := s.sendNarrative(
		Message{Role: RoleSystem, Content: theme.System},
		Message{Role: RoleUser, Content: theme.Rules},
		Message{Role: RoleUser, Content: "Start. Players: " + players},
	)

	s.mu.Lock()
	if res.Kind == KindOptions {
		s.bindNextPlayerLocked(res.Options)
	}
	s.last = res
	s.busy = false
	s.mu.Unlock()

	s.process(res)
}

// End finishes the running game: scene cache and transcript are cleared,
// the roster is emptied and the startup banner is republished.
func (s *Session) End() {
	s.mu.Lock()
	if s.state != Started {
		logger.Log.Infof("Room %s: the game is not started yet", s.hubID)
		s.mu.Unlock()
		return
	}
	res := s.endLocked("ended")
	s.mu.Unlock()

	s.process(res)
}

// Join adds a participant mid-game. Outside a running game it only
// republishes the startup banner.
func (s *Session) Join(participantID string) {
	s.mu.Lock()
	if s.state != Started {
		s.mu.Unlock()
		s.process(Banner())
		return
	}

	if participantID != s.sessionID && !s.inRosterLocked(participantID) {
		s.roster = append(s.roster, participantID)
	}
	name := s.displayName(participantID)
	s.scheduleRepublishLocked()
	s.mu.Unlock()

	s.text(name + " has joined the game")
}

// Leave removes a participant. Removing the current-turn player advances
// the turn before anything else; draining the roster ends the game.
func (s *Session) Leave(participantID string) {
	s.mu.Lock()
	if s.state != Started {
		logger.Log.Infof("Room %s: the game is not started yet", s.hubID)
		s.mu.Unlock()
		return
	}

	idx := s.rosterIndexLocked(participantID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.roster = append(s.roster[:idx], s.roster[idx+1:]...)
	s.turns.HandleRemoval(idx, len(s.roster))

	name := s.displayName(participantID)

	if len(s.roster) == 0 {
		res := s.endLocked("abandoned")
		s.mu.Unlock()
		s.text(name + " has left the game")
		s.process(res)
		return
	}

	if !s.busy && s.last.Kind == KindOptions {
		s.last.Options.Player = s.roster[s.turns.Current()]
	}
	s.scheduleRepublishLocked()
	s.mu.Unlock()

	s.text(name + " has left the game")
}

// Option handles a player picking one of the A-D options.
func (s *Session) Option(participantID, key string) {
	s.mu.Lock()
	if s.state != Started {
		logger.Log.Infof("Room %s: the game is not started yet", s.hubID)
		s.mu.Unlock()
		return
	}
	if s.busy {
		logger.Log.Infof("Room %s: narrative call in flight, dropping option %s", s.hubID, key)
		s.mu.Unlock()
		return
	}

	optionText := key
	if s.last.Kind == KindOptions && s.last.Options.Options != nil {
		if text, ok := s.last.Options.Options[key]; ok {
			optionText = text
		}
	}
	name := s.displayName(participantID)
	s.busy = true
	s.mu.Unlock()

	s.text(fmt.Sprintf("%s: %s", name, optionText))

	res := s.sendNarrative(Message{
		Role:    RoleUser,
		Content: fmt.Sprintf("%q: %q", participantID, key),
	})
	s.applyNarrative(res)
}

// Msg handles a free-text player action.
func (s *Session) Msg(participantID, text string) {
	s.mu.Lock()
	if s.state != Started {
		logger.Log.Infof("Room %s: the game is not started yet", s.hubID)
		s.mu.Unlock()
		return
	}
	if s.busy {
		logger.Log.Infof("Room %s: narrative call in flight, dropping message", s.hubID)
		s.mu.Unlock()
		return
	}

	name := s.displayName(participantID)
	s.busy = true
	s.mu.Unlock()

	s.text(fmt.Sprintf("%s: %s", name, text))

	res := s.sendNarrative(Message{
		Role:    RoleUser,
		Content: fmt.Sprintf("%s: %s", participantID, text),
	})
	s.applyNarrative(res)
}

// applyNarrative stores a narrative response as the last result. A
// structured response consumes one rotation step and binds the new
// current player; text and error responses leave the turn untouched.
func (s *Session) applyNarrative(res Result) {
	s.mu.Lock()
	if res.Kind == KindOptions {
		s.bindNextPlayerLocked(res.Options)
	}
	s.last = res
	s.busy = false
	s.mu.Unlock()

	s.process(res)
}

// sendNarrative issues one narrative call. Callers must hold the busy
// permit; responses therefore apply in request order.
func (s *Session) sendNarrative(msgs ...Message) Result {
	s.mon.IncNarrativeRequests()
	start := time.Now()
	raw, err := s.narrator.Send(context.Background(), s.sessionID, msgs...)
	s.mon.ObserveNarrativeLatency(time.Since(start))
	if err != nil {
		s.mon.IncNarrativeFailures()
		logger.Log.Errorf("Room %s: narrative call failed: %v", s.hubID, err)
		return ErrorResult(err.Error())
	}
	return ParseResponse(raw)
}

// process publishes a result to the room and, for structured payloads,
// resolves the scene image through the cache or the renderer.
func (s *Session) process(res Result) {
	if res.Kind != KindOptions {
		s.publish(string(res.Kind), res.Text)
		return
	}

	// The retained payload in s.last is shared with handler goroutines;
	// only a private clone is mutated and published here.
	payload := res.Options.Clone()
	s.substituteNames(payload)
	s.publish(string(KindOptions), payload)

	if url, ok := s.scenes.Get(payload.Scene); ok {
		s.mon.IncSkyboxCacheHits()
		s.publish("skybox", url)
		return
	}

	if s.renderer == nil {
		return
	}

	s.mu.Lock()
	theme := s.theme
	gameID := s.gameID
	s.mu.Unlock()

	// New requests void every pending generation on the account first,
	// so a stale completion can never win against this one.
	if err := s.renderer.CancelAll(context.Background()); err != nil {
		logger.Log.Warnf("Room %s: canceling pending skyboxes: %v", s.hubID, err)
	}
	go s.generateScene(gameID, theme, payload.Scene, payload.Backdrop)
}

// generateScene runs one asynchronous skybox generation. The completion
// only applies while the game it was requested for is still running;
// completions arriving after End, or after a new game started, are
// dropped.
func (s *Session) generateScene(gameID string, theme *Theme, scene, backdrop string) {
	prompt := fmt.Sprintf("%s. %s. %s", theme.Name, scene, backdrop)
	url, err := s.renderer.Generate(context.Background(), prompt, theme.StyleID)
	if err != nil {
		s.mon.IncSkyboxFailed()
		logger.Log.Errorf("Room %s: skybox generation failed: %v", s.hubID, err)
		return
	}

	s.mu.Lock()
	alive := s.state == Started && s.gameID == gameID
	if alive {
		s.scenes.Set(scene, url)
	}
	s.mu.Unlock()

	if !alive {
		logger.Log.Infof("Room %s: dropping skybox for scene %q, its game is no longer running", s.hubID, scene)
		return
	}
	s.mon.IncSkyboxGenerated()
	s.publish("skybox", url)
}

// endLocked performs the Started -> Ended transition. Caller holds the
// mutex; the returned banner still has to be published.
func (s *Session) endLocked(outcome string) Result {
	if s.republish != 0 {
		s.timers.Cancel(s.republish)
		s.republish = 0
	}

	if s.recorder != nil {
		record := &models.GameRecord{
			GameID:    s.gameID,
			HubID:     s.hubID,
			GameType:  s.gameType,
			Players:   append([]string(nil), s.roster...),
			Outcome:   outcome,
			Scenes:    s.scenes.Len(),
			StartedAt: s.startedAt,
			EndedAt:   time.Now(),
		}
		go func() {
			if err := s.recorder.SaveOutcome(record); err != nil {
				logger.Log.Errorf("Room %s: saving game record: %v", s.hubID, err)
			}
		}()
	}

	s.scenes.Clear()
	s.narrator.Clear()
	s.roster = nil
	s.turns.Reset()
	s.last = Banner()
	s.state = Ended
	return s.last
}

// scheduleRepublishLocked arms the debounced republish of the last
// result. A pending timer or an in-flight narrative call suppresses it,
// so rapid joins and leaves collapse into a single publish.
func (s *Session) scheduleRepublishLocked() {
	if s.busy || s.republish != 0 {
		return
	}
	s.republish = s.timers.Schedule(s.debounce, s.republishLast)
}

func (s *Session) republishLast() {
	s.mu.Lock()
	s.republish = 0
	if s.state != Started || s.busy {
		s.mu.Unlock()
		return
	}
	res := s.last
	s.mu.Unlock()
	s.process(res)
}

// bindNextPlayerLocked advances the rotation and writes the new current
// player into the payload. Caller holds the mutex.
func (s *Session) bindNextPlayerLocked(payload *OptionsPayload) {
	if len(s.roster) == 0 {
		return
	}
	payload.Player = s.roster[s.turns.Advance(len(s.roster))]
}

// substituteNames replaces participant IDs with display names in the
// user-visible payload text. Best effort: unknown IDs stay verbatim.
func (s *Session) substituteNames(payload *OptionsPayload) {
	for _, id := range s.channel.Users(s.sessionID) {
		name := s.channel.Name(id)
		if name == "" || name == id {
			continue
		}
		payload.Prompt = strings.ReplaceAll(payload.Prompt, id, name)
		payload.Backdrop = strings.ReplaceAll(payload.Backdrop, id, name)
		for key, text := range payload.Options {
			payload.Options[key] = strings.ReplaceAll(text, id, name)
		}
	}
}

func (s *Session) displayName(participantID string) string {
	if name := s.channel.Name(participantID); name != "" {
		return name
	}
	return participantID
}

func (s *Session) inRosterLocked(participantID string) bool {
	return s.rosterIndexLocked(participantID) >= 0
}

func (s *Session) rosterIndexLocked(participantID string) int {
	for i, id := range s.roster {
		if id == participantID {
			return i
		}
	}
	return -1
}

// publish pushes a game command with the given args to the room.
func (s *Session) publish(args ...interface{}) {
	err := s.channel.SendCommand(BotName, Command{Command: "game", Args: args})
	if err != nil {
		logger.Log.Errorf("Room %s: publish failed: %v", s.hubID, err)
	}
}

// text announces a chat-visible game event.
func (s *Session) text(msg string) {
	s.publish(string(KindText), msg)
}

// Say sends a plain chat message into the room, outside the game
// command protocol. Used by operator broadcasts.
func (s *Session) Say(text string) error {
	return s.channel.SendMessage(BotName, text)
}

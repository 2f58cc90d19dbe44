package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/gamebot/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

// MockChannel is a test double for the Channel interface. It records
// every published command.
type MockChannel struct {
	mu       sync.Mutex
	commands []Command
	names    map[string]string
	users    []string
	closed   bool
}

func newMockChannel(users ...string) *MockChannel {
	names := make(map[string]string)
	for _, id := range users {
		names[id] = "name-" + id
	}
	return &MockChannel{names: names, users: users}
}

func (c *MockChannel) SendCommand(from string, body Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, body)
	return nil
}

func (c *MockChannel) SendMessage(from, text string) error { return nil }

func (c *MockChannel) Name(sessionID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.names[sessionID]
}

func (c *MockChannel) Users(excludeID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result []string
	for _, id := range c.users {
		if id != excludeID {
			result = append(result, id)
		}
	}
	return result
}

func (c *MockChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// kindCount counts published commands whose first arg matches kind.
func (c *MockChannel) kindCount(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, cmd := range c.commands {
		if len(cmd.Args) > 0 && cmd.Args[0] == kind {
			count++
		}
	}
	return count
}

func (c *MockChannel) lastOfKind(kind string) (Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.commands) - 1; i >= 0; i-- {
		if len(c.commands[i].Args) > 0 && c.commands[i].Args[0] == kind {
			return c.commands[i], true
		}
	}
	return Command{}, false
}

// MockNarrator is a test double for the Narrator interface. Responses
// are served in order; an empty queue fails the call.
type MockNarrator struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     [][]Message
	cleared   bool
	gate      chan struct{} // when set, Send blocks until the gate closes
}

func (n *MockNarrator) queue(responses ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.responses = append(n.responses, responses...)
}

func (n *MockNarrator) Send(ctx context.Context, sessionID string, msgs ...Message) (string, error) {
	n.mu.Lock()
	gate := n.gate
	n.calls = append(n.calls, msgs)
	n.mu.Unlock()

	if gate != nil {
		<-gate
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return "", n.err
	}
	if len(n.responses) == 0 {
		return "", errors.New("no response queued")
	}
	res := n.responses[0]
	n.responses = n.responses[1:]
	return res, nil
}

func (n *MockNarrator) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cleared = true
}

func (n *MockNarrator) sends() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// MockRenderer is a test double for the Renderer interface.
type MockRenderer struct {
	mu          sync.Mutex
	url         string
	err         error
	generations int
	cancels     int
	gate        chan struct{} // when set, Generate blocks until the gate closes
}

func (r *MockRenderer) Generate(ctx context.Context, prompt string, styleID int) (string, error) {
	r.mu.Lock()
	gate := r.gate
	r.generations++
	url, err := r.url, r.err
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	if url == "" {
		return "https://img.example/skybox.jpg", nil
	}
	return url, nil
}

func (r *MockRenderer) CancelAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
	return nil
}

func (r *MockRenderer) generateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations
}

func optionsJSON(scene string) string {
	return fmt.Sprintf(`{"scene":%q,"prompt":"You stand at a fork.","backdrop":"Mossy stones in fog.","options":{"A":"Go left","B":"Go right","C":"Wait","D":"Run"},"weather":"Clear","time":12,"state":"started","type":"fantasy"}`, scene)
}

type testFixture struct {
	session  *Session
	channel  *MockChannel
	narrator *MockNarrator
	renderer *MockRenderer
}

func newFixture(t *testing.T, users ...string) *testFixture {
	t.Helper()
	channel := newMockChannel(users...)
	narrator := &MockNarrator{}
	renderer := &MockRenderer{}
	session := NewSession(SessionConfig{
		HubID:     "hub1",
		SessionID: "bot",
		Channel:   channel,
		Narrator:  narrator,
		Renderer:  renderer,
		Debounce:  10 * time.Millisecond,
	})
	return &testFixture{session: session, channel: channel, narrator: narrator, renderer: renderer}
}

// startGame drives the session into Started with the given roster.
func (f *testFixture) startGame(t *testing.T, players ...string) {
	t.Helper()
	f.narrator.queue(optionsJSON("fork"))
	f.session.Connect()
	f.session.Start("lotr", players)
	if f.session.State() != Started {
		t.Fatalf("Setup failed: expected Started, got %v", f.session.State())
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSession_StartBindsFirstPlayer(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	if got := f.session.TurnIndex(); got != 0 {
		t.Errorf("Expected turn index 0 after start, got %d", got)
	}
	last := f.session.LastResult()
	if last.Kind != KindOptions {
		t.Fatalf("Expected options result, got %v", last.Kind)
	}
	if last.Options.Player != "P1" {
		t.Errorf("Expected first-turn player P1, got %q", last.Options.Player)
	}
}

func TestSession_StartExcludesOwner(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "bot", "P1", "P2")

	roster := f.session.Roster()
	if len(roster) != 2 {
		t.Fatalf("Expected roster of 2, got %v", roster)
	}
	for _, id := range roster {
		if id == "bot" {
			t.Error("The session owner must never join the roster")
		}
	}
}

func TestSession_StartWhileStartedIsIgnored(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	before := f.session.LastResult()
	roster := f.session.Roster()
	turn := f.session.TurnIndex()
	sends := f.narrator.sends()

	f.session.Start("hp", []string{"P3"})

	if f.narrator.sends() != sends {
		t.Error("Duplicate start must not call the narrator")
	}
	if got := f.session.Roster(); len(got) != len(roster) || got[0] != roster[0] {
		t.Errorf("Duplicate start changed the roster: %v", got)
	}
	if f.session.TurnIndex() != turn {
		t.Error("Duplicate start changed the turn index")
	}
	if after := f.session.LastResult(); after.Kind != before.Kind || after.Options != before.Options {
		t.Error("Duplicate start changed the last result")
	}
}

func TestSession_OptionAdvancesTurn(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	f.narrator.queue(optionsJSON("cave"))
	f.session.Option("P1", "A")

	last := f.session.LastResult()
	if last.Kind != KindOptions {
		t.Fatalf("Expected options result, got %v", last.Kind)
	}
	if last.Options.Player != "P2" {
		t.Errorf("Expected active player P2, got %q", last.Options.Player)
	}
	if got := f.session.TurnIndex(); got != 1 {
		t.Errorf("Expected turn index 1, got %d", got)
	}
}

func TestSession_OptionAnnouncesResolvedText(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	f.narrator.queue(optionsJSON("cave"))
	f.session.Option("P1", "A")

	cmd, ok := f.channel.lastOfKind("text")
	if !ok {
		t.Fatal("Expected a text announcement for the option")
	}
	if cmd.Args[1] != "name-P1: Go left" {
		t.Errorf("Unexpected announcement: %v", cmd.Args[1])
	}
}

func TestSession_OptionPlainTextKeepsTurn(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	f.narrator.queue("The dragon ponders your choice.")
	f.session.Option("P1", "B")

	last := f.session.LastResult()
	if last.Kind != KindText {
		t.Fatalf("Expected text result, got %v", last.Kind)
	}
	if got := f.session.TurnIndex(); got != 0 {
		t.Errorf("A plain-text response must not advance the turn, index moved to %d", got)
	}
}

func TestSession_OptionFailureKeepsSessionStarted(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	f.narrator.err = errors.New("model overloaded")
	f.session.Option("P1", "A")

	last := f.session.LastResult()
	if last.Kind != KindError {
		t.Fatalf("Expected error result, got %v", last.Kind)
	}
	if last.Text != "model overloaded" {
		t.Errorf("Error result should carry the failure description, got %q", last.Text)
	}
	if f.session.State() != Started {
		t.Errorf("A collaborator failure must not end the session, state is %v", f.session.State())
	}
}

func TestSession_OptionDroppedWhileBusy(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	gate := make(chan struct{})
	f.narrator.mu.Lock()
	f.narrator.gate = gate
	f.narrator.mu.Unlock()
	f.narrator.queue(optionsJSON("cave"))

	done := make(chan struct{})
	go func() {
		f.session.Option("P1", "A")
		close(done)
	}()

	waitFor(t, "first option to reach the narrator", func() bool {
		return f.narrator.sends() == 2 // start + in-flight option
	})

	f.session.Option("P2", "B")
	if f.narrator.sends() != 2 {
		t.Error("An option arriving while a call is in flight must be dropped")
	}

	close(gate)
	<-done
}

func TestSession_EndClearsState(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	waitFor(t, "skybox generation", func() bool {
		return f.session.scenes.Len() == 1
	})

	f.session.End()

	if f.session.State() != Ended {
		t.Fatalf("Expected Ended, got %v", f.session.State())
	}
	if f.session.scenes.Len() != 0 {
		t.Error("End must clear the scene cache")
	}
	if f.session.TurnIndex() != 0 {
		t.Error("End must reset the turn index")
	}
	if !f.narrator.cleared {
		t.Error("End must clear the narrator transcript")
	}
	if len(f.session.Roster()) != 0 {
		t.Error("End must clear the roster")
	}
	if f.session.LastResult().Kind != KindStart {
		t.Error("End must restore the startup banner")
	}
}

func TestSession_EndBeforeStartIsIgnored(t *testing.T) {
	f := newFixture(t, "P1")
	f.session.Connect()
	f.session.End()

	if f.session.State() != Connected {
		t.Errorf("End outside Started must not transition, got %v", f.session.State())
	}
}

func TestSession_JoinBeforeStartRepublishesBanner(t *testing.T) {
	f := newFixture(t, "P1")
	f.session.Connect()

	before := f.channel.kindCount("start")
	f.session.Join("P1")

	if got := f.channel.kindCount("start"); got != before+1 {
		t.Errorf("Expected one banner republish, start publishes went %d -> %d", before, got)
	}
	if len(f.session.Roster()) != 0 {
		t.Error("Join before start must not touch the roster")
	}
}

func TestSession_JoinMidGameAddsToRoster(t *testing.T) {
	f := newFixture(t, "P1", "P2", "P3")
	f.startGame(t, "P1", "P2")

	f.session.Join("P3")

	roster := f.session.Roster()
	if len(roster) != 3 || roster[2] != "P3" {
		t.Errorf("Expected P3 appended to the roster, got %v", roster)
	}
	if f.narrator.sends() != 1 {
		t.Error("Join must not call the narrator")
	}

	// Duplicate and owner joins are no-ops.
	f.session.Join("P3")
	f.session.Join("bot")
	if got := f.session.Roster(); len(got) != 3 {
		t.Errorf("Duplicate/owner join changed the roster: %v", got)
	}
}

func TestSession_JoinDebounceCoalesces(t *testing.T) {
	f := newFixture(t, "P1", "P2", "P3", "P4")
	f.startGame(t, "P1", "P2")

	before := f.channel.kindCount("options")
	f.session.Join("P3")
	f.session.Join("P4")

	waitFor(t, "debounced republish", func() bool {
		return f.channel.kindCount("options") > before
	})
	// Allow a second (erroneous) republish to surface before counting.
	time.Sleep(300 * time.Millisecond)

	if got := f.channel.kindCount("options"); got != before+1 {
		t.Errorf("Two joins inside the debounce window must republish once, got %d extra", got-before)
	}
}

func TestSession_LeaveCurrentPlayerAdvancesTurn(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	before := f.channel.kindCount("options")
	f.session.Leave("P1")

	roster := f.session.Roster()
	if len(roster) != 1 || roster[0] != "P2" {
		t.Fatalf("Expected roster [P2], got %v", roster)
	}
	if got := f.session.TurnIndex(); got != 0 {
		t.Errorf("Expected turn index to wrap to 0, got %d", got)
	}

	last := f.session.LastResult()
	if last.Kind != KindOptions || last.Options.Player != "P2" {
		t.Errorf("Expected the next-turn player P2 rebound into the last result, got %+v", last)
	}

	waitFor(t, "debounced republish after leave", func() bool {
		return f.channel.kindCount("options") > before
	})
}

func TestSession_LeaveLastPlayerEndsGame(t *testing.T) {
	f := newFixture(t, "P1")
	f.startGame(t, "P1")

	f.session.Leave("P1")

	if f.session.State() != Ended {
		t.Errorf("Draining the roster must end the game, state is %v", f.session.State())
	}
	if f.session.LastResult().Kind != KindStart {
		t.Error("Ending must restore the startup banner")
	}
}

func TestSession_LeaveBeforeStartIsIgnored(t *testing.T) {
	f := newFixture(t, "P1")
	f.session.Connect()
	f.session.Leave("P1")

	if f.session.State() != Connected {
		t.Errorf("Leave outside Started must be a no-op, got %v", f.session.State())
	}
}

func TestSession_TurnIndexStaysInBounds(t *testing.T) {
	f := newFixture(t, "P1", "P2", "P3", "P4", "P5")
	f.startGame(t, "P1", "P2", "P3")

	steps := []func(){
		func() { f.session.Join("P4") },
		func() { f.session.Leave("P1") },
		func() { f.session.Join("P5") },
		func() { f.session.Leave("P3") },
		func() { f.session.Leave("P4") },
		func() { f.session.Join("P1") },
	}
	for i, step := range steps {
		step()
		size := len(f.session.Roster())
		if size == 0 {
			t.Fatalf("Step %d drained the roster unexpectedly", i)
		}
		if idx := f.session.TurnIndex(); idx < 0 || idx >= size {
			t.Fatalf("Step %d: turn index %d out of bounds for roster size %d", i, idx, size)
		}
	}
}

func TestSession_SceneCacheRoundTrip(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	waitFor(t, "initial skybox generation", func() bool {
		return f.session.scenes.Has("fork")
	})
	if f.renderer.generateCount() != 1 {
		t.Fatalf("Expected one generation, got %d", f.renderer.generateCount())
	}

	// A response revisiting the same scene must reuse the cached image.
	f.narrator.queue(optionsJSON("fork"))
	f.session.Option("P1", "A")

	time.Sleep(100 * time.Millisecond)
	if f.renderer.generateCount() != 1 {
		t.Errorf("A cached scene tag must not be regenerated, got %d generations", f.renderer.generateCount())
	}

	url, ok := f.session.scenes.Get("fork")
	if !ok || url == "" {
		t.Error("The generated image must be retrievable from the cache")
	}
	if got := f.channel.kindCount("skybox"); got < 2 {
		t.Errorf("Expected the cached skybox republished, got %d skybox publishes", got)
	}
}

func TestSession_LateSkyboxCompletionDroppedAfterEnd(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	waitFor(t, "initial skybox generation", func() bool {
		return f.session.scenes.Has("fork")
	})

	gameID := f.session.GameID()
	f.session.End()

	// Simulate a stale completion arriving after End.
	f.session.generateScene(gameID, f.session.theme, "late-scene", "a backdrop")

	if f.session.scenes.Has("late-scene") {
		t.Error("A completion arriving after End must not repopulate the cache")
	}
}

func TestSession_StaleSkyboxFromPreviousGameDropped(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	gate := make(chan struct{})
	f.renderer.gate = gate
	f.startGame(t, "P1", "P2")

	waitFor(t, "first game's generation to start", func() bool {
		return f.renderer.generateCount() == 1
	})

	f.session.End()
	f.narrator.queue(optionsJSON("castle"))
	f.session.Start("lotr", []string{"P1", "P2"})

	// Release both generations; the one requested by the first game
	// must not land in the second game's cache.
	close(gate)
	waitFor(t, "second game's scene", func() bool {
		return f.session.scenes.Has("castle")
	})
	waitFor(t, "both generations to finish", func() bool {
		return f.renderer.generateCount() == 2
	})
	time.Sleep(50 * time.Millisecond)

	if f.session.scenes.Has("fork") {
		t.Error("The previous game's scene leaked into the new game's cache")
	}
}

func TestSession_NameSubstitution(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.narrator.queue(`{"scene":"camp","prompt":"P1 lights a fire.","backdrop":"P2 watches from the trees.","options":{"A":"Help P1","B":"Call P2","C":"Sleep","D":"Leave"},"weather":"Rain","time":22,"state":"started","type":"fantasy"}`)
	f.session.Connect()
	f.session.Start("lotr", []string{"P1", "P2"})

	cmd, ok := f.channel.lastOfKind("options")
	if !ok {
		t.Fatal("Expected an options publish")
	}
	payload, ok := cmd.Args[1].(*OptionsPayload)
	if !ok {
		t.Fatalf("Expected an *OptionsPayload, got %T", cmd.Args[1])
	}
	if payload.Prompt != "name-P1 lights a fire." {
		t.Errorf("Prompt not substituted: %q", payload.Prompt)
	}
	if payload.Options["A"] != "Help name-P1" {
		t.Errorf("Option text not substituted: %q", payload.Options["A"])
	}
}

func TestSession_PublishedOptionsAreClones(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	cmd, ok := f.channel.lastOfKind("options")
	if !ok {
		t.Fatal("Expected an options publish")
	}
	published, ok := cmd.Args[1].(*OptionsPayload)
	if !ok {
		t.Fatalf("Expected an *OptionsPayload, got %T", cmd.Args[1])
	}

	last := f.session.LastResult()
	if published == last.Options {
		t.Fatal("Published payload must not alias the retained result")
	}
	published.Options["A"] = "mutated"
	if f.session.LastResult().Options.Options["A"] == "mutated" {
		t.Error("Mutating a published payload must not reach the retained result")
	}
}

func TestSession_RepublishConcurrentWithOptions(t *testing.T) {
	f := newFixture(t, "P1", "P2")
	f.startGame(t, "P1", "P2")

	const rounds = 50
	for i := 0; i < rounds; i++ {
		f.narrator.queue(optionsJSON("fork"))
	}

	// The debounce callback republishes the retained result while
	// options keep rewriting it; both paths must stay isolated.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < rounds; i++ {
			f.session.republishLast()
		}
	}()
	for i := 0; i < rounds; i++ {
		f.session.Option("P1", "A")
	}
	<-done

	if f.session.State() != Started {
		t.Errorf("Expected Started after concurrent traffic, got %v", f.session.State())
	}
}

func TestSession_DisconnectClosesChannel(t *testing.T) {
	f := newFixture(t, "P1")
	f.session.Connect()
	f.session.Disconnect()

	if f.session.State() != Disconnected {
		t.Errorf("Expected Disconnected, got %v", f.session.State())
	}
	if !f.channel.closed {
		t.Error("Disconnect must release the room channel")
	}
}

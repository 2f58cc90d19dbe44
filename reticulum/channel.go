package reticulum

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/wfunc/gamebot/logger"
	"github.com/wfunc/gamebot/network"
)

const heartbeatInterval = 30 * time.Second

// InboundCommand is the structured body of a command message from the
// room, e.g. {command: "game", args: ["start", "lotr"]}.
type InboundCommand struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Handler receives room events. Callbacks run synchronously on the
// channel's read loop, so a slow handler delays further presence and
// message processing for that room. Each room has its own socket, so
// one room's work never stalls another.
type Handler interface {
	HandleConnect(hubID, sessionID string)
	HandleDisconnect(hubID string)
	HandleJoin(hubID, sessionID, displayName, presence string)
	HandleMoved(hubID, sessionID, presence, previousPresence string)
	HandleLeave(hubID, sessionID string)
	HandleMessage(hubID, senderID string, body InboundCommand)
}

// Channel is one Hubs room subscription over a Phoenix socket.
type Channel struct {
	hubID       string
	topic       string
	displayName string
	conn        *network.Conn
	presence    *presenceState

	mu        sync.Mutex
	handler   Handler
	nextRef   int
	joinRef   string
	pending   map[string]chan reply
	sessionID string
	closed    bool
}

func newChannel(conn *network.Conn, hubID, displayName string) *Channel {
	return &Channel{
		hubID:       hubID,
		topic:       "hub:" + hubID,
		displayName: displayName,
		conn:        conn,
		presence:    newPresenceState(),
		pending:     make(map[string]chan reply),
	}
}

func (c *Channel) HubID() string { return c.hubID }

// SessionID is the bot's own participant ID, assigned by the join reply.
func (c *Channel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Join subscribes to the hub topic. It fails on an error reply, on a
// transport error, or when ctx expires; a failed join reports a
// disconnect to the handler rather than hanging.
func (c *Channel) Join(ctx context.Context, handler Handler) (string, error) {
	c.mu.Lock()
	c.handler = handler
	ref := c.makeRefLocked()
	c.joinRef = ref
	replyCh := make(chan reply, 1)
	c.pending[ref] = replyCh
	c.mu.Unlock()

	go c.readLoop()

	payload, _ := json.Marshal(map[string]interface{}{
		"profile": map[string]string{"displayName": c.displayName},
		"context": map[string]bool{"mobile": false, "hmd": false},
	})
	err := c.conn.WriteJSON(&frame{
		JoinRef: ref,
		Ref:     ref,
		Topic:   c.topic,
		Event:   "phx_join",
		Payload: payload,
	})
	if err != nil {
		c.dropPending(ref)
		c.notifyDisconnect()
		return "", fmt.Errorf("sending phx_join: %w", err)
	}

	select {
	case rep := <-replyCh:
		if rep.Status != "ok" {
			c.notifyDisconnect()
			return "", fmt.Errorf("joining %s: status %q", c.topic, rep.Status)
		}
		var response struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(rep.Response, &response); err != nil {
			c.notifyDisconnect()
			return "", fmt.Errorf("decoding join reply: %w", err)
		}
		c.mu.Lock()
		c.sessionID = response.SessionID
		c.mu.Unlock()

		c.conn.SetHeartbeat(heartbeatInterval)
		go c.heartbeatLoop()

		if handler != nil {
			handler.HandleConnect(c.hubID, response.SessionID)
		}
		return response.SessionID, nil
	case <-ctx.Done():
		c.dropPending(ref)
		c.notifyDisconnect()
		return "", fmt.Errorf("joining %s: %w", c.topic, ctx.Err())
	}
}

func (c *Channel) dropPending(ref string) {
	c.mu.Lock()
	delete(c.pending, ref)
	c.mu.Unlock()
}

// SendCommand pushes a command-typed room message.
func (c *Channel) SendCommand(from string, body interface{}) error {
	if body == nil {
		return nil
	}
	return c.push("message", map[string]interface{}{
		"from": from,
		"body": body,
		"type": "command",
	})
}

// SendMessage pushes a chat message visible in the room's chat box.
func (c *Channel) SendMessage(from, text string) error {
	return c.push("message", map[string]interface{}{
		"from": from,
		"body": text,
		"type": "chat",
	})
}

// Name returns the most recent display name in presence, or "".
func (c *Channel) Name(sessionID string) string {
	return c.presence.name(sessionID)
}

// Users lists present participant IDs, excluding the given one.
func (c *Channel) Users(excludeID string) []string {
	return c.presence.users(excludeID)
}

// Close leaves the topic and tears down the socket.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ref := c.makeRefLocked()
	joinRef := c.joinRef
	c.mu.Unlock()

	_ = c.conn.WriteJSON(&frame{
		JoinRef: joinRef,
		Ref:     ref,
		Topic:   c.topic,
		Event:   "phx_leave",
	})
	return c.conn.Close()
}

func (c *Channel) push(event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("channel %s is closed", c.topic)
	}
	ref := c.makeRefLocked()
	joinRef := c.joinRef
	c.mu.Unlock()

	return c.conn.WriteJSON(&frame{
		JoinRef: joinRef,
		Ref:     ref,
		Topic:   c.topic,
		Event:   event,
		Payload: raw,
	})
}

func (c *Channel) makeRefLocked() string {
	c.nextRef++
	return strconv.Itoa(c.nextRef)
}

func (c *Channel) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		ref := c.makeRefLocked()
		c.mu.Unlock()

		err := c.conn.WriteJSON(&frame{
			Ref:   ref,
			Topic: "phoenix",
			Event: "heartbeat",
		})
		if err != nil {
			return
		}
	}
}

func (c *Channel) readLoop() {
	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				logger.Log.Warnf("Room %s: socket read failed: %v", c.hubID, err)
				c.notifyDisconnect()
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Log.Warnf("Room %s: dropping malformed frame: %v", c.hubID, err)
			continue
		}
		c.dispatch(&f)
	}
}

func (c *Channel) dispatch(f *frame) {
	switch f.Event {
	case "phx_reply":
		var rep reply
		if err := json.Unmarshal(f.Payload, &rep); err != nil {
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[f.Ref]
		if ok {
			delete(c.pending, f.Ref)
		}
		c.mu.Unlock()
		if ok {
			ch <- rep
		}

	case "presence_state":
		if err := c.presence.replace(f.Payload); err != nil {
			logger.Log.Warnf("Room %s: bad presence state: %v", c.hubID, err)
		}

	case "presence_diff":
		changes, err := c.presence.applyDiff(f.Payload)
		if err != nil {
			logger.Log.Warnf("Room %s: bad presence diff: %v", c.hubID, err)
			return
		}
		c.emitPresenceChanges(changes)

	case "message":
		c.dispatchMessage(f.Payload)

	case "phx_error", "phx_close":
		c.notifyDisconnect()
	}
}

func (c *Channel) emitPresenceChanges(changes []presenceChange) {
	handler := c.currentHandler()
	if handler == nil {
		return
	}
	for _, change := range changes {
		switch {
		case change.Joined:
			handler.HandleJoin(c.hubID, change.SessionID, change.DisplayName, change.Presence)
		case change.Left:
			handler.HandleLeave(c.hubID, change.SessionID)
		case change.Previous == "lobby" && change.Presence != "" && change.Presence != change.Previous:
			handler.HandleMoved(c.hubID, change.SessionID, change.Presence, change.Previous)
		}
	}
}

func (c *Channel) dispatchMessage(payload json.RawMessage) {
	handler := c.currentHandler()
	if handler == nil {
		return
	}

	var msg struct {
		SessionID string          `json:"session_id"`
		Type      string          `json:"type"`
		Body      json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}

	// Chat messages carry a plain string body; only structured command
	// bodies are routed.
	var body InboundCommand
	if err := json.Unmarshal(msg.Body, &body); err != nil || body.Command == "" {
		return
	}
	handler.HandleMessage(c.hubID, msg.SessionID, body)
}

func (c *Channel) currentHandler() Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler
}

func (c *Channel) notifyDisconnect() {
	handler := c.currentHandler()
	if handler != nil {
		handler.HandleDisconnect(c.hubID)
	}
}

package skybox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wfunc/gamebot/network"
)

// Pusher protocol 7 over a plain websocket. Only the handful of frames
// the completion flow needs are implemented.

const pusherActivityTimeout = 120 * time.Second

type pusherFrame struct {
	Event   string `json:"event"`
	Channel string `json:"channel,omitempty"`
	// Pusher double-encodes the payload as a JSON string.
	Data string `json:"data,omitempty"`
}

type completionEvent struct {
	Status       string `json:"status"`
	FileURL      string `json:"file_url"`
	ErrorMessage string `json:"error_message"`
}

func pusherEndpoint(cluster, key string) string {
	return fmt.Sprintf("wss://ws-%s.pusher.com/app/%s?protocol=7&client=gamebot&version=1.0", cluster, key)
}

// awaitCompletion subscribes to the generation's channel and blocks
// until the named event reports a terminal status or ctx expires.
func (g *Generator) awaitCompletion(ctx context.Context, channel, event string) (string, error) {
	conn, err := network.Dial(g.pusherURL, nil)
	if err != nil {
		return "", fmt.Errorf("dialing push endpoint: %w", err)
	}
	defer conn.Close()
	conn.SetHeartbeat(pusherActivityTimeout)

	type outcome struct {
		fileURL string
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		fileURL, err := waitForEvent(conn, channel, event)
		done <- outcome{fileURL: fileURL, err: err}
	}()

	select {
	case result := <-done:
		return result.fileURL, result.err
	case <-ctx.Done():
		conn.Close()
		return "", ctx.Err()
	}
}

func waitForEvent(conn *network.Conn, channel, event string) (string, error) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("push connection lost: %w", err)
		}
		var f pusherFrame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}

		switch f.Event {
		case "pusher:connection_established":
			sub, _ := json.Marshal(map[string]string{"channel": channel})
			err := conn.WriteJSON(&pusherFrame{Event: "pusher:subscribe", Data: string(sub)})
			if err != nil {
				return "", fmt.Errorf("subscribing to %s: %w", channel, err)
			}
		case "pusher:ping":
			_ = conn.WriteJSON(&pusherFrame{Event: "pusher:pong"})
		case "pusher:error":
			return "", fmt.Errorf("push error: %s", f.Data)
		case event:
			if f.Channel != channel {
				continue
			}
			var completion completionEvent
			if err := json.Unmarshal([]byte(f.Data), &completion); err != nil {
				return "", fmt.Errorf("decoding completion event: %w", err)
			}
			switch completion.Status {
			case "complete":
				return completion.FileURL, nil
			case "failed", "error":
				msg := completion.ErrorMessage
				if msg == "" {
					msg = completion.Status
				}
				return "", fmt.Errorf("skybox generation failed: %s", msg)
			}
		}
	}
}

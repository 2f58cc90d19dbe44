package reticulum

import (
	"encoding/json"
	"fmt"
)

// Phoenix V2 serializer frame: [join_ref, ref, topic, event, payload].
type frame struct {
	JoinRef string
	Ref     string
	Topic   string
	Event   string
	Payload json.RawMessage
}

func (f *frame) MarshalJSON() ([]byte, error) {
	payload := f.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}
	return json.Marshal([]interface{}{
		nullable(f.JoinRef), nullable(f.Ref), f.Topic, f.Event, payload,
	})
}

func (f *frame) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 5 {
		return fmt.Errorf("phoenix frame has %d elements, want 5", len(parts))
	}
	if err := unmarshalRef(parts[0], &f.JoinRef); err != nil {
		return err
	}
	if err := unmarshalRef(parts[1], &f.Ref); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[2], &f.Topic); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[3], &f.Event); err != nil {
		return err
	}
	f.Payload = parts[4]
	return nil
}

// Refs are strings on the wire but null for server-pushed events.
func unmarshalRef(data json.RawMessage, ref *string) error {
	if string(data) == "null" {
		*ref = ""
		return nil
	}
	return json.Unmarshal(data, ref)
}

func nullable(ref string) interface{} {
	if ref == "" {
		return nil
	}
	return ref
}

// reply is the payload of a phx_reply frame.
type reply struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

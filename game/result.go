package game

import "encoding/json"

// Kind tags the outbound result payload. The wire value is the first
// element of the published command args.
type Kind string

const (
	KindText    Kind = "text"
	KindOptions Kind = "options"
	KindError   Kind = "error"
	KindStart   Kind = "start"
)

type Weather string

const (
	WeatherClear Weather = "Clear"
	WeatherRain  Weather = "Rain"
	WeatherWind  Weather = "Wind"
	WeatherSnow  Weather = "Snow"
)

type Genre string

const (
	GenreFantasy Genre = "fantasy"
	GenreAction  Genre = "action"
	GenreTerror  Genre = "terror"
)

// OptionsPayload is the structured narrative response driving the game UI.
type OptionsPayload struct {
	Scene    string            `json:"scene"`
	Prompt   string            `json:"prompt"`
	Backdrop string            `json:"backdrop"`
	Player   string            `json:"player"`
	Options  map[string]string `json:"options"`
	Weather  Weather           `json:"weather"`
	Time     float64           `json:"time"`
	State    string            `json:"state"`
	Type     Genre             `json:"type"`
}

// Clone copies the payload and its options map. Published payloads are
// clones; the retained last result stays private to the session mutex.
func (p *OptionsPayload) Clone() *OptionsPayload {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Options != nil {
		clone.Options = make(map[string]string, len(p.Options))
		for key, text := range p.Options {
			clone.Options[key] = text
		}
	}
	return &clone
}

// Result is the tagged union of everything the session can publish:
// the startup banner, free text, a structured options payload, or an
// error description.
type Result struct {
	Kind    Kind
	Text    string
	Options *OptionsPayload
}

func Banner() Result {
	return Result{Kind: KindStart, Text: WelcomeMessage}
}

func TextResult(text string) Result {
	return Result{Kind: KindText, Text: text}
}

func ErrorResult(text string) Result {
	return Result{Kind: KindError, Text: text}
}

func OptionsResult(payload *OptionsPayload) Result {
	return Result{Kind: KindOptions, Options: payload}
}

// Content returns the value published as the second command arg.
func (r Result) Content() interface{} {
	if r.Kind == KindOptions {
		return r.Options
	}
	return r.Text
}

// ParseResponse interprets a raw narrative reply. Valid JSON becomes a
// structured options result; anything else is carried as plain text.
func ParseResponse(raw string) Result {
	var payload OptionsPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return TextResult(raw)
	}
	return OptionsResult(&payload)
}

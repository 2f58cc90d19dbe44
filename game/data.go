package game

import "strings"

// WelcomeMessage is the startup banner shown before a game starts and
// after one ends.
const WelcomeMessage = `Hi, I'm you adventure game provider! Click the start button below to start a new game with the current players in the room.`

const systemPrompt = `
You are a text-based video game based on %THEME%.
`

const rulesPrompt = `
this are the game rules:
- You'll prompt the player with 4 options: A, B, C and D.
- When I say "end" the game ends.
- The game starts when I say "start".
- If a player dies, they don't play anymore. If all players die, the game ends.
- If a player leaves the game, they don't play anymore. If all players leave, the game ends.
Your output must always be ECMA-404 standard JSON. Follow this example:
{
  scene: "tag for the place where the action is happening",
  prompt: "the game prompt in around 40 words",
  backdrop: "description of the surroundings in around 20-30 words",
  options: { A: "option A", B: "option B", C: "option C", D: "option D" },
  state: "state of the game: started or ended",
  weather: "the weather. Must be one of these: Rain, Wind, Clear or Snow",
  time: "time of the day as a number from 0 to 24",
  type: "genre. Must be one of these: fantasy, action or terror"
}
Update the JSON "scene" every time the scene changes.
You always have to provide 4 options.
`

// Theme binds a game type to its framing prompt and the skybox visual
// style used for its scenes.
type Theme struct {
	Name    string
	StyleID int
	System  string
	Rules   string
}

func newTheme(name string, styleID int, subject string) *Theme {
	return &Theme{
		Name:    name,
		StyleID: styleID,
		System:  strings.Replace(systemPrompt, "%THEME%", subject, 1),
		Rules:   rulesPrompt,
	}
}

var themes = map[string]*Theme{
	"lotr":   newTheme("Lord Of The Rings", 2, "the Lord Of The Rings books"),
	"hp":     newTheme("Harry Potter", 5, "the Harry Potter books"),
	"es":     newTheme("Elder Scrolls", 20, "the Elder Scrolls games"),
	"cj":     newTheme("Conjuring", 35, "the Conjuring movies"),
	"sw":     newTheme("Star Wars", 10, "the Star Wars movies"),
	"db":     newTheme("Dragon Ball", 3, "the Dragon Ball manga"),
	"naruto": newTheme("Naruto", 24, "the Naruto anime"),
	"dune":   newTheme("Dune", 32, "the Dune books"),
	"br":     newTheme("Blade Runner", 35, "the Blade Runner book"),
}

// DefaultThemeCode is used when a start request names an unknown type.
const DefaultThemeCode = "lotr"

// ThemeByCode resolves a game type code. Unknown codes fall back to the
// default theme so a typo in a start command never crashes a session.
func ThemeByCode(code string) *Theme {
	if theme, ok := themes[code]; ok {
		return theme
	}
	return themes[DefaultThemeCode]
}

// ThemeCodes lists the known game type codes.
func ThemeCodes() []string {
	codes := make([]string, 0, len(themes))
	for code := range themes {
		codes = append(codes, code)
	}
	return codes
}

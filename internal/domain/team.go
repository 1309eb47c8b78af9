package domain

// Team identifies a party on the game server. Zero means no team; the
// server itself never validates the value, so out-of-range teams are
// representable and carried through untouched.
type Team int

const (
	TeamNone Team = iota
	TeamRed
	TeamGreen
	TeamBlue
	TeamYellow
	TeamPink
)

// Color is an RGB display color used for chat messages
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Fixed team palette from the game client
var (
	ColorWhite  = Color{255, 255, 255}
	ColorRed    = Color{230, 40, 20}
	ColorGreen  = Color{85, 255, 160}
	ColorBlue   = Color{75, 190, 255}
	ColorYellow = Color{255, 240, 20}
	ColorPink   = Color{255, 120, 255}
)

var teamColors = map[Team]Color{
	TeamNone:   ColorWhite,
	TeamRed:    ColorRed,
	TeamGreen:  ColorGreen,
	TeamBlue:   ColorBlue,
	TeamYellow: ColorYellow,
	TeamPink:   ColorPink,
}

var teamNames = map[Team]string{
	TeamRed:    "red",
	TeamGreen:  "green",
	TeamBlue:   "blue",
	TeamYellow: "yellow",
	TeamPink:   "pink",
}

// Name returns the display name of the team ("red", "green", ...).
// TeamNone and out-of-range values have no name and return "".
func (t Team) Name() string {
	return teamNames[t]
}

// Color returns the team's chat color, or white for TeamNone and
// out-of-range values.
func (t Team) Color() Color {
	if c, ok := teamColors[t]; ok {
		return c
	}
	return ColorWhite
}

// ChangeMessage returns the broadcast text suffix for a team change.
// Out-of-range values map to "" rather than an error so a bad team
// number never blocks the event.
func (t Team) ChangeMessage() string {
	switch t {
	case TeamNone:
		return "is no longer on a party."
	case TeamRed, TeamGreen, TeamBlue, TeamYellow, TeamPink:
		return "has joined the " + t.Name() + " party."
	default:
		return ""
	}
}

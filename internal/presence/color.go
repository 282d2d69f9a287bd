package presence

import (
	"hash/fnv"
	"math/rand/v2"
)

// Palette holds the display colors handed out to connections.
var Palette = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#96CEB4",
	"#FFEAA7",
	"#DDA0DD",
	"#98D8C8",
}

// ColorMode selects how colors are assigned.
type ColorMode string

const (
	// ColorRandom draws a fresh color for every connection, so a user who
	// reconnects may come back in a different color.
	ColorRandom ColorMode = "random"
	// ColorStable derives the color from the user id.
	ColorStable ColorMode = "stable"
)

// ColorPicker assigns a display color for a joining user.
type ColorPicker interface {
	Pick(userID string) string
}

// NewColorPicker returns the picker for mode. Unknown modes fall back to random.
func NewColorPicker(mode ColorMode) ColorPicker {
	if mode == ColorStable {
		return stablePicker{}
	}
	return randomPicker{}
}

type randomPicker struct{}

func (randomPicker) Pick(string) string {
	return Palette[rand.IntN(len(Palette))]
}

type stablePicker struct{}

func (stablePicker) Pick(userID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return Palette[h.Sum32()%uint32(len(Palette))]
}

package domain

import (
	"strings"
	"unicode"
)

// CarModels is the fixed set of selectable vehicles. The first entry is the
// default for missing or unrecognized input.
var CarModels = []string{"cla", "gtr", "kart", "taxi", "truck"}

// Palette is the fixed set of car colors assigned at join time
var Palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8",
	"#f58231", "#911eb4", "#42d4f4", "#f032e6",
	"#bfef45", "#fabed4", "#469990", "#9a6324",
}

// DefaultName is used when a player name is empty after sanitization
const DefaultName = "Racer"

// maxNameLength bounds display names in runes
const maxNameLength = 20

// NormalizeCarModel returns model if it is a known car, otherwise the default
func NormalizeCarModel(model string) string {
	for _, m := range CarModels {
		if m == model {
			return model
		}
	}
	return CarModels[0]
}

// SanitizeName strips markup-capable and control characters from a display
// name, collapses whitespace, and bounds its length. An empty result falls
// back to DefaultName.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`<>&"'`+"`", r):
			// dropped: usable for markup injection client-side
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	if runes := []rune(cleaned); len(runes) > maxNameLength {
		cleaned = string(runes[:maxNameLength])
	}
	if cleaned == "" {
		return DefaultName
	}
	return cleaned
}

// PickColor chooses a palette color not present in used, falling back to a
// deterministic cyclic reuse once the palette is exhausted. ordinal is the
// joining player's position in the room's join order.
func PickColor(used []string, ordinal int) string {
	for _, c := range Palette {
		taken := false
		for _, u := range used {
			if u == c {
				taken = true
				break
			}
		}
		if !taken {
			return c
		}
	}
	return Palette[ordinal%len(Palette)]
}

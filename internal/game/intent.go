package game

import (
	"regexp"
	"strings"
)

// IntentKind distinguishes a final guess from an ordinary question.
type IntentKind int

const (
	IntentQuestion IntentKind = iota
	IntentFinalGuess
)

// Intent is the classification of one line of player input. For a final
// guess, Guess holds the matched active character.
type Intent struct {
	Kind  IntentKind
	Guess Character
}

// finalGuessPattern matches guess phrasing like "Is it Bella?" or
// "is your character dana". The trailing question mark is optional.
var finalGuessPattern = regexp.MustCompile(`(?i)^\s*is\s+(?:it|the\s+person|the\s+character|your\s+character)\s+(.+?)\s*\??\s*$`)

// ClassifyIntent decides whether the player's text is a final guess at one
// of the active characters. A phrase that matches the guess pattern but
// names no actual character falls back to an ordinary question rather than
// burning the game on a typo.
func ClassifyIntent(text string, active []Character) Intent {
	m := finalGuessPattern.FindStringSubmatch(text)
	if m == nil {
		return Intent{Kind: IntentQuestion}
	}
	name := strings.TrimSpace(m[1])
	if c, ok := findByName(active, name); ok {
		return Intent{Kind: IntentFinalGuess, Guess: c}
	}
	return Intent{Kind: IntentQuestion}
}

// parseGuessName extracts the character name from an AI final-guess question
// of the form "Is your character <name>?".
func parseGuessName(question string) string {
	m := finalGuessPattern.FindStringSubmatch(question)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

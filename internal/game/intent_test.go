package game

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var intentRoster = []Character{
	{ID: "alex", Name: "Alex"},
	{ID: "bella", Name: "Bella"},
	{ID: "cid", Name: "Cid"},
	{ID: "dana", Name: "Dana"},
	{ID: "eli", Name: "Eli"},
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		kind  IntentKind
		guess string
	}{
		{"plain guess", "Is it Bella?", IntentFinalGuess, "bella"},
		{"no question mark", "Is it Bella", IntentFinalGuess, "bella"},
		{"lowercase", "is it bella?", IntentFinalGuess, "bella"},
		{"uppercase", "IS IT BELLA?", IntentFinalGuess, "bella"},
		{"the person", "Is the person Dana?", IntentFinalGuess, "dana"},
		{"the character", "is the character Cid", IntentFinalGuess, "cid"},
		{"your character", "Is your character Eli?", IntentFinalGuess, "eli"},
		{"leading whitespace", "  is it Alex?  ", IntentFinalGuess, "alex"},
		{"unknown name falls back", "Is it Zorro?", IntentQuestion, ""},
		{"ordinary question", "Is your character wearing glasses?", IntentQuestion, ""},
		{"feature question with it", "does it have a hat?", IntentQuestion, ""},
		{"empty", "", IntentQuestion, ""},
		{"name mid-sentence only", "I wonder if it is Bella or not", IntentQuestion, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := ClassifyIntent(tt.text, intentRoster)
			assert.Equal(t, tt.kind, intent.Kind)
			if tt.kind == IntentFinalGuess {
				assert.Equal(t, tt.guess, intent.Guess.ID)
			}
		})
	}
}

// A name that exactly matches an active character must classify as a guess
// in any letter case, never as a normal question.
func TestClassifyIntent_RoundTrip(t *testing.T) {
	variants := []string{"Is it %s?", "is it %s", "IS THE CHARACTER %s?", "is your character %s?"}
	for _, c := range intentRoster {
		for _, v := range variants {
			text := fmt.Sprintf(v, c.Name)
			intent := ClassifyIntent(text, intentRoster)
			assert.Equal(t, IntentFinalGuess, intent.Kind, "text %q", text)
			assert.Equal(t, c.ID, intent.Guess.ID, "text %q", text)
		}
	}
}

func TestParseGuessName(t *testing.T) {
	assert.Equal(t, "Dana", parseGuessName("Is your character Dana?"))
	assert.Equal(t, "", parseGuessName("Is your character wearing a hat? Maybe.\nNot a guess."))
	assert.Equal(t, "", parseGuessName(""))
}

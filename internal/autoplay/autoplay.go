// Package autoplay drives a complete game without a human: it plays the
// player's side with a simple best-split policy over the roster's trait
// table, answering the AI truthfully. Used by the simulate command and the
// standalone harness to exercise the whole engine end to end.
package autoplay

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/brechtDR/ai-guess-who/internal/game"
	"github.com/brechtDR/ai-guess-who/internal/roster"
)

// maxTurns caps a runaway game. Each round of play spans several loop
// iterations (ask, end turn, review, answer), so this is generous.
const maxTurns = 40

// questions maps each trait the scripted player knows about to the question
// it asks.
var questions = map[string]string{
	"glasses":    "Is your character wearing glasses?",
	"hat":        "Is your character wearing a hat?",
	"beard":      "Does your character have a beard?",
	"earrings":   "Is your character wearing earrings?",
	"blond hair": "Does your character have blond hair?",
}

// Run plays one full game on the engine, printing the transcript to out.
// The engine must not have a game in progress.
func Run(ctx context.Context, eng *game.Engine, chars []roster.Character, out io.Writer) error {
	traits := roster.Traits(chars)

	if err := eng.StartGame(ctx, roster.GameCharacters(chars)); err != nil {
		return fmt.Errorf("starting game: %w", err)
	}

	remaining := make([]roster.Character, len(chars))
	copy(remaining, chars)
	asked := make(map[string]bool)
	printed := 0

	for turn := 0; turn < maxTurns; turn++ {
		printed = flush(eng, out, printed)

		switch eng.State() {
		case game.StatePlayerAsking:
			text, trait := nextQuestion(remaining, asked)
			fmt.Fprintf(out, ">> player asks: %s\n", text)
			if err := eng.SubmitPlayerQuestion(ctx, text); err != nil {
				return err
			}
			if trait != "" && eng.State() == game.StatePlayerEliminating {
				yes := lastAISaidYes(eng)
				remaining = filterByTrait(remaining, traits, trait, yes)
				for _, c := range chars {
					if !contains(remaining, c.ID) && !eng.PlayerEliminated()[c.ID] {
						if err := eng.ToggleOwnElimination(c.ID); err != nil {
							return err
						}
					}
				}
			}

		case game.StatePlayerEliminating:
			if err := eng.EndTurn(ctx); err != nil {
				return err
			}

		case game.StateReviewingAnalysis:
			if err := eng.ConfirmAnalysisReview(); err != nil {
				return err
			}

		case game.StateWaitingForAnswer:
			var answer game.Answer
			if eng.IsAIFinalGuess() {
				answer = game.Answer(strings.Contains(
					strings.ToLower(eng.LastAIQuestion()),
					strings.ToLower(eng.PlayerSecret().Name)))
			} else {
				answer = truthfulAnswer(eng.LastAIQuestion(), traits[eng.PlayerSecret().Name])
			}
			fmt.Fprintf(out, ">> player answers: %t\n", bool(answer))
			if err := eng.SubmitPlayerAnswer(answer); err != nil {
				return err
			}

		case game.StateGameOver:
			flush(eng, out, printed)
			fmt.Fprintf(out, "winner: %s (%s)\n", eng.Winner(), eng.WinReason())
			return nil

		default:
			return fmt.Errorf("unexpected state %s", eng.State())
		}
	}

	return fmt.Errorf("game did not finish within %d turns", maxTurns)
}

// nextQuestion picks the unasked trait splitting the scripted player's
// candidate set best, or a final guess once one candidate remains.
func nextQuestion(remaining []roster.Character, asked map[string]bool) (text, trait string) {
	if len(remaining) == 1 {
		return fmt.Sprintf("Is it %s?", remaining[0].Name), ""
	}

	traits := make([]string, 0, len(questions))
	for t := range questions {
		traits = append(traits, t)
	}
	sort.Strings(traits)

	best := ""
	bestDist := len(remaining) + 1
	for _, t := range traits {
		if asked[t] {
			continue
		}
		n := 0
		for _, c := range remaining {
			if hasTrait(c.Traits, t) {
				n++
			}
		}
		if n == 0 || n == len(remaining) {
			continue
		}
		if dist := abs(2*n - len(remaining)); dist < bestDist {
			best = t
			bestDist = dist
		}
	}
	if best == "" {
		// Nothing left to discriminate on; guess the first candidate.
		return fmt.Sprintf("Is it %s?", remaining[0].Name), ""
	}
	asked[best] = true
	return questions[best], best
}

// truthfulAnswer answers the AI's question honestly from the secret's
// traits.
func truthfulAnswer(question string, secretTraits []string) game.Answer {
	lower := strings.ToLower(question)
	for trait, q := range questions {
		if strings.EqualFold(question, q) || strings.Contains(lower, trait) {
			if hasTrait(secretTraits, trait) {
				return game.AnswerYes
			}
		}
	}
	return game.AnswerNo
}

func filterByTrait(remaining []roster.Character, traits map[string][]string, trait string, has bool) []roster.Character {
	kept := remaining[:0]
	for _, c := range remaining {
		if hasTrait(traits[c.Name], trait) == has {
			kept = append(kept, c)
		}
	}
	return kept
}

func flush(eng *game.Engine, out io.Writer, printed int) int {
	msgs := eng.Messages()
	for ; printed < len(msgs); printed++ {
		fmt.Fprintf(out, "[%s] %s\n", msgs[printed].Sender, msgs[printed].Text)
	}
	return printed
}

func lastAISaidYes(eng *game.Engine) bool {
	msgs := eng.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == game.SenderAI {
			return strings.HasPrefix(msgs[i].Text, "Yes")
		}
	}
	return false
}

func hasTrait(traits []string, trait string) bool {
	for _, t := range traits {
		if t == trait {
			return true
		}
	}
	return false
}

func contains(chars []roster.Character, id string) bool {
	for _, c := range chars {
		if c.ID == id {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

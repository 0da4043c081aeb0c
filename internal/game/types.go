package game

import "strings"

// Character is a single face on the board. The image payload is required
// before a game can start; the engine references characters by id and never
// mutates them.
type Character struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Image []byte `yaml:"-"`
}

// Sender identifies who produced a chat message.
type Sender string

const (
	SenderPlayer Sender = "player"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
)

// Message is one entry in the append-only game log. The log is the only
// conversational context the model sees, so insertion order matters.
type Message struct {
	Sender Sender
	Text   string
}

// State is the current position in the turn cycle.
type State int

const (
	StateSetup State = iota
	StateCustomSetup
	StatePlayerAsking
	StatePlayerEliminating
	StateAITurn
	StateReviewingAnalysis
	StateWaitingForAnswer
	StateGameOver
)

func (s State) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateCustomSetup:
		return "custom_setup"
	case StatePlayerAsking:
		return "player_asking"
	case StatePlayerEliminating:
		return "player_eliminating"
	case StateAITurn:
		return "ai_turn"
	case StateReviewingAnalysis:
		return "reviewing_analysis"
	case StateWaitingForAnswer:
		return "waiting_for_answer"
	case StateGameOver:
		return "game_over"
	}
	return "unknown"
}

// Winner marks which side won a finished game.
type Winner string

const (
	WinnerNone   Winner = ""
	WinnerPlayer Winner = "player"
	WinnerAI     Winner = "ai"
)

// Answer is the player's yes/no reply to an AI question.
type Answer bool

const (
	AnswerYes Answer = true
	AnswerNo  Answer = false
)

// Judgment is the model's per-candidate verdict for the feature behind the
// AI's current question.
type Judgment struct {
	ID         string
	Name       string
	HasFeature bool
}

// Session aggregates all state for one game. It is created by StartGame,
// mutated only through the engine's operations, and discarded on reset.
type Session struct {
	State  State
	Active []Character

	PlayerSecret Character
	AISecret     Character

	// AIRemaining is the subset of Active still consistent with every
	// answer the AI has received. It only ever shrinks.
	AIRemaining []Character

	// PlayerEliminated is the player's own scratchpad of crossed-off faces.
	// It carries no weight in win conditions.
	PlayerEliminated map[string]bool

	Messages []Message

	LastAIQuestion string
	LastAIAnalysis []Judgment
	IsAIFinalGuess bool

	Winner    Winner
	WinReason string
}

func (s *Session) append(sender Sender, text string) {
	s.Messages = append(s.Messages, Message{Sender: sender, Text: text})
}

// findByName returns the active character whose name matches, ignoring case.
func findByName(chars []Character, name string) (Character, bool) {
	for _, c := range chars {
		if strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name)) {
			return c, true
		}
	}
	return Character{}, false
}

// Package game owns the turn-taking state machine for a "Guess Who?" match
// between the player and the on-device model. The model only ever supplies
// visual judgments; every elimination and win condition is resolved here,
// deterministically.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brechtDR/ai-guess-who/internal/gateway"
	"github.com/brechtDR/ai-guess-who/internal/prompt"
)

// maxQuestionAttempts bounds the AI question retry loop. After the last
// failure the AI concedes its turn back to the player.
const maxQuestionAttempts = 3

// Engine drives a game session. It is not safe for concurrent use; callers
// issue one operation at a time and gate further input on IsLoading.
type Engine struct {
	gw  *gateway.Gateway
	log *zap.Logger
	rng *rand.Rand

	reviewMode bool
	loading    bool

	sess *Session
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithReviewMode controls whether the AI's per-candidate analysis is shown
// to the player before their answer is collected.
func WithReviewMode(enabled bool) Option {
	return func(e *Engine) { e.reviewMode = enabled }
}

// WithRand injects the random source used to draw secrets. Tests use a
// seeded source.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// New creates an engine bound to a gateway. Review mode defaults to on.
func New(gw *gateway.Gateway, opts ...Option) *Engine {
	e := &Engine{
		gw:         gw,
		log:        zap.NewNop(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		reviewMode: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetReviewMode flips review mode for subsequent AI turns.
func (e *Engine) SetReviewMode(enabled bool) { e.reviewMode = enabled }

// ReviewMode reports the current review-mode setting.
func (e *Engine) ReviewMode() bool { return e.reviewMode }

// StartGame begins a new session over the given characters. Every character
// must carry image data; otherwise the game does not start. The model
// session is reset so nothing from a previous game leaks into this one.
func (e *Engine) StartGame(ctx context.Context, characters []Character) error {
	if len(characters) < 2 {
		return fmt.Errorf("need at least 2 characters, got %d", len(characters))
	}
	for _, c := range characters {
		if len(c.Image) == 0 {
			return &MissingAssetError{Name: c.Name}
		}
	}

	e.setLoading(true)
	defer e.setLoading(false)

	if err := e.gw.StartNewSession(ctx, prompt.SystemPersona()); err != nil {
		return fmt.Errorf("resetting model session: %w", err)
	}

	active := make([]Character, len(characters))
	copy(active, characters)

	playerIdx := e.rng.Intn(len(active))
	aiIdx := e.rng.Intn(len(active))
	for aiIdx == playerIdx {
		aiIdx = e.rng.Intn(len(active))
	}

	remaining := make([]Character, len(active))
	copy(remaining, active)

	e.sess = &Session{
		State:            StatePlayerAsking,
		Active:           active,
		PlayerSecret:     active[playerIdx],
		AISecret:         active[aiIdx],
		AIRemaining:      remaining,
		PlayerEliminated: make(map[string]bool),
	}
	e.sess.append(SenderSystem, fmt.Sprintf(
		"You drew %s. Keep it secret! Ask a yes/no question, or guess with \"Is it ...?\".",
		e.sess.PlayerSecret.Name))

	e.log.Info("game started",
		zap.Int("characters", len(active)),
		zap.String("player_secret", e.sess.PlayerSecret.ID),
		zap.String("ai_secret", e.sess.AISecret.ID))
	return nil
}

// SubmitPlayerQuestion handles one line of player input during their asking
// phase: either a final guess, resolved immediately, or a question put to
// the model against the AI's secret portrait.
func (e *Engine) SubmitPlayerQuestion(ctx context.Context, text string) error {
	s, err := e.require("SubmitPlayerQuestion", StatePlayerAsking)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty question")
	}

	e.setLoading(true)
	defer e.setLoading(false)

	s.append(SenderPlayer, text)

	if intent := ClassifyIntent(text, s.Active); intent.Kind == IntentFinalGuess {
		e.resolvePlayerGuess(intent.Guess)
		return nil
	}

	parts, err := prompt.AnswerPlayerQuestion(s.AISecret.Image, text)
	if err != nil {
		return fmt.Errorf("building answer prompt: %w", err)
	}
	reply, err := e.gw.Ask(ctx, parts, &gateway.AskOptions{ResponseSchema: prompt.YesNoSchema()})
	var yes bool
	if err == nil {
		yes, err = prompt.ParseYesNo(reply)
	}
	if err != nil {
		// Recoverable: no state change, no turn consumed.
		e.log.Warn("answering player question failed", zap.Error(err))
		s.append(SenderSystem, "Sorry, I couldn't answer that. Please ask again.")
		return nil
	}

	if yes {
		s.append(SenderAI, "Yes.")
	} else {
		s.append(SenderAI, "No.")
	}
	s.append(SenderSystem, "Cross off any characters you've ruled out, then end your turn.")
	s.State = StatePlayerEliminating
	return nil
}

// ToggleOwnElimination flips a character on the player's own board. Purely
// player bookkeeping; it never feeds win conditions.
func (e *Engine) ToggleOwnElimination(id string) error {
	s, err := e.require("ToggleOwnElimination", StatePlayerEliminating)
	if err != nil {
		return err
	}
	if s.PlayerEliminated[id] {
		delete(s.PlayerEliminated, id)
	} else {
		s.PlayerEliminated[id] = true
	}
	return nil
}

// EndTurn hands the turn to the AI and runs its processing to a resting
// state: a question awaiting the player's answer (optionally after review),
// a direct final guess, a conceded turn, or game over.
func (e *Engine) EndTurn(ctx context.Context) error {
	s, err := e.require("EndTurn", StatePlayerEliminating)
	if err != nil {
		return err
	}

	e.setLoading(true)
	defer e.setLoading(false)

	s.append(SenderSystem, "The AI is thinking...")
	s.State = StateAITurn
	e.runAITurn(ctx, s)
	return nil
}

// ConfirmAnalysisReview dismisses the analysis overlay and moves on to
// collecting the player's answer.
func (e *Engine) ConfirmAnalysisReview() error {
	s, err := e.require("ConfirmAnalysisReview", StateReviewingAnalysis)
	if err != nil {
		return err
	}
	s.State = StateWaitingForAnswer
	return nil
}

// SubmitPlayerAnswer resolves the player's yes/no reply to the AI's current
// question: a final guess ends the game, a discriminating question triggers
// deterministic reconciliation of the AI's board.
func (e *Engine) SubmitPlayerAnswer(answer Answer) error {
	s, err := e.require("SubmitPlayerAnswer", StateWaitingForAnswer)
	if err != nil {
		return err
	}

	if answer == AnswerYes {
		s.append(SenderPlayer, "Yes")
	} else {
		s.append(SenderPlayer, "No")
	}

	if s.IsAIFinalGuess {
		e.resolveAIGuess(s, answer)
		return nil
	}

	eliminated, vetoed := Reconcile(s.LastAIAnalysis, answer, s.AIRemaining)
	switch {
	case vetoed:
		// A move that wipes the board is a judgment error, not a loss.
		e.log.Warn("elimination vetoed: would remove every candidate",
			zap.Int("remaining", len(s.AIRemaining)))
		s.append(SenderSystem, "The AI second-guessed its own analysis and kept its board unchanged.")
	case len(eliminated) == 0:
		s.append(SenderSystem, "The AI didn't eliminate anyone.")
	default:
		names := make([]string, len(eliminated))
		for i, c := range eliminated {
			names[i] = c.Name
		}
		s.AIRemaining = subtract(s.AIRemaining, eliminated)
		s.append(SenderSystem, fmt.Sprintf("The AI eliminated: %s.", strings.Join(names, ", ")))
	}

	s.LastAIQuestion = ""
	s.LastAIAnalysis = nil

	if len(s.AIRemaining) == 0 {
		e.finish(s, WinnerPlayer, "The AI eliminated all of its own candidates by mistake. You win!")
		return nil
	}

	s.State = StatePlayerAsking
	s.append(SenderSystem, "Your turn. Ask a question or make a guess.")
	return nil
}

// Reset discards the session and returns to setup. If the gateway ended up
// in an error or unavailable state, it is re-initialized.
func (e *Engine) Reset(ctx context.Context) error {
	e.sess = nil
	switch e.gw.Status() {
	case gateway.StatusError, gateway.StatusUnavailable:
		if _, err := e.gw.Initialize(ctx, nil); err != nil {
			return fmt.Errorf("re-initializing gateway: %w", err)
		}
	}
	return nil
}

// runAITurn generates the AI's next question, or its final guess when only
// one candidate is left. Exhausting all attempts concedes the turn.
func (e *Engine) runAITurn(ctx context.Context, s *Session) {
	switch len(s.AIRemaining) {
	case 0:
		// Guarded against upstream; reaching it is an engine bug.
		e.log.Error("ai turn entered with no candidates")
		e.finish(s, WinnerPlayer, "The AI ran out of candidates. You win!")
		return
	case 1:
		s.LastAIQuestion = fmt.Sprintf("Is your character %s?", s.AIRemaining[0].Name)
		s.LastAIAnalysis = nil
		s.IsAIFinalGuess = true
		s.append(SenderAI, s.LastAIQuestion)
		// A final guess has nothing to review.
		s.State = StateWaitingForAnswer
		return
	}

	var reason string
	for attempt := 1; attempt <= maxQuestionAttempts; attempt++ {
		question, analysis, err := e.requestQuestion(ctx, s, reason)
		if err != nil {
			reason = accumulate(reason, describeFailure(err))
			e.log.Warn("ai question attempt failed",
				zap.Int("attempt", attempt),
				zap.String("reason", reason),
				zap.Error(err))
			continue
		}

		s.LastAIQuestion = question
		s.LastAIAnalysis = analysis
		s.IsAIFinalGuess = false
		s.append(SenderAI, question)
		if e.reviewMode {
			s.State = StateReviewingAnalysis
		} else {
			s.State = StateWaitingForAnswer
		}
		return
	}

	s.append(SenderSystem, "The AI couldn't come up with a question and passes. Your turn again!")
	s.State = StatePlayerAsking
}

// requestQuestion performs one schema-constrained question+analysis call and
// validates the result against the current candidate set.
func (e *Engine) requestQuestion(ctx context.Context, s *Session, retryReason string) (string, []Judgment, error) {
	parts, err := prompt.QuestionAnalysis(promptCandidates(s.AIRemaining), promptHistory(s.Messages), retryReason)
	if err != nil {
		return "", nil, fmt.Errorf("building question prompt: %w", err)
	}
	reply, err := e.gw.Ask(ctx, parts, &gateway.AskOptions{
		ResponseSchema: prompt.QuestionAnalysisSchema(len(s.AIRemaining)),
	})
	if err != nil {
		return "", nil, err
	}
	result, err := prompt.ParseQuestionAnalysis(reply)
	if err != nil {
		return "", nil, err
	}
	analysis, err := matchAnalysis(result.Analysis, s.AIRemaining)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(result.Question), analysis, nil
}

// promptCandidates projects the remaining characters into the prompt
// package's input shape.
func promptCandidates(chars []Character) []prompt.Candidate {
	out := make([]prompt.Candidate, len(chars))
	for i, c := range chars {
		out[i] = prompt.Candidate{Name: c.Name, Image: c.Image}
	}
	return out
}

// promptHistory keeps only the player and AI lines; system messages are
// engine bookkeeping the model should never see.
func promptHistory(msgs []Message) []prompt.Exchange {
	out := make([]prompt.Exchange, 0, len(msgs))
	for _, m := range msgs {
		switch m.Sender {
		case SenderPlayer:
			out = append(out, prompt.Exchange{Speaker: prompt.SpeakerPlayer, Text: m.Text})
		case SenderAI:
			out = append(out, prompt.Exchange{Speaker: prompt.SpeakerAI, Text: m.Text})
		}
	}
	return out
}

// matchAnalysis binds the model's name-keyed judgments to candidate ids,
// requiring exactly one judgment per remaining candidate, and rejects
// degenerate all-true or all-false analyses.
func matchAnalysis(judged []prompt.CandidateJudgment, remaining []Character) ([]Judgment, error) {
	if len(judged) != len(remaining) {
		return nil, fmt.Errorf("%w: got %d judgments for %d candidates",
			gateway.ErrMalformedResponse, len(judged), len(remaining))
	}

	byID := make(map[string]Judgment, len(remaining))
	for _, j := range judged {
		c, ok := findByName(remaining, j.Name)
		if !ok {
			return nil, fmt.Errorf("%w: judgment for unknown candidate %q",
				gateway.ErrMalformedResponse, j.Name)
		}
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate judgment for %q",
				gateway.ErrMalformedResponse, c.Name)
		}
		byID[c.ID] = Judgment{ID: c.ID, Name: c.Name, HasFeature: j.HasFeature}
	}

	analysis := make([]Judgment, 0, len(remaining))
	trueCount := 0
	for _, c := range remaining {
		j, ok := byID[c.ID]
		if !ok {
			return nil, fmt.Errorf("%w: no judgment for %q", gateway.ErrMalformedResponse, c.Name)
		}
		if j.HasFeature {
			trueCount++
		}
		analysis = append(analysis, j)
	}

	if trueCount == 0 {
		return nil, fmt.Errorf("%w: every candidate was judged false", ErrDegenerateQuestion)
	}
	if trueCount == len(remaining) {
		return nil, fmt.Errorf("%w: every candidate was judged true", ErrDegenerateQuestion)
	}
	return analysis, nil
}

func (e *Engine) resolvePlayerGuess(guess Character) {
	s := e.sess
	if guess.ID == s.AISecret.ID {
		e.finish(s, WinnerPlayer, fmt.Sprintf("Correct! My character was %s. You win!", s.AISecret.Name))
		return
	}
	e.finish(s, WinnerAI, fmt.Sprintf("Wrong guess! My character was %s, not %s. I win!",
		s.AISecret.Name, guess.Name))
}

// resolveAIGuess settles the AI's final guess against ground truth. An
// answer that contradicts the board (the player lied, or the data is
// inconsistent) defaults the win to the AI and says why.
func (e *Engine) resolveAIGuess(s *Session, answer Answer) {
	guessName := parseGuessName(s.LastAIQuestion)
	correct := strings.EqualFold(strings.TrimSpace(guessName), strings.TrimSpace(s.PlayerSecret.Name))

	switch {
	case correct && answer == AnswerYes:
		e.finish(s, WinnerAI, fmt.Sprintf("The AI guessed %s correctly. The AI wins!", guessName))
	case !correct && answer == AnswerNo:
		e.finish(s, WinnerPlayer, fmt.Sprintf("The AI guessed %s, but your character was %s. You win!",
			guessName, s.PlayerSecret.Name))
	default:
		e.finish(s, WinnerAI, fmt.Sprintf(
			"Your answer doesn't match the board: the AI guessed %s and your character is %s. The AI wins by default.",
			guessName, s.PlayerSecret.Name))
	}
}

func (e *Engine) finish(s *Session, winner Winner, reason string) {
	s.Winner = winner
	s.WinReason = reason
	s.State = StateGameOver
	s.append(SenderSystem, reason)
	e.log.Info("game over", zap.String("winner", string(winner)), zap.String("reason", reason))
}

func (e *Engine) require(op string, want State) (*Session, error) {
	if e.sess == nil {
		return nil, ErrNoGame
	}
	if e.sess.State != want {
		return nil, &InvalidStateError{Op: op, State: e.sess.State}
	}
	return e.sess, nil
}

func (e *Engine) setLoading(v bool) { e.loading = v }

// describeFailure turns an attempt error into the retry reason threaded back
// into the next prompt.
func describeFailure(err error) string {
	switch {
	case errors.Is(err, ErrDegenerateQuestion):
		return fmt.Sprintf("your question did not discriminate (%v); it must be true for some candidates and false for others", err)
	case errors.Is(err, gateway.ErrTimeout):
		return "your previous answer took too long"
	case errors.Is(err, gateway.ErrMalformedResponse):
		return fmt.Sprintf("your previous response was invalid (%v)", err)
	default:
		return fmt.Sprintf("your previous attempt failed (%v)", err)
	}
}

func accumulate(reason, next string) string {
	if reason == "" {
		return next
	}
	return reason + "; " + next
}

// Read accessors. Slices and maps are copied so the presentation layer can
// never mutate engine state.

// State returns the machine state, or StateSetup before any game.
func (e *Engine) State() State {
	if e.sess == nil {
		return StateSetup
	}
	return e.sess.State
}

// IsLoading reports whether an asynchronous step is outstanding. The
// presentation layer must reject new intents while true.
func (e *Engine) IsLoading() bool { return e.loading }

// Messages returns the append-only game log.
func (e *Engine) Messages() []Message {
	if e.sess == nil {
		return nil
	}
	out := make([]Message, len(e.sess.Messages))
	copy(out, e.sess.Messages)
	return out
}

// ActiveCharacters returns the board for the current game.
func (e *Engine) ActiveCharacters() []Character {
	if e.sess == nil {
		return nil
	}
	out := make([]Character, len(e.sess.Active))
	copy(out, e.sess.Active)
	return out
}

// AIRemaining returns the AI's current candidate set.
func (e *Engine) AIRemaining() []Character {
	if e.sess == nil {
		return nil
	}
	out := make([]Character, len(e.sess.AIRemaining))
	copy(out, e.sess.AIRemaining)
	return out
}

// PlayerEliminated returns the player's own crossed-off set.
func (e *Engine) PlayerEliminated() map[string]bool {
	if e.sess == nil {
		return nil
	}
	out := make(map[string]bool, len(e.sess.PlayerEliminated))
	for id, v := range e.sess.PlayerEliminated {
		out[id] = v
	}
	return out
}

// PlayerSecret returns the player's drawn character.
func (e *Engine) PlayerSecret() Character {
	if e.sess == nil {
		return Character{}
	}
	return e.sess.PlayerSecret
}

// LastAIQuestion returns the AI's current question, valid between asking
// and resolution.
func (e *Engine) LastAIQuestion() string {
	if e.sess == nil {
		return ""
	}
	return e.sess.LastAIQuestion
}

// LastAIAnalysis returns the AI's stored per-candidate judgments for review.
func (e *Engine) LastAIAnalysis() []Judgment {
	if e.sess == nil {
		return nil
	}
	out := make([]Judgment, len(e.sess.LastAIAnalysis))
	copy(out, e.sess.LastAIAnalysis)
	return out
}

// IsAIFinalGuess reports whether the pending AI question is a terminal
// guess.
func (e *Engine) IsAIFinalGuess() bool {
	return e.sess != nil && e.sess.IsAIFinalGuess
}

// Winner returns the winning side in a finished game.
func (e *Engine) Winner() Winner {
	if e.sess == nil {
		return WinnerNone
	}
	return e.sess.Winner
}

// WinReason returns the human-readable reason set at game over.
func (e *Engine) WinReason() string {
	if e.sess == nil {
		return ""
	}
	return e.sess.WinReason
}

package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brechtDR/ai-guess-who/internal/gateway"
	"github.com/brechtDR/ai-guess-who/internal/prompt"
)

type fakeSession struct {
	generate  func(parts []gateway.Part, schema map[string]any) (string, error)
	destroyed bool
}

func (s *fakeSession) Generate(_ context.Context, parts []gateway.Part, schema map[string]any) (string, error) {
	return s.generate(parts, schema)
}

func (s *fakeSession) Destroy() { s.destroyed = true }

type fakeRunner struct {
	generate func(parts []gateway.Part, schema map[string]any) (string, error)
	sessions []*fakeSession
}

func (r *fakeRunner) Availability(context.Context) (gateway.Availability, error) {
	return gateway.AvailabilityReady, nil
}

func (r *fakeRunner) Download(context.Context, func(float64)) error { return nil }

func (r *fakeRunner) NewSession(context.Context, string) (gateway.Session, error) {
	s := &fakeSession{generate: r.generate}
	r.sessions = append(r.sessions, s)
	return s, nil
}

func testChars() []Character {
	names := []string{"Alex", "Bella", "Cid", "Dana", "Eli"}
	out := make([]Character, len(names))
	for i, n := range names {
		out[i] = Character{ID: strings.ToLower(n), Name: n, Image: []byte{byte(i + 1)}}
	}
	return out
}

func analysisJSON(question string, pairs ...any) string {
	var entries []string
	for i := 0; i < len(pairs); i += 2 {
		entries = append(entries, fmt.Sprintf(`{"name": %q, "has_feature": %t}`, pairs[i], pairs[i+1]))
	}
	return fmt.Sprintf(`{"question": %q, "analysis": [%s]}`, question, strings.Join(entries, ","))
}

func isAnswerSchema(schema map[string]any) bool {
	props, _ := schema["properties"].(map[string]any)
	_, ok := props["answer"]
	return ok
}

func newTestEngine(t *testing.T, generate func(parts []gateway.Part, schema map[string]any) (string, error), opts ...Option) (*Engine, *fakeRunner) {
	t.Helper()
	runner := &fakeRunner{generate: generate}
	gw := gateway.New(runner)
	_, err := gw.Initialize(context.Background(), nil)
	require.NoError(t, err)

	opts = append([]Option{WithRand(rand.New(rand.NewSource(1)))}, opts...)
	return New(gw, opts...), runner
}

func alwaysYes(parts []gateway.Part, schema map[string]any) (string, error) {
	return `{"answer": true}`, nil
}

func lastMessage(e *Engine) Message {
	msgs := e.Messages()
	return msgs[len(msgs)-1]
}

func TestStartGame(t *testing.T) {
	t.Run("draws distinct secrets every game", func(t *testing.T) {
		e, _ := newTestEngine(t, alwaysYes)
		for i := 0; i < 25; i++ {
			require.NoError(t, e.StartGame(context.Background(), testChars()))
			assert.NotEqual(t, e.sess.PlayerSecret.ID, e.sess.AISecret.ID)
			assert.Equal(t, StatePlayerAsking, e.State())
			assert.Len(t, e.AIRemaining(), 5)
		}
	})

	t.Run("announces the player's character", func(t *testing.T) {
		e, _ := newTestEngine(t, alwaysYes)
		require.NoError(t, e.StartGame(context.Background(), testChars()))
		msg := lastMessage(e)
		assert.Equal(t, SenderSystem, msg.Sender)
		assert.Contains(t, msg.Text, e.PlayerSecret().Name)
	})

	t.Run("rejects a character without image data", func(t *testing.T) {
		e, _ := newTestEngine(t, alwaysYes)
		chars := testChars()
		chars[2].Image = nil

		err := e.StartGame(context.Background(), chars)
		var missing *MissingAssetError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "Cid", missing.Name)
		assert.Equal(t, StateSetup, e.State())
	})

	t.Run("resets the model session per game", func(t *testing.T) {
		e, runner := newTestEngine(t, alwaysYes)
		require.NoError(t, e.StartGame(context.Background(), testChars()))
		require.NoError(t, e.StartGame(context.Background(), testChars()))
		require.Len(t, runner.sessions, 2)
		assert.True(t, runner.sessions[0].destroyed)
		assert.False(t, runner.sessions[1].destroyed)
	})
}

func TestSubmitPlayerQuestion(t *testing.T) {
	t.Run("correct final guess wins for the player", func(t *testing.T) {
		e, _ := newTestEngine(t, alwaysYes)
		require.NoError(t, e.StartGame(context.Background(), testChars()))
		e.sess.AISecret, _ = findByName(e.sess.Active, "Bella")

		require.NoError(t, e.SubmitPlayerQuestion(context.Background(), "Is it Bella?"))
		assert.Equal(t, StateGameOver, e.State())
		assert.Equal(t, WinnerPlayer, e.Winner())
		assert.Contains(t, e.WinReason(), "Bella")
	})

	t.Run("wrong final guess wins for the AI and reveals its secret", func(t *testing.T) {
		e, _ := newTestEngine(t, alwaysYes)
		require.NoError(t, e.StartGame(context.Background(), testChars()))
		e.sess.AISecret, _ = findByName(e.sess.Active, "Bella")

		require.NoError(t, e.SubmitPlayerQuestion(context.Background(), "Is it Alex?"))
		assert.Equal(t, StateGameOver, e.State())
		assert.Equal(t, WinnerAI, e.Winner())
		assert.Contains(t, e.WinReason(), "Bella")
	})

	t.Run("guess phrasing with an unknown name is answered as a question", func(t *testing.T) {
		e, _ := newTestEngine(t, alwaysYes)
		require.NoError(t, e.StartGame(context.Background(), testChars()))

		require.NoError(t, e.SubmitPlayerQuestion(context.Background(), "Is it Zorro?"))
		assert.Equal(t, StatePlayerEliminating, e.State())
		assert.Equal(t, WinnerNone, e.Winner())
	})

	t.Run("normal question gets a yes or no and moves to eliminating", func(t *testing.T) {
		e, _ := newTestEngine(t, func(parts []gateway.Part, schema map[string]any) (string, error) {
			require.True(t, isAnswerSchema(schema))
			return `{"answer": false}`, nil
		})
		require.NoError(t, e.StartGame(context.Background(), testChars()))

		require.NoError(t, e.SubmitPlayerQuestion(context.Background(), "Is your character wearing glasses?"))
		assert.Equal(t, StatePlayerEliminating, e.State())

		msgs := e.Messages()
		assert.Equal(t, Message{Sender: SenderAI, Text: "No."}, msgs[len(msgs)-2])
	})

	t.Run("gateway failure keeps the state and the turn", func(t *testing.T) {
		e, _ := newTestEngine(t, func([]gateway.Part, map[string]any) (string, error) {
			return "", errors.New("boom")
		})
		require.NoError(t, e.StartGame(context.Background(), testChars()))

		require.NoError(t, e.SubmitPlayerQuestion(context.Background(), "Does it have a beard?"))
		assert.Equal(t, StatePlayerAsking, e.State())
		msg := lastMessage(e)
		assert.Equal(t, SenderSystem, msg.Sender)
		assert.Contains(t, msg.Text, "ask again")
	})

	t.Run("rejected outside the asking state", func(t *testing.T) {
		e, _ := newTestEngine(t, alwaysYes)
		err := e.SubmitPlayerQuestion(context.Background(), "Is it Bella?")
		assert.ErrorIs(t, err, ErrNoGame)
	})
}

func TestToggleOwnElimination(t *testing.T) {
	e, _ := newTestEngine(t, alwaysYes)
	require.NoError(t, e.StartGame(context.Background(), testChars()))
	require.NoError(t, e.SubmitPlayerQuestion(context.Background(), "Is your character wearing a hat?"))
	require.Equal(t, StatePlayerEliminating, e.State())

	require.NoError(t, e.ToggleOwnElimination("cid"))
	assert.True(t, e.PlayerEliminated()["cid"])

	// Toggling twice restores the original set.
	require.NoError(t, e.ToggleOwnElimination("cid"))
	assert.Empty(t, e.PlayerEliminated())

	// Never feeds the AI-side win logic.
	for _, c := range e.ActiveCharacters() {
		require.NoError(t, e.ToggleOwnElimination(c.ID))
	}
	assert.Len(t, e.AIRemaining(), 5)
	assert.NotEqual(t, StateGameOver, e.State())
}

// reachEliminating plays one question so the engine sits in the eliminating
// state, ready for EndTurn.
func reachEliminating(t *testing.T, e *Engine) {
	t.Helper()
	require.NoError(t, e.SubmitPlayerQuestion(context.Background(), "Is your character wearing glasses?"))
	require.Equal(t, StatePlayerEliminating, e.State())
}

func TestAITurn(t *testing.T) {
	t.Run("question and analysis flow through review to elimination", func(t *testing.T) {
		e, _ := newTestEngine(t, func(parts []gateway.Part, schema map[string]any) (string, error) {
			if isAnswerSchema(schema) {
				return `{"answer": true}`, nil
			}
			return analysisJSON("Is your character wearing glasses?", "Cid", true, "Dana", false), nil
		})
		require.NoError(t, e.StartGame(context.Background(), testChars()))
		reachEliminating(t, e)
		e.sess.AIRemaining = chars("cid", "dana")
		e.sess.AIRemaining[0].Name = "Cid"
		e.sess.AIRemaining[1].Name = "Dana"

		require.NoError(t, e.EndTurn(context.Background()))
		assert.Equal(t, StateReviewingAnalysis, e.State())
		assert.Equal(t, "Is your character wearing glasses?", e.LastAIQuestion())
		assert.False(t, e.IsAIFinalGuess())
		require.Len(t, e.LastAIAnalysis(), 2)

		require.NoError(t, e.ConfirmAnalysisReview())
		assert.Equal(t, StateWaitingForAnswer, e.State())

		require.NoError(t, e.SubmitPlayerAnswer(AnswerNo))
		assert.Equal(t, []string{"dana"}, ids(e.AIRemaining()))
		assert.Equal(t, StatePlayerAsking, e.State())
	})

	t.Run("review is skipped when disabled", func(t *testing.T) {
		e, _ := newTestEngine(t, func(parts []gateway.Part, schema map[string]any) (string, error) {
			if isAnswerSchema(schema) {
				return `{"answer": true}`, nil
			}
			return analysisJSON("Is your character wearing a hat?",
				"Alex", false, "Bella", true, "Cid", false, "Dana", true, "Eli", false), nil
		}, WithReviewMode(false))
		require.NoError(t, e.StartGame(context.Background(), testChars()))
		reachEliminating(t, e)

		require.NoError(t, e.EndTurn(context.Background()))
		assert.Equal(t, StateWaitingForAnswer, e.State())
	})

	t.Run("single candidate turns into a direct final guess", func(t *testing.T) {
		e, _ := newTestEngine(t, alwaysYes)
		require.NoError(t, e.StartGame(context.Background(), testChars()))
		reachEliminating(t, e)
		dana, _ := findByName(e.sess.Active, "Dana")
		e.sess.AIRemaining = []Character{dana}

		require.NoError(t, e.EndTurn(context.Background()))
		// Review mode is on, but a final guess has nothing to review.
		assert.Equal(t, StateWaitingForAnswer, e.State())
		assert.True(t, e.IsAIFinalGuess())
		assert.Equal(t, "Is your character Dana?", e.LastAIQuestion())
	})

	t.Run("no candidates left is a player win", func(t *testing.T) {
		e, _ := newTestEngine(t, alwaysYes)
		require.NoError(t, e.StartGame(context.Background(), testChars()))
		reachEliminating(t, e)
		e.sess.AIRemaining = nil

		require.NoError(t, e.EndTurn(context.Background()))
		assert.Equal(t, StateGameOver, e.State())
		assert.Equal(t, WinnerPlayer, e.Winner())
		assert.Contains(t, e.WinReason(), "ran out of candidates")
	})

	t.Run("degenerate analyses are retried with a reason, then conceded", func(t *testing.T) {
		var prompts []string
		attempts := 0
		e, _ := newTestEngine(t, func(parts []gateway.Part, schema map[string]any) (string, error) {
			if isAnswerSchema(schema) {
				return `{"answer": true}`, nil
			}
			attempts++
			prompts = append(prompts, parts[0].Text)
			return analysisJSON("Is your character human?",
				"Alex", true, "Bella", true, "Cid", true, "Dana", true, "Eli", true), nil
		})
		require.NoError(t, e.StartGame(context.Background(), testChars()))
		reachEliminating(t, e)

		require.NoError(t, e.EndTurn(context.Background()))
		assert.Equal(t, 3, attempts)
		assert.Equal(t, StatePlayerAsking, e.State())

		msg := lastMessage(e)
		assert.Equal(t, SenderSystem, msg.Sender)
		assert.Contains(t, msg.Text, "passes")

		// The failure reason is threaded into the retry prompts.
		assert.NotContains(t, prompts[0], "rejected")
		assert.Contains(t, prompts[1], "did not discriminate")
		assert.Contains(t, prompts[2], "did not discriminate")
	})

	t.Run("malformed responses are retried like any other failure", func(t *testing.T) {
		attempts := 0
		e, _ := newTestEngine(t, func(parts []gateway.Part, schema map[string]any) (string, error) {
			if isAnswerSchema(schema) {
				return `{"answer": true}`, nil
			}
			attempts++
			if attempts < 3 {
				return `{"question": "ok?", "analysis": []}`, nil
			}
			return analysisJSON("Is your character wearing earrings?",
				"Alex", false, "Bella", false, "Cid", true, "Dana", false, "Eli", true), nil
		})
		require.NoError(t, e.StartGame(context.Background(), testChars()))
		reachEliminating(t, e)

		require.NoError(t, e.EndTurn(context.Background()))
		assert.Equal(t, 3, attempts)
		assert.Equal(t, StateReviewingAnalysis, e.State())
		assert.Equal(t, "Is your character wearing earrings?", e.LastAIQuestion())
	})
}

func TestSubmitPlayerAnswer_FinalGuess(t *testing.T) {
	setup := func(t *testing.T, playerSecret string) *Engine {
		e, _ := newTestEngine(t, alwaysYes)
		require.NoError(t, e.StartGame(context.Background(), testChars()))
		secret, ok := findByName(e.sess.Active, playerSecret)
		require.True(t, ok)
		e.sess.PlayerSecret = secret
		e.sess.State = StateWaitingForAnswer
		e.sess.IsAIFinalGuess = true
		e.sess.LastAIQuestion = "Is your character Dana?"
		return e
	}

	t.Run("correct guess confirmed wins for the AI", func(t *testing.T) {
		e := setup(t, "Dana")
		require.NoError(t, e.SubmitPlayerAnswer(AnswerYes))
		assert.Equal(t, WinnerAI, e.Winner())
		assert.Equal(t, StateGameOver, e.State())
	})

	t.Run("wrong guess denied wins for the player", func(t *testing.T) {
		e := setup(t, "Bella")
		require.NoError(t, e.SubmitPlayerAnswer(AnswerNo))
		assert.Equal(t, WinnerPlayer, e.Winner())
		assert.Contains(t, e.WinReason(), "Bella")
	})

	t.Run("answer contradicting the board defaults to the AI", func(t *testing.T) {
		e := setup(t, "Dana")
		require.NoError(t, e.SubmitPlayerAnswer(AnswerNo))
		assert.Equal(t, WinnerAI, e.Winner())
		assert.Contains(t, e.WinReason(), "doesn't match")
	})
}

func TestSubmitPlayerAnswer_VetoedElimination(t *testing.T) {
	e, _ := newTestEngine(t, alwaysYes)
	require.NoError(t, e.StartGame(context.Background(), testChars()))

	// Adversarial analysis: every remaining candidate would be eliminated.
	e.sess.State = StateWaitingForAnswer
	e.sess.IsAIFinalGuess = false
	e.sess.LastAIQuestion = "Is your character wearing glasses?"
	e.sess.LastAIAnalysis = []Judgment{
		{ID: "alex", Name: "Alex", HasFeature: true},
		{ID: "bella", Name: "Bella", HasFeature: true},
	}
	e.sess.AIRemaining = []Character{
		{ID: "alex", Name: "Alex", Image: []byte{1}},
		{ID: "bella", Name: "Bella", Image: []byte{2}},
	}

	require.NoError(t, e.SubmitPlayerAnswer(AnswerNo))
	assert.Len(t, e.AIRemaining(), 2, "vetoed elimination must leave the board unchanged")
	assert.Equal(t, StatePlayerAsking, e.State(), "turn advances normally after a veto")
	assert.NotEqual(t, StateGameOver, e.State())

	var warned bool
	for _, m := range e.Messages() {
		if m.Sender == SenderSystem && strings.Contains(m.Text, "unchanged") {
			warned = true
		}
	}
	assert.True(t, warned, "veto must surface a system warning")
}

func TestMessagesAreAppendOnly(t *testing.T) {
	e, _ := newTestEngine(t, alwaysYes)
	require.NoError(t, e.StartGame(context.Background(), testChars()))

	var transcript []Message
	snapshot := func() {
		msgs := e.Messages()
		require.GreaterOrEqual(t, len(msgs), len(transcript))
		for i := range transcript {
			assert.Equal(t, transcript[i], msgs[i], "log prefix must never change")
		}
		transcript = msgs
	}

	snapshot()
	require.NoError(t, e.SubmitPlayerQuestion(context.Background(), "Is your character wearing glasses?"))
	snapshot()
	require.NoError(t, e.EndTurn(context.Background()))
	snapshot()
}

func TestPromptProjection(t *testing.T) {
	t.Run("history keeps player and AI lines only", func(t *testing.T) {
		msgs := []Message{
			{Sender: SenderSystem, Text: "You drew Dana."},
			{Sender: SenderPlayer, Text: "Is your character wearing a hat?"},
			{Sender: SenderAI, Text: "No."},
		}
		history := promptHistory(msgs)
		require.Len(t, history, 2)
		assert.Equal(t, prompt.Exchange{Speaker: prompt.SpeakerPlayer, Text: "Is your character wearing a hat?"}, history[0])
		assert.Equal(t, prompt.Exchange{Speaker: prompt.SpeakerAI, Text: "No."}, history[1])
	})

	t.Run("candidates carry name and portrait", func(t *testing.T) {
		out := promptCandidates(testChars()[:2])
		require.Len(t, out, 2)
		assert.Equal(t, prompt.Candidate{Name: "Alex", Image: []byte{1}}, out[0])
		assert.Equal(t, prompt.Candidate{Name: "Bella", Image: []byte{2}}, out[1])
	})
}

func TestReset(t *testing.T) {
	e, _ := newTestEngine(t, alwaysYes)
	require.NoError(t, e.StartGame(context.Background(), testChars()))
	require.NoError(t, e.Reset(context.Background()))
	assert.Equal(t, StateSetup, e.State())
	assert.Nil(t, e.Messages())
	assert.Equal(t, WinnerNone, e.Winner())
}

// Package prompt builds the text sent to the model. All functions are pure:
// they render embedded templates and never touch the gateway themselves.
package prompt

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/brechtDR/ai-guess-who/internal/gateway"
)

// Candidate is one remaining character as the prompts need it: a display
// name plus the portrait payload.
type Candidate struct {
	Name  string
	Image []byte
}

// Speaker labels one line of game history.
type Speaker string

const (
	SpeakerPlayer Speaker = "player"
	SpeakerAI     Speaker = "ai"
)

// Exchange is one line of the question-and-answer history shown to the
// model. Callers pass only the lines the model should see.
type Exchange struct {
	Speaker Speaker
	Text    string
}

//go:embed prompts/system_persona.txt
var systemPersonaPrompt string

//go:embed prompts/question_analysis.txt
var questionAnalysisPrompt string

//go:embed prompts/answer_question.txt
var answerQuestionPrompt string

//go:embed prompts/transcribe.txt
var transcribePrompt string

// SystemPersona returns the fixed instructions that establish the AI's
// strategic objective for a whole game.
func SystemPersona() string {
	return strings.TrimSpace(systemPersonaPrompt)
}

// QuestionAnalysis builds the combined question-plus-analysis request: one
// schema-constrained call that both picks a discriminating question and
// judges every remaining candidate against it. Combining the two guarantees
// the elimination stays logically consistent with the question asked.
// retryReason, when non-empty, tells the model why its previous attempt was
// rejected.
func QuestionAnalysis(candidates []Candidate, history []Exchange, retryReason string) ([]gateway.Part, error) {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}

	text, err := render("question_analysis", questionAnalysisPrompt, struct {
		CandidateNames string
		CandidateCount int
		History        string
		RetryReason    string
	}{
		CandidateNames: strings.Join(names, ", "),
		CandidateCount: len(candidates),
		History:        renderHistory(history),
		RetryReason:    retryReason,
	})
	if err != nil {
		return nil, err
	}

	parts := make([]gateway.Part, 0, len(candidates)+1)
	parts = append(parts, gateway.TextPart(text))
	for _, c := range candidates {
		parts = append(parts, gateway.ImagePart(c.Image))
	}
	return parts, nil
}

// AnswerPlayerQuestion builds the request that answers the player's
// free-text question against the AI's secret portrait.
func AnswerPlayerQuestion(secretImage []byte, question string) ([]gateway.Part, error) {
	text, err := render("answer_question", answerQuestionPrompt, struct {
		Question string
	}{Question: question})
	if err != nil {
		return nil, err
	}
	return []gateway.Part{
		gateway.ImagePart(secretImage),
		gateway.TextPart(text),
	}, nil
}

// Transcribe builds the request that turns recorded audio into a single
// question string.
func Transcribe(audio []byte) []gateway.Part {
	return []gateway.Part{
		{Role: gateway.RoleUser, Audio: audio},
		gateway.TextPart(strings.TrimSpace(transcribePrompt)),
	}
}

// QuestionAnalysisResult is the parsed shape of a question+analysis reply.
type QuestionAnalysisResult struct {
	Question string              `json:"question"`
	Analysis []CandidateJudgment `json:"analysis"`
}

// CandidateJudgment is one per-candidate feature verdict as the model
// reports it, keyed by name.
type CandidateJudgment struct {
	Name       string `json:"name"`
	HasFeature bool   `json:"has_feature"`
}

// ParseQuestionAnalysis decodes a schema-constrained question+analysis
// reply. Anything that is not the declared shape is rejected outright; the
// engine retries rather than sniffing alternate formats.
func ParseQuestionAnalysis(text string) (*QuestionAnalysisResult, error) {
	var result QuestionAnalysisResult
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrMalformedResponse, err)
	}
	if strings.TrimSpace(result.Question) == "" {
		return nil, fmt.Errorf("%w: empty question", gateway.ErrMalformedResponse)
	}
	return &result, nil
}

// ParseYesNo decodes a boolean-answer reply.
func ParseYesNo(text string) (bool, error) {
	var result struct {
		Answer bool `json:"answer"`
	}
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return false, fmt.Errorf("%w: %v", gateway.ErrMalformedResponse, err)
	}
	return result.Answer, nil
}

func render(name, tmpl string, data any) (string, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHistory(history []Exchange) string {
	var b strings.Builder
	for _, e := range history {
		switch e.Speaker {
		case SpeakerPlayer:
			b.WriteString("Player: ")
		case SpeakerAI:
			b.WriteString("You: ")
		default:
			continue
		}
		b.WriteString(e.Text)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

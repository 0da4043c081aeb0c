// Package modelsim is a deterministic, fully in-process stand-in for the
// device's generative model. It answers feature questions from the roster's
// trait table and picks discriminating questions by best split, which keeps
// the whole game playable (and the simulation harness reproducible) without
// any model assets. It implements gateway.Runner, so nothing downstream can
// tell it apart from a real capability.
package modelsim

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/brechtDR/ai-guess-who/internal/gateway"
	"github.com/brechtDR/ai-guess-who/internal/roster"
)

// questionPhrasing maps a trait to the question the sim asks about it.
var questionPhrasing = map[string]string{
	"glasses":    "Is your character wearing glasses?",
	"hat":        "Is your character wearing a hat?",
	"beard":      "Does your character have a beard?",
	"earrings":   "Is your character wearing earrings?",
	"blond hair": "Does your character have blond hair?",
}

// traitKeywords maps a trait to the words that identify it in a free-text
// question.
var traitKeywords = map[string][]string{
	"glasses":    {"glasses", "spectacles"},
	"hat":        {"hat", "cap"},
	"beard":      {"beard", "facial hair"},
	"earrings":   {"earring"},
	"blond hair": {"blond"},
}

var candidateListPattern = regexp.MustCompile(`in order: ([^\n]+)\.`)
var quotedQuestionPattern = regexp.MustCompile(`"([^"]+)"`)

// Runner is the sim capability. One Runner serves any number of sessions.
type Runner struct {
	traits  map[string][]string
	byImage map[string]string
	offline bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithDownload makes the runner report its assets as not yet fetched, so
// the gateway exercises the download path with synthetic progress.
func WithDownload() Option {
	return func(r *Runner) { r.offline = true }
}

// New builds a runner over the roster's trait table. Portrait payloads are
// indexed by digest so the sim can recognize which character an image part
// shows.
func New(chars []roster.Character, opts ...Option) *Runner {
	r := &Runner{
		traits:  roster.Traits(chars),
		byImage: make(map[string]string, len(chars)),
	}
	for _, c := range chars {
		r.byImage[digest(c.Image)] = c.Name
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Availability reports downloadable once when configured with WithDownload,
// ready otherwise.
func (r *Runner) Availability(ctx context.Context) (gateway.Availability, error) {
	if r.offline {
		return gateway.AvailabilityDownloadable, nil
	}
	return gateway.AvailabilityReady, nil
}

// Download plays out a short synthetic progress ramp.
func (r *Runner) Download(ctx context.Context, progress func(pct float64)) error {
	for pct := 0; pct <= 100; pct += 20 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(30 * time.Millisecond):
		}
		if progress != nil {
			progress(float64(pct))
		}
	}
	r.offline = false
	return nil
}

// NewSession starts a fresh conversation. Each session tracks which traits
// it already asked about so it never repeats a question.
func (r *Runner) NewSession(ctx context.Context, system string) (gateway.Session, error) {
	return &session{runner: r, asked: make(map[string]bool)}, nil
}

type session struct {
	runner    *Runner
	asked     map[string]bool
	destroyed bool
}

func (s *session) Destroy() { s.destroyed = true }

func (s *session) Generate(ctx context.Context, parts []gateway.Part, schema map[string]any) (string, error) {
	if s.destroyed {
		return "", fmt.Errorf("session destroyed")
	}

	var text string
	var image []byte
	var audio []byte
	for _, p := range parts {
		if p.Text != "" && text == "" {
			text = p.Text
		}
		if len(p.Image) > 0 && image == nil {
			image = p.Image
		}
		if len(p.Audio) > 0 && audio == nil {
			audio = p.Audio
		}
	}

	switch {
	case audio != nil:
		return "Is your character wearing a hat?", nil
	case schemaHas(schema, "analysis"):
		return s.questionAnalysis(text)
	case schemaHas(schema, "answer"):
		return s.answerQuestion(text, image)
	default:
		return "", fmt.Errorf("sim cannot serve this prompt")
	}
}

// questionAnalysis picks the unasked trait whose split over the listed
// candidates is closest to half and judges every candidate against it.
func (s *session) questionAnalysis(text string) (string, error) {
	names := parseCandidates(text)
	if len(names) == 0 {
		return "", fmt.Errorf("no candidate list in prompt")
	}

	trait := s.bestSplit(names)
	if trait == "" {
		return "", fmt.Errorf("no discriminating trait left for %v", names)
	}
	s.asked[trait] = true

	question, ok := questionPhrasing[trait]
	if !ok {
		question = fmt.Sprintf("Does your character have %s?", trait)
	}

	type judgment struct {
		Name       string `json:"name"`
		HasFeature bool   `json:"has_feature"`
	}
	out := struct {
		Question string     `json:"question"`
		Analysis []judgment `json:"analysis"`
	}{Question: question}
	for _, name := range names {
		out.Analysis = append(out.Analysis, judgment{
			Name:       name,
			HasFeature: s.hasTrait(name, trait),
		})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// answerQuestion resolves a free-text question against the secret portrait's
// traits. A question about nothing in the vocabulary answers no, matching
// the "visible evidence only" instruction.
func (s *session) answerQuestion(text string, image []byte) (string, error) {
	secret, ok := s.runner.byImage[digest(image)]
	if !ok {
		return "", fmt.Errorf("unknown portrait in prompt")
	}

	question := text
	if m := quotedQuestionPattern.FindStringSubmatch(text); m != nil {
		question = m[1]
	}
	lower := strings.ToLower(question)

	answer := false
	for trait, keywords := range traitKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) && s.hasTrait(secret, trait) {
				answer = true
			}
		}
	}
	return fmt.Sprintf(`{"answer": %t}`, answer), nil
}

func (s *session) hasTrait(name, trait string) bool {
	for _, t := range s.runner.traits[name] {
		if t == trait {
			return true
		}
	}
	return false
}

func (s *session) bestSplit(names []string) string {
	counts := make(map[string]int)
	for _, name := range names {
		for _, t := range s.runner.traits[name] {
			counts[t]++
		}
	}

	traits := make([]string, 0, len(counts))
	for t := range counts {
		traits = append(traits, t)
	}
	sort.Strings(traits)

	best := ""
	bestDist := len(names) + 1
	for _, t := range traits {
		n := counts[t]
		if s.asked[t] || n == 0 || n == len(names) {
			continue
		}
		dist := abs(2*n - len(names))
		if dist < bestDist {
			best = t
			bestDist = dist
		}
	}
	return best
}

func parseCandidates(text string) []string {
	m := candidateListPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	parts := strings.Split(m[1], ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func schemaHas(schema map[string]any, property string) bool {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = props[property]
	return ok
}

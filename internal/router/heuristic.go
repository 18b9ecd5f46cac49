package router

import (
	"context"
	"regexp"
	"strings"

	"github.com/ecomarket/ecobot/internal/flow"
)

var (
	orderRefPattern    = regexp.MustCompile(`(?i)\bP-[0-9]+\b`)
	customerRefPattern = regexp.MustCompile(`\b[0-9]{8}\b`)

	malformedOrderPattern = regexp.MustCompile(`(?i)(?:^|[\s(:,])(P-[^\s.,;!?)]*)`)
	digitRunPattern       = regexp.MustCompile(`\b[0-9]{6,10}\b`)
)

// returnVocabulary are normalized stems that signal the user wants to
// return something.
var returnVocabulary = []string{
	"devol", "devuelv", "devolv", "reembols", "retorn", "regres", "reintegr",
}

var questionOpeners = []string{
	"que ", "como ", "cual ", "cuales ", "cuando ", "donde ", "por que ", "cuanto ", "cuantos ", "puedo ", "hay ",
}

// Heuristic is a deterministic, model-free Classifier.
type Heuristic struct{}

// NewHeuristic creates a Heuristic classifier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Classify never fails.
func (h *Heuristic) Classify(_ context.Context, utterance string, state flow.State) (Intent, error) {
	return h.classify(utterance, state), nil
}

func (h *Heuristic) classify(utterance string, state flow.State) Intent {
	text := strings.TrimSpace(utterance)

	if ref := ExtractReference(text); ref != "" {
		return Intent{Kind: KindCheckEligibility, Reference: ref, Text: text}
	}
	if raw := SuspectReference(text); raw != "" {
		return Intent{Kind: KindCheckEligibility, Reference: raw, Text: text}
	}

	normalized := flow.Normalize(text)
	if state.Phase() == flow.PhaseAwaitingConfirmation {
		if flow.Classify(text) != flow.DecisionUnrecognized || !isQuestion(text, normalized) {
			return Intent{Kind: KindConfirm, Text: text}
		}
		return Intent{Kind: KindKnowledgeQuery, Text: text}
	}

	if mentionsReturn(normalized) && !isQuestion(text, normalized) {
		return Intent{Kind: KindAskReference, Text: text}
	}
	return Intent{Kind: KindKnowledgeQuery, Text: text}
}

// ExtractReference returns the first order id or standalone 8-digit
// customer id in text, or "". Order ids win over customer ids.
func ExtractReference(text string) string {
	if m := orderRefPattern.FindString(text); m != "" {
		return strings.ToUpper(m)
	}
	return customerRefPattern.FindString(text)
}

// SuspectReference returns the first token of text that looks like a
// mistyped reference: a "P-" prefix with anything after it, or a run of 6 to
// 10 digits. It returns "" when text holds no such token. The evaluator
// answers these with its format error.
func SuspectReference(text string) string {
	if m := malformedOrderPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return digitRunPattern.FindString(text)
}

func mentionsReturn(normalized string) bool {
	for _, stem := range returnVocabulary {
		if strings.Contains(normalized, stem) {
			return true
		}
	}
	return false
}

func isQuestion(raw, normalized string) bool {
	if strings.ContainsAny(raw, "?¿") {
		return true
	}
	padded := normalized + " "
	for _, opener := range questionOpeners {
		if strings.HasPrefix(padded, opener) {
			return true
		}
	}
	return false
}

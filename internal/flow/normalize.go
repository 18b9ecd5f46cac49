package flow

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Decision is the reading of a confirmation utterance.
type Decision int

const (
	DecisionUnrecognized Decision = iota
	DecisionYes
	DecisionNo
)

func (d Decision) String() string {
	switch d {
	case DecisionYes:
		return "yes"
	case DecisionNo:
		return "no"
	default:
		return "unrecognized"
	}
}

var yesPhrases = map[string]bool{
	"si":           true,
	"ok":           true,
	"confirmo":     true,
	"claro":        true,
	"vale":         true,
	"si confirmo":  true,
	"si por favor": true,
	"afirmativo":   true,
}

var noPhrases = map[string]bool{
	"no":         true,
	"nop":        true,
	"no gracias": true,
	"cancelar":   true,
	"cancelo":    true,
	"negativo":   true,
}

// Normalize lowercases text, strips diacritics, turns everything outside
// [a-z0-9] into spaces and collapses runs of whitespace.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(text)))
	if err != nil {
		folded = strings.ToLower(strings.TrimSpace(text))
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Classify matches the normalized utterance against the fixed phrase sets.
// Near misses are unrecognized.
func Classify(utterance string) Decision {
	t := Normalize(utterance)
	switch {
	case yesPhrases[t]:
		return DecisionYes
	case noPhrases[t]:
		return DecisionNo
	default:
		return DecisionUnrecognized
	}
}

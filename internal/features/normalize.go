package features

import (
	"errors"
	"maps"
	"strconv"
	"strings"
	"unicode"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/questionnaire"
)

// Normalizer maps raw answers onto canonical values for one catalog.
// It is read-only after construction and safe for concurrent use.
type Normalizer struct {
	catalog  *questionnaire.Catalog
	defaults map[string]Value
	synonyms map[string][]Synonym
}

// NewNormalizer returns a Normalizer for c using the OSMI defaults and
// synonym tables.
func NewNormalizer(c *questionnaire.Catalog) *Normalizer {
	return &Normalizer{
		catalog:  c,
		defaults: defaultValues,
		synonyms: synonymTables,
	}
}

// Default returns the registered default for a question id.
func (n *Normalizer) Default(id string) (Value, bool) {
	v, ok := n.defaults[id]
	return v, ok
}

// Defaults returns a copy of every registered default.
func (n *Normalizer) Defaults() map[string]Value {
	return maps.Clone(n.defaults)
}

// Normalize resolves raw into the canonical value for question id. It never
// fails: blank or unrecognised input yields the question's default.
//
// Resolution order:
//
//  1. Blank input → default.
//  2. Numeric question → integer parse, clamped to the question bounds.
//  3. The full trimmed answer: exact synonym key, exact option, synonym
//     substring, then (Gender only) the gender vocabulary.
//  4. The answer with its leading icon tokens removed ("💻 Not sure" →
//     "Not sure"), through the same steps.
//  5. The trailing token after the last space, through the same steps. This
//     is lossy for multi-word labels, which is why it runs last.
//  6. Gender → "Other"; everything else → default.
func (n *Normalizer) Normalize(id, raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return n.fallback(id)
	}

	q, err := n.catalog.ByID(id)
	if err != nil {
		// Not a catalog question; only a registered default can apply.
		q = questionnaire.Question{ID: id}
	}

	if q.IsNumeric() {
		return n.number(q, trimmed)
	}

	if v, ok := n.resolve(q, trimmed); ok {
		return Text(v)
	}
	if label := stripIcons(trimmed); label != trimmed {
		if v, ok := n.resolve(q, label); ok {
			return Text(v)
		}
	}
	if tok := lastToken(trimmed); tok != trimmed {
		if v, ok := n.resolve(q, tok); ok {
			return Text(v)
		}
	}

	if id == genderField {
		return Text(genderUnrecognized)
	}
	return n.fallback(id)
}

// resolve tries every label rule against v, exact matches first.
func (n *Normalizer) resolve(q questionnaire.Question, v string) (string, bool) {
	table := n.synonyms[q.ID]

	for _, s := range table {
		if s.From == v {
			return s.To, true
		}
	}
	if q.HasOption(v) {
		return v, true
	}

	lower := strings.ToLower(v)
	for _, s := range table {
		if strings.Contains(lower, strings.ToLower(s.From)) {
			return s.To, true
		}
	}

	if q.ID == genderField {
		for _, g := range genderVocabulary {
			if strings.Contains(lower, g.From) {
				return g.To, true
			}
		}
	}
	return "", false
}

// number parses an integer answer and clamps it to [Min, Max]. The clamp
// applies to the default too.
func (n *Normalizer) number(q questionnaire.Question, v string) Value {
	x, err := atoi(v)
	if err != nil {
		x, err = atoi(lastToken(v))
	}
	if err != nil {
		d := n.fallback(q.ID)
		if !d.Numeric {
			return Number(q.Min)
		}
		x = d.Number
	}
	return Number(min(max(x, q.Min), q.Max))
}

// atoi is strconv.Atoi except that out-of-range integers saturate to the
// int bounds instead of failing, so they still clamp.
func atoi(s string) (int, error) {
	x, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) {
		return x, nil
	}
	return x, err
}

func (n *Normalizer) fallback(id string) Value {
	if v, ok := n.defaults[id]; ok {
		return v
	}
	return Text(Unknown)
}

// stripIcons drops leading space-separated tokens that hold no letter or
// digit, such as the emoji rendered in front of an option label.
func stripIcons(s string) string {
	fields := strings.Fields(s)
	i := 0
	for i < len(fields) && !strings.ContainsFunc(fields[i], isLetterOrDigit) {
		i++
	}
	if i == 0 || i == len(fields) {
		return s
	}
	return strings.Join(fields[i:], " ")
}

func isLetterOrDigit(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// lastToken returns the part of s after its last space, or s itself.
func lastToken(s string) string {
	if i := strings.LastIndex(s, " "); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Package questionnaire holds the fixed survey catalog and the state machine
// that walks a session through it one question at a time.
//
// Dependency rule: questionnaire imports nothing from internal/. The features,
// store and assessment packages build on it.
package questionnaire

import (
	"errors"
	"fmt"
	"slices"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Kind is the input widget a question is rendered with.
type Kind string

const (
	KindNumeric Kind = "number"
	KindSelect  Kind = "select"
)

// Question is one immutable catalog entry. Options is set only for
// KindSelect, Min/Max only for KindNumeric.
type Question struct {
	ID        string   `json:"id"`
	Prompt    string   `json:"text"`
	Kind      Kind     `json:"type"`
	Options   []string `json:"options,omitempty"`
	Min       int      `json:"min,omitempty"`
	Max       int      `json:"max,omitempty"`
	Required  bool     `json:"required"`
	Icon      string   `json:"emoji,omitempty"`
	Category  string   `json:"category"`
	Sensitive bool     `json:"sensitive,omitempty"` // presentational only
}

// IsNumeric reports whether the answer is an integer rather than a label.
func (q Question) IsNumeric() bool { return q.Kind == KindNumeric }

// HasOption reports whether v is exactly one of the declared options.
func (q Question) HasOption(v string) bool {
	return slices.Contains(q.Options, v)
}

// clone returns a copy that shares no slices with q.
func (q Question) clone() Question {
	q.Options = slices.Clone(q.Options)
	return q
}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

var (
	// ErrOutOfRange means an index past the end of the catalog was requested.
	// Under correct state-machine use it never happens.
	ErrOutOfRange = errors.New("questionnaire: question index out of range")

	// ErrNotFound means no question carries the requested id.
	ErrNotFound = errors.New("questionnaire: question not found")
)

// ─── CATALOG ──────────────────────────────────────────────────────────────────

// Catalog is an ordered, read-only list of questions. Its order is the
// traversal order of the state machine. Safe for concurrent use.
type Catalog struct {
	questions []Question
	byID      map[string]int
}

// NewCatalog validates qs and builds a Catalog from a private copy of it.
// Ids must be unique and non-empty; select questions need options; numeric
// questions need Min <= Max.
func NewCatalog(qs []Question) (*Catalog, error) {
	c := &Catalog{
		questions: make([]Question, len(qs)),
		byID:      make(map[string]int, len(qs)),
	}
	for i, q := range qs {
		if q.ID == "" {
			return nil, fmt.Errorf("questionnaire: question %d has an empty id", i)
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("questionnaire: duplicate question id %q", q.ID)
		}
		switch q.Kind {
		case KindSelect:
			if len(q.Options) == 0 {
				return nil, fmt.Errorf("questionnaire: select question %q has no options", q.ID)
			}
		case KindNumeric:
			if q.Min > q.Max {
				return nil, fmt.Errorf("questionnaire: numeric question %q has min %d > max %d", q.ID, q.Min, q.Max)
			}
		default:
			return nil, fmt.Errorf("questionnaire: question %q has unknown kind %q", q.ID, q.Kind)
		}
		c.questions[i] = q.clone()
		c.byID[q.ID] = i
	}
	return c, nil
}

// MustCatalog is NewCatalog for package-level data known to be valid.
func MustCatalog(qs []Question) *Catalog {
	c, err := NewCatalog(qs)
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of questions.
func (c *Catalog) Len() int { return len(c.questions) }

// ByIndex returns the question at position i.
func (c *Catalog) ByIndex(i int) (Question, error) {
	if i < 0 || i >= len(c.questions) {
		return Question{}, fmt.Errorf("%w: %d (len %d)", ErrOutOfRange, i, len(c.questions))
	}
	return c.questions[i].clone(), nil
}

// ByID returns the question with the given id.
func (c *Catalog) ByID(id string) (Question, error) {
	i, ok := c.byID[id]
	if !ok {
		return Question{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return c.questions[i].clone(), nil
}

// All returns every question in catalog order. The slice is a copy.
func (c *Catalog) All() []Question {
	out := make([]Question, len(c.questions))
	for i, q := range c.questions {
		out[i] = q.clone()
	}
	return out
}

// IDs returns the question ids in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.questions))
	for i, q := range c.questions {
		out[i] = q.ID
	}
	return out
}

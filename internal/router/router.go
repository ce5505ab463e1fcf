package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pardeepwalia007/Assignment-RAG/internal/lexical"
	"github.com/pardeepwalia007/Assignment-RAG/internal/schema"
)

type Mode int

const (
	ModeDocumentOnly Mode = iota
	ModeStructuredOnly
	ModeHybrid
)

func (m Mode) String() string {
	switch m {
	case ModeStructuredOnly:
		return "structured_only"
	case ModeDocumentOnly:
		return "document_only"
	case ModeHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	switch m {
	case ModeStructuredOnly, ModeDocumentOnly, ModeHybrid:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("unknown mode %d", int(m))
	}
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "structured_only":
		return ModeStructuredOnly, nil
	case "document_only":
		return ModeDocumentOnly, nil
	case "hybrid":
		return ModeHybrid, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", value)
	}
}

// NeedsDocuments reports whether the mode consults document retrieval.
func (m Mode) NeedsDocuments() bool {
	switch m {
	case ModeDocumentOnly, ModeHybrid:
		return true
	case ModeStructuredOnly:
		return false
	default:
		return false
	}
}

// NeedsStructured reports whether the mode runs a structured query.
func (m Mode) NeedsStructured() bool {
	switch m {
	case ModeStructuredOnly, ModeHybrid:
		return true
	case ModeDocumentOnly:
		return false
	default:
		return false
	}
}

type Signal string

const (
	SignalDocument  Signal = "document"
	SignalAnalytics Signal = "analytics"
	SignalEntity    Signal = "entity"
	SignalState     Signal = "state"
	SignalName      Signal = "name"
)

// Match records one vocabulary hit. Column is set when the term names a
// column of the relation.
type Match struct {
	Signal Signal `json:"signal"`
	Term   string `json:"term"`
	Column string `json:"column,omitempty"`
}

type Decision struct {
	Mode             Mode    `json:"mode"`
	DocumentSignal   bool    `json:"document_signal"`
	StructuredSignal bool    `json:"structured_signal"`
	Matches          []Match `json:"matches"`
}

type Router struct {
	lexicon     Lexicon
	namePattern *regexp.Regexp
}

func New(lexicon Lexicon) (*Router, error) {
	lexicon.normalize()
	if err := lexicon.validate(); err != nil {
		return nil, fmt.Errorf("invalid lexicon: %w", err)
	}
	r := &Router{lexicon: lexicon}
	if lexicon.NamePattern != "" {
		r.namePattern = regexp.MustCompile(lexicon.NamePattern)
	}
	return r, nil
}

// NewDefault builds a router over the embedded lexicon.
func NewDefault() (*Router, error) {
	lexicon, err := DefaultLexicon()
	if err != nil {
		return nil, err
	}
	return New(lexicon)
}

func (r *Router) Lexicon() Lexicon {
	return r.lexicon
}

func (r *Router) Route(question string, relation schema.Relation) Decision {
	normalized := lexical.Normalize(question)
	decision := Decision{Matches: []Match{}}

	documentHits := r.collect(normalized, SignalDocument, r.lexicon.DocumentTerms, relation)
	analyticsHits := r.collect(normalized, SignalAnalytics, r.lexicon.AnalyticsTerms, relation)
	entityHits := r.collect(normalized, SignalEntity, r.lexicon.EntityTerms, relation)
	stateHits := r.collect(normalized, SignalState, r.lexicon.StateTerms, relation)

	var nameHits []Match
	if r.namePattern != nil {
		for _, span := range r.namePattern.FindAllString(question, -1) {
			nameHits = append(nameHits, Match{Signal: SignalName, Term: span})
		}
	}

	decision.Matches = append(decision.Matches, documentHits...)
	decision.Matches = append(decision.Matches, analyticsHits...)
	decision.Matches = append(decision.Matches, entityHits...)
	decision.Matches = append(decision.Matches, stateHits...)
	decision.Matches = append(decision.Matches, nameHits...)

	decision.DocumentSignal = len(documentHits) > 0
	entityWithQualifier := len(entityHits) > 0 && (len(stateHits) > 0 || len(nameHits) > 0)
	decision.StructuredSignal = len(analyticsHits) > 0 || entityWithQualifier
	decision.Mode = decide(decision.DocumentSignal, decision.StructuredSignal)
	return decision
}

func decide(documentSignal, structuredSignal bool) Mode {
	switch {
	case documentSignal && structuredSignal:
		return ModeHybrid
	case structuredSignal:
		return ModeStructuredOnly
	default:
		return ModeDocumentOnly
	}
}

func (r *Router) collect(normalized string, signal Signal, terms []string, relation schema.Relation) []Match {
	var hits []Match
	for _, term := range terms {
		if !lexical.ContainsTerm(normalized, term) {
			continue
		}
		hits = append(hits, Match{Signal: signal, Term: term, Column: columnFor(term, relation)})
	}
	return hits
}

func columnFor(term string, relation schema.Relation) string {
	candidate := strings.ReplaceAll(term, " ", "_")
	if column, ok := relation.Lookup(candidate); ok {
		return column.Name
	}
	return ""
}

package router

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultLexiconFile = "lexicon.yaml"

//go:embed lexicon.yaml
var embeddedLexicon embed.FS

// Lexicon holds the vocabulary tables that drive routing.
type Lexicon struct {
	DocumentTerms  []string `yaml:"document_terms"`
	AnalyticsTerms []string `yaml:"analytics_terms"`
	EntityTerms    []string `yaml:"entity_terms"`
	StateTerms     []string `yaml:"state_terms"`
	NamePattern    string   `yaml:"name_pattern"`
}

// DefaultLexicon returns the lexicon compiled into the binary.
func DefaultLexicon() (Lexicon, error) {
	return LoadLexicon(embeddedLexicon, defaultLexiconFile)
}

func LoadLexicon(fsys fs.FS, name string) (Lexicon, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Lexicon{}, fmt.Errorf("read lexicon %q: %w", name, err)
	}
	var lexicon Lexicon
	if err := yaml.Unmarshal(raw, &lexicon); err != nil {
		return Lexicon{}, fmt.Errorf("decode lexicon %q: %w", name, err)
	}
	lexicon.normalize()
	if err := lexicon.validate(); err != nil {
		return Lexicon{}, fmt.Errorf("invalid lexicon %q: %w", name, err)
	}
	return lexicon, nil
}

func (l *Lexicon) normalize() {
	l.DocumentTerms = normalizeTerms(l.DocumentTerms)
	l.AnalyticsTerms = normalizeTerms(l.AnalyticsTerms)
	l.EntityTerms = normalizeTerms(l.EntityTerms)
	l.StateTerms = normalizeTerms(l.StateTerms)
	l.NamePattern = strings.TrimSpace(l.NamePattern)
}

func (l Lexicon) validate() error {
	if len(l.DocumentTerms) == 0 {
		return fmt.Errorf("document_terms must not be empty")
	}
	if len(l.AnalyticsTerms) == 0 {
		return fmt.Errorf("analytics_terms must not be empty")
	}
	if l.NamePattern != "" {
		if _, err := regexp.Compile(l.NamePattern); err != nil {
			return fmt.Errorf("name_pattern: %w", err)
		}
	}
	return nil
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.Join(strings.Fields(strings.ToLower(term)), " ")
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

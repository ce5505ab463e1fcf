package intent

import (
	"sort"
	"strings"
	"unicode"

	"github.com/pardeepwalia007/Assignment-RAG/internal/lexical"
	"github.com/pardeepwalia007/Assignment-RAG/internal/schema"
)

// unitSuffixes may be dropped from the end of a column name when matching
// free text, so "resolution time" finds resolution_hours.
var unitSuffixes = map[string]bool{
	"hour": true, "hr": true, "day": true, "minute": true, "min": true,
	"second": true, "sec": true, "usd": true, "eur": true, "pct": true,
}

type word struct {
	raw   string
	lower string
	text  string
}

type columnRef struct {
	name  string
	class schema.ColumnClass
	full  []string
	short []string
}

type columnIndex []columnRef

func splitWords(value string) []word {
	var out []word
	for _, token := range strings.FieldsFunc(value, isSeparator) {
		for _, part := range strings.Split(token, "_") {
			if part == "" {
				continue
			}
			lower := strings.ToLower(part)
			out = append(out, word{raw: part, lower: lower, text: lexical.Singular(lower)})
		}
	}
	return out
}

func phraseWords(value string) []string {
	words := splitWords(value)
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, w.text)
	}
	return out
}

func isSeparator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

func newColumnIndex(relation schema.Relation) columnIndex {
	index := make(columnIndex, 0, len(relation.Columns))
	for _, column := range relation.Columns {
		ref := columnRef{
			name:  column.Name,
			class: schema.Classify(column.Type),
			full:  phraseWords(column.Name),
		}
		if n := len(ref.full); n > 1 && unitSuffixes[ref.full[n-1]] {
			ref.short = ref.full[:n-1]
		}
		index = append(index, ref)
	}
	return index
}

// resolve maps a phrase to columns. Exact matches win over partial ones.
func (ix columnIndex) resolve(phrase []string) []string {
	if len(phrase) == 0 {
		return nil
	}
	var exact, partial []string
	for _, ref := range ix {
		switch {
		case equalWords(ref.full, phrase), ref.short != nil && equalWords(ref.short, phrase):
			exact = append(exact, ref.name)
		case len(phrase) < len(ref.full) && indexSeq(ref.full, phrase) >= 0:
			partial = append(partial, ref.name)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return partial
}

// mentions lists columns named in the words, ordered by first position.
func (ix columnIndex) mentions(words []word) []string {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.text
	}
	type hit struct {
		name  string
		pos   int
		order int
	}
	var hits []hit
	for order, ref := range ix {
		pos := indexSeq(texts, ref.full)
		if pos < 0 && ref.short != nil {
			pos = indexSeq(texts, ref.short)
		}
		if pos >= 0 {
			hits = append(hits, hit{name: ref.name, pos: pos, order: order})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].order < hits[j].order
	})
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

func (ix columnIndex) class(name string) schema.ColumnClass {
	for _, ref := range ix {
		if strings.EqualFold(ref.name, name) {
			return ref.class
		}
	}
	return schema.ClassTextual
}

func equalWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func indexSeq(haystack, needle []string) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if equalWords(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func appendUnique(values []string, items ...string) []string {
	for _, item := range items {
		if !containsFold(values, item) {
			values = append(values, item)
		}
	}
	return values
}

func containsFold(values []string, item string) bool {
	for _, value := range values {
		if strings.EqualFold(value, item) {
			return true
		}
	}
	return false
}

func isIdentifierColumn(name string) bool {
	lower := strings.ToLower(name)
	return lower == "id" || strings.HasSuffix(lower, "_id")
}

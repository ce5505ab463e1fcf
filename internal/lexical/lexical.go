// Package lexical holds the small text helpers shared by routing, intent
// refinement and retrieval.
package lexical

import (
	"strings"
	"unicode"
)

// Normalize lowercases text and collapses runs of whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// IndexTerm returns the first offset of term in text that starts on a word
// boundary, or -1. Both arguments are expected to be normalized.
func IndexTerm(text, term string) int {
	if term == "" {
		return -1
	}
	offset := 0
	for offset <= len(text)-len(term) {
		idx := strings.Index(text[offset:], term)
		if idx < 0 {
			return -1
		}
		at := offset + idx
		if at == 0 || !isWordByte(text[at-1]) {
			return at
		}
		offset = at + 1
	}
	return -1
}

func ContainsTerm(text, term string) bool {
	return IndexTerm(text, term) >= 0
}

// IndexWord is IndexTerm with a word boundary required on both sides.
func IndexWord(text, word string) int {
	offset := 0
	for offset <= len(text)-len(word) {
		idx := IndexTerm(text[offset:], word)
		if idx < 0 {
			return -1
		}
		at := offset + idx
		end := at + len(word)
		if end == len(text) || !isWordByte(text[end]) {
			if at == 0 || !isWordByte(text[at-1]) {
				return at
			}
		}
		offset = at + 1
	}
	return -1
}

func ContainsWord(text, word string) bool {
	return word != "" && IndexWord(text, word) >= 0
}

// Words splits text into lowercase word tokens. Underscores are kept so
// snake_case identifiers survive as one token.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
}

// Singular strips a simple English plural suffix.
func Singular(word string) string {
	switch {
	case len(word) > 4 && strings.HasSuffix(word, "ies"):
		return word[:len(word)-3] + "y"
	case len(word) > 4 && (strings.HasSuffix(word, "sses") || strings.HasSuffix(word, "uses")):
		return word[:len(word)-2]
	case len(word) > 3 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && !strings.HasSuffix(word, "us"):
		return word[:len(word)-1]
	default:
		return word
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b >= 0x80
}

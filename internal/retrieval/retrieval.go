package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pardeepwalia007/Assignment-RAG/internal/lexical"
)

// Document is one extracted policy or reference text.
type Document struct {
	Name string
	Text string
}

// Passage is a scored chunk of a document.
type Passage struct {
	Source string  `json:"source"`
	Chunk  int     `json:"chunk"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]Passage, error)
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "how": true, "in": true, "is": true, "it": true,
	"of": true, "on": true, "or": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "what": true, "when": true, "which": true, "with": true, "our": true,
	"we": true, "you": true, "your": true, "do": true, "does": true, "can": true,
}

// Chunk splits text into windows of at most size characters on word
// boundaries. Consecutive windows share up to overlap characters.
func Chunk(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 {
		return []string{strings.Join(words, " ")}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end, length := start, 0
		for end < len(words) {
			add := utf8.RuneCountInString(words[end])
			if end > start {
				add++
			}
			if length+add > size && end > start {
				break
			}
			length += add
			end++
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}
		next, carried := end, 0
		for next > start+1 {
			width := utf8.RuneCountInString(words[next-1]) + 1
			if carried+width > overlap {
				break
			}
			carried += width
			next--
		}
		start = next
	}
	return chunks
}

// Index is an in-memory TF-IDF index over document chunks.
type Index struct {
	passages []Passage
	vectors  []map[string]float64
	norms    []float64
	df       map[string]int
	total    int
}

func NewIndex(docs []Document, chunkSize, chunkOverlap int) *Index {
	ix := &Index{df: make(map[string]int)}
	for _, doc := range docs {
		for i, text := range Chunk(doc.Text, chunkSize, chunkOverlap) {
			ix.passages = append(ix.passages, Passage{Source: doc.Name, Chunk: i, Text: text})
		}
	}
	ix.total = len(ix.passages)

	ix.vectors = make([]map[string]float64, len(ix.passages))
	for i, passage := range ix.passages {
		tf := termFrequencies(passage.Text)
		for term := range tf {
			ix.df[term]++
		}
		ix.vectors[i] = tf
	}
	ix.norms = make([]float64, len(ix.passages))
	for i, tf := range ix.vectors {
		var norm float64
		for term, freq := range tf {
			weight := ix.tfidfWeight(term, freq)
			tf[term] = weight
			norm += weight * weight
		}
		ix.norms[i] = math.Sqrt(norm)
	}
	return ix
}

// Len reports the number of indexed passages.
func (ix *Index) Len() int {
	return len(ix.passages)
}

// Search returns up to topK passages by cosine similarity. Passages with no
// shared terms are never returned.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 4
	}
	qtf := termFrequencies(query)
	var qnorm float64
	for term, freq := range qtf {
		weight := ix.tfidfWeight(term, freq)
		qtf[term] = weight
		qnorm += weight * weight
	}
	qnorm = math.Sqrt(qnorm)
	if qnorm == 0 {
		return []Passage{}, nil
	}

	scored := make([]Passage, 0, len(ix.passages))
	for i, passage := range ix.passages {
		denom := qnorm * ix.norms[i]
		if denom == 0 {
			continue
		}
		var dot float64
		for term, weight := range qtf {
			dot += weight * ix.vectors[i][term]
		}
		if dot <= 0 {
			continue
		}
		passage.Score = dot / denom
		scored = append(scored, passage)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (ix *Index) tfidfWeight(term string, freq float64) float64 {
	df := float64(ix.df[term])
	if df == 0 {
		return 0
	}
	idf := math.Log((float64(ix.total)+1)/(df+1)) + 1
	return freq * idf
}

func termFrequencies(text string) map[string]float64 {
	tf := make(map[string]float64)
	for _, word := range lexical.Words(text) {
		for _, term := range strings.Split(word, "_") {
			if len(term) < 2 || stopwords[term] {
				continue
			}
			tf[lexical.Singular(term)]++
		}
	}
	return tf
}

// JoinPassages concatenates passage texts in rank order.
func JoinPassages(passages []Passage) string {
	texts := make([]string, 0, len(passages))
	for _, passage := range passages {
		texts = append(texts, passage.Text)
	}
	return strings.Join(texts, "\n")
}

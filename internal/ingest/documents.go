package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/pardeepwalia007/Assignment-RAG/internal/retrieval"
)

type docKind int

const (
	kindPDF docKind = iota
	kindText
)

const extractConcurrency = 4

func documentKind(name string) (docKind, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".pdf":
		return kindPDF, nil
	case ".txt", ".md", ".markdown":
		return kindText, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}

// Extraction is the outcome of ExtractDocuments. Documents keeps upload order.
type Extraction struct {
	Documents []retrieval.Document
	Rejected  []*DocumentError
}

func (e Extraction) Warnings() []string {
	warnings := make([]string, 0, len(e.Rejected))
	for _, rejected := range e.Rejected {
		warnings = append(warnings, rejected.Error())
	}
	return warnings
}

// ExtractDocuments pulls text out of each document concurrently. Unusable
// documents are rejected one by one; ErrNoUsableDocuments is returned only
// when documents were supplied and none survived.
func ExtractDocuments(ctx context.Context, files []DocumentFile, limits Limits) (Extraction, error) {
	limits = limits.withDefaults()
	if len(files) > limits.MaxDocuments {
		return Extraction{}, fmt.Errorf("%w: got %d, maximum is %d", ErrTooManyDocuments, len(files), limits.MaxDocuments)
	}

	texts := make([]string, len(files))
	failures := make([]error, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(extractConcurrency)
	for i, file := range files {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			text, err := extractText(file, limits.MinDocumentChars)
			if err != nil {
				failures[i] = err
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Extraction{}, err
	}

	var out Extraction
	for i, file := range files {
		if failures[i] != nil {
			out.Rejected = append(out.Rejected, &DocumentError{Name: file.Name, Err: failures[i]})
			continue
		}
		out.Documents = append(out.Documents, retrieval.Document{Name: file.Name, Text: texts[i]})
	}
	if len(files) > 0 && len(out.Documents) == 0 {
		return out, fmt.Errorf("%w: %s", ErrNoUsableDocuments, strings.Join(out.Warnings(), "; "))
	}
	return out, nil
}

func extractText(file DocumentFile, minChars int) (string, error) {
	if len(file.Data) == 0 {
		return "", ErrEmptyFile
	}
	kind, err := documentKind(file.Name)
	if err != nil {
		return "", err
	}

	var text string
	switch kind {
	case kindPDF:
		text, err = extractPDF(file.Data)
		if err != nil {
			return "", err
		}
	case kindText:
		if !utf8.Valid(file.Data) {
			return "", fmt.Errorf("%w: text is not valid UTF-8", ErrUnreadable)
		}
		text = string(file.Data)
	}

	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minChars {
		return "", fmt.Errorf("%w: fewer than %d characters", ErrTooLittleText, minChars)
	}
	return text, nil
}

// extractPDF recovers from parser panics on malformed input.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			text, err = "", fmt.Errorf("%w: pdf parser: %v", ErrUnreadable, recovered)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if reader.NumPage() == 0 {
		return "", fmt.Errorf("%w: no pages", ErrUnreadable)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return string(raw), nil
}

package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/pardeepwalia007/Assignment-RAG/internal/query/duckdb"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyFile           = errors.New("empty file")
	ErrUnreadable          = errors.New("unreadable file")
	ErrTooManyDocuments    = errors.New("too many documents")
	ErrNoUsableDocuments   = errors.New("no usable documents")
	ErrTooLittleText       = errors.New("no readable text")
)

const (
	DefaultMaxDocuments     = 6
	DefaultMinDocumentChars = 20
)

var parquetMagic = []byte("PAR1")

type TabularFile struct {
	Name string
	Data []byte
}

type DocumentFile struct {
	Name string
	Data []byte
}

// Upload is one session's raw input.
type Upload struct {
	Customers TabularFile
	Tickets   TabularFile
	Documents []DocumentFile
}

type Limits struct {
	MaxDocuments     int
	MinDocumentChars int
}

func (l Limits) withDefaults() Limits {
	if l.MaxDocuments <= 0 {
		l.MaxDocuments = DefaultMaxDocuments
	}
	if l.MinDocumentChars <= 0 {
		l.MinDocumentChars = DefaultMinDocumentChars
	}
	return l
}

// DocumentError explains why one document was not indexed.
type DocumentError struct {
	Name string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %q: %v", e.Name, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Reason is a stable label for metrics.
func (e *DocumentError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrEmptyFile):
		return "empty"
	case errors.Is(e.Err, ErrTooLittleText):
		return "too_little_text"
	default:
		return "unreadable"
	}
}

// ValidateUpload rejects uploads that cannot produce a session. Per-document
// content problems are left to ExtractDocuments.
func ValidateUpload(upload Upload, limits Limits) error {
	limits = limits.withDefaults()
	for _, file := range []struct {
		role string
		file TabularFile
	}{{"customers", upload.Customers}, {"tickets", upload.Tickets}} {
		if _, err := DetectTabularFormat(file.file); err != nil {
			return fmt.Errorf("%s file %q: %w", file.role, file.file.Name, err)
		}
	}
	if len(upload.Documents) > limits.MaxDocuments {
		return fmt.Errorf("%w: got %d, maximum is %d", ErrTooManyDocuments, len(upload.Documents), limits.MaxDocuments)
	}
	for _, doc := range upload.Documents {
		if _, err := documentKind(doc.Name); err != nil {
			return fmt.Errorf("document %q: %w", doc.Name, err)
		}
	}
	return nil
}

// DetectTabularFormat identifies CSV or Parquet by magic bytes, falling back
// to the file extension.
func DetectTabularFormat(file TabularFile) (duckdb.Format, error) {
	if len(file.Data) == 0 {
		return 0, ErrEmptyFile
	}
	ext := strings.ToLower(filepath.Ext(file.Name))
	if bytes.HasPrefix(file.Data, parquetMagic) {
		if err := validateParquet(file.Data); err != nil {
			return 0, err
		}
		return duckdb.FormatParquet, nil
	}
	switch ext {
	case ".parquet":
		return 0, fmt.Errorf("%w: missing parquet magic", ErrUnreadable)
	case ".csv", ".tsv", ".txt", "":
		if err := validateCSV(file.Data); err != nil {
			return 0, err
		}
		return duckdb.FormatCSV, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
}

func validateParquet(data []byte) error {
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if len(file.Schema().Fields()) == 0 {
		return fmt.Errorf("%w: parquet file has no columns", ErrUnreadable)
	}
	return nil
}

func validateCSV(data []byte) error {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrEmptyFile
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	for _, field := range header {
		if strings.TrimSpace(field) != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: header row is blank", ErrUnreadable)
}

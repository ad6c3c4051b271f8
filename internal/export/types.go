// Package export renders intake forms as PDF or DOCX and archives the files.
package export

import (
	"errors"
	"strings"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat accepts "pdf" or "docx" in any case. Empty means PDF.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatDOCX:
		return FormatDOCX, nil
	}
	return "", ErrUnsupportedFormat
}

// Request contains parameters for an export operation
type Request struct {
	TrainerID int64
	FormID    int64
	Format    Format
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	// ObjectKey and URL are set when the file was archived.
	ObjectKey string
	URL       string
}

var (
	// ErrUnsupportedFormat is returned for formats other than pdf and docx.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrFormNotCompleted rejects exports of forms that are still being filled in.
	ErrFormNotCompleted = errors.New("intake form is not completed")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)

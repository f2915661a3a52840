package quizgen

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"quiz-forge/internal/domain"

	"github.com/ledongthuc/pdf"
)

var errNotPDF = errors.New("input is not a PDF document")

// ExtractText resolves the plain text a quiz is generated from.
// Non-blank sourceText wins and is returned verbatim. Otherwise the PDF text layer is
// returned, which may be empty for scanned documents. Unreadable PDF bytes fail with a
// NoContentError.
func ExtractText(sourceText string, pdfData []byte) (string, error) {
	if strings.TrimSpace(sourceText) != "" {
		return sourceText, nil
	}
	if len(pdfData) == 0 {
		return "", nil
	}
	text, err := extractPDF(pdfData)
	if err != nil {
		return "", domain.NewNoContentError(err)
	}
	return text, nil
}

func isPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func extractPDF(data []byte) (text string, err error) {
	if !isPDF(data) {
		return "", errNotPDF
	}
	// the reader panics on some truncated xref tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf reader: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return string(b), nil
}

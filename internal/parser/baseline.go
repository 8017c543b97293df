package parser

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Baseline is the plain-text parsing backend. It expects text that an
// upstream extractor (pdftotext, docx converter, OCR) already produced
// and normalizes it: CRLF folding, invalid-UTF-8 replacement, trailing
// whitespace trim.
type Baseline struct{}

var _ Parser = (*Baseline)(nil)

// NewBaseline creates the baseline parser.
func NewBaseline() *Baseline {
	return &Baseline{}
}

// Name returns the backend tag.
func (b *Baseline) Name() string {
	return "baseline"
}

// Parse reads and normalizes the document text.
func (b *Baseline) Parse(ctx context.Context, r io.Reader, filename string) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", filename, err)
	}
	return &ParseResult{Content: Normalize(string(data))}, nil
}

// Normalize folds line endings and replaces invalid UTF-8 so downstream
// offset arithmetic is stable across platforms.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return strings.TrimRight(text, " \t\n")
}

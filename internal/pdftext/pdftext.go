// Package pdftext extracts plain text from PDF files with poppler's pdftotext.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoText is returned when the PDF has no extractable text, e.g. a scan.
var ErrNoText = errors.New("no text found in PDF")

// Extractor runs pdftotext.
type Extractor struct {
	bin string
}

// New creates an extractor. An empty bin defaults to "pdftotext".
func New(bin string) *Extractor {
	if bin == "" {
		bin = "pdftotext"
	}
	return &Extractor{bin: bin}
}

// ExtractFile returns the text of the PDF at path, keeping the page layout.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, e.bin, "-layout", "-enc", "UTF-8", path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	text := stdout.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

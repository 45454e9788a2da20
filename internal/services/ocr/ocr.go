// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ocr extracts text from images with the tesseract command-line tool.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"codeberg.org/oliverandrich/productscan/internal/imagedata"
)

var commandContext = exec.CommandContext

// ErrOCR marks every text extraction failure.
var ErrOCR = errors.New("ocr failed")

// Option configures the Tesseract client.
type Option func(*Tesseract)

// WithBinary overrides the tesseract executable.
func WithBinary(binary string) Option {
	return func(t *Tesseract) {
		if binary != "" {
			t.binary = binary
		}
	}
}

// WithLanguages sets the tesseract -l value, e.g. "eng+deu".
func WithLanguages(langs string) Option {
	return func(t *Tesseract) {
		if langs != "" {
			t.languages = langs
		}
	}
}

// Tesseract runs `tesseract stdin stdout` for each image.
type Tesseract struct {
	binary    string
	languages string
}

// NewTesseract constructs a client using defaults.
func NewTesseract(opts ...Option) *Tesseract {
	t := &Tesseract{binary: "tesseract", languages: "eng"}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ExtractText returns the recognised text, trimmed. An image without any
// text yields an empty string and no error.
func (t *Tesseract) ExtractText(ctx context.Context, img imagedata.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrOCR)
	}

	cmd := commandContext(ctx, t.binary, "stdin", "stdout", "-l", t.languages) //nolint:gosec
	cmd.Stdin = bytes.NewReader(img.Data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ErrOCR, ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("%w: %s", ErrOCR, detail)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package identify

import "errors"

var (
	ErrUnauthorized   = errors.New("authentication or guest session required")
	ErrNoImage        = errors.New("no image provided")
	ErrInvalidImage   = errors.New("invalid image data")
	ErrExtraction     = errors.New("failed to extract text from image")
	ErrClassification = errors.New("classification failed")
	ErrPersistence    = errors.New("failed to save product")
)

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package imagedata decodes image payloads submitted as base64 or data URLs.
package imagedata

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrEmpty is returned for a blank payload.
	ErrEmpty = errors.New("image payload is empty")
	// ErrMalformed is returned when the payload is not valid base64 or a base64 data URL.
	ErrMalformed = errors.New("image payload is not valid base64")
	// ErrNotImage is returned when the decoded bytes are not a known image format.
	ErrNotImage = fmt.Errorf("%w: not an image", ErrMalformed)
)

// Image is a decoded image.
type Image struct {
	Data     []byte
	MIMEType string
}

// Parse decodes a data URL ("data:image/png;base64,....") or a bare base64
// string. Whitespace inside the payload is ignored. The MIME type is sniffed
// from the decoded bytes; the type declared in a data URL is ignored.
func Parse(payload string) (Image, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Image{}, ErrEmpty
	}

	encoded := payload
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload[len("data:"):], ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return Image{}, ErrMalformed
		}
		encoded = body
	}

	encoded = strings.Join(strings.Fields(encoded), "")
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
	}
	if err != nil || len(data) == 0 {
		return Image{}, ErrMalformed
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return Image{}, ErrNotImage
	}
	return Image{Data: data, MIMEType: mimeType}, nil
}

// DataURL encodes the image as a base64 data URL.
func (img Image) DataURL() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Extension returns a file extension for the image type.
func (img Image) Extension() string {
	switch img.MIMEType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	default:
		return ".bin"
	}
}

// IsImage reports whether data sniffs as an image.
func IsImage(data []byte) bool {
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package imagedata_test

import (
	"encoding/base64"
	"testing"

	"codeberg.org/oliverandrich/productscan/internal/imagedata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

func TestParse_DataURL(t *testing.T) {
	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)

	img, err := imagedata.Parse(payload)

	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, pngHeader, img.Data)
	assert.Equal(t, ".png", img.Extension())
}

func TestParse_BareBase64IsSniffed(t *testing.T) {
	img, err := imagedata.Parse(base64.StdEncoding.EncodeToString(jpegHeader))

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)
	assert.Equal(t, jpegHeader, img.Data)
	assert.Equal(t, ".jpg", img.Extension())
}

func TestParse_IgnoresDeclaredType(t *testing.T) {
	img, err := imagedata.Parse("data:text/plain;base64," + base64.StdEncoding.EncodeToString(pngHeader))

	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
}

func TestParse_UnpaddedAndWrapped(t *testing.T) {
	encoded := base64.RawStdEncoding.EncodeToString(pngHeader)
	wrapped := encoded[:8] + "\n" + encoded[8:]

	img, err := imagedata.Parse(wrapped)

	require.NoError(t, err)
	assert.Equal(t, pngHeader, img.Data)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"empty", "", imagedata.ErrEmpty},
		{"blank", "   ", imagedata.ErrEmpty},
		{"not base64", "!!!not-base64!!!", imagedata.ErrMalformed},
		{"data url without base64", "data:image/png,rawdata", imagedata.ErrMalformed},
		{"data url without comma", "data:image/png;base64", imagedata.ErrMalformed},
		{"empty body", "data:image/png;base64,", imagedata.ErrMalformed},
		{"html disguised as png", "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("<html><script>alert(1)</script>")), imagedata.ErrNotImage},
		{"html data url", "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte("<script>alert(1)</script>")), imagedata.ErrNotImage},
		{"bare text", base64.StdEncoding.EncodeToString([]byte("plain text")), imagedata.ErrNotImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := imagedata.Parse(tt.payload)
			assert.ErrorIs(t, err, tt.want)
			if tt.want != imagedata.ErrEmpty {
				assert.ErrorIs(t, err, imagedata.ErrMalformed)
			}
		})
	}
}

func TestImage_DataURL_RoundTrip(t *testing.T) {
	img := imagedata.Image{Data: pngHeader, MIMEType: "image/png"}

	parsed, err := imagedata.Parse(img.DataURL())

	require.NoError(t, err)
	assert.Equal(t, img, parsed)
}

func TestIsImage(t *testing.T) {
	assert.True(t, imagedata.IsImage(pngHeader))
	assert.False(t, imagedata.IsImage([]byte("plain text")))
}

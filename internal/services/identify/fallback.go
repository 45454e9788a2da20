// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package identify

import (
	"strings"

	"codeberg.org/oliverandrich/productscan/internal/models"
)

const (
	fallbackCategory    = "Electronics"
	unknownBrand        = "Unknown"
	unknownProduct      = "Unknown Product"
	noTextDescription   = "No text could be extracted from the image."
	descriptionPrefix   = "Identified from text: "
	maxNameRunes        = 50
	maxDescriptionRunes = 200
)

// brands is matched in order; the first keyword found wins.
var brands = []struct {
	keyword string
	display string
}{
	{"nvidia", "NVIDIA"},
	{"geforce", "NVIDIA"},
	{"amd", "AMD"},
	{"radeon", "AMD"},
	{"intel", "Intel"},
	{"apple", "Apple"},
	{"samsung", "Samsung"},
	{"sony", "Sony"},
	{"microsoft", "Microsoft"},
	{"logitech", "Logitech"},
	{"lenovo", "Lenovo"},
	{"asus", "ASUS"},
	{"gigabyte", "Gigabyte"},
	{"corsair", "Corsair"},
	{"dell", "Dell"},
	{"philips", "Philips"},
	{"canon", "Canon"},
	{"nikon", "Nikon"},
}

// Fallback derives product attributes from OCR text alone. It never fails.
func Fallback(text string) models.ProductAttributes {
	collapsed := collapse(text)
	if collapsed == "" {
		return models.ProductAttributes{
			Name:        unknownProduct,
			Description: noTextDescription,
			Brand:       unknownBrand,
			Category:    fallbackCategory,
		}
	}

	return models.ProductAttributes{
		Name:        truncate(firstLine(text), maxNameRunes),
		Description: descriptionPrefix + truncate(collapsed, maxDescriptionRunes),
		Brand:       detectBrand(collapsed),
		Category:    fallbackCategory,
	}
}

func detectBrand(text string) string {
	lower := strings.ToLower(text)
	for _, b := range brands {
		if strings.Contains(lower, b.keyword) {
			return b.display
		}
	}
	return unknownBrand
}

func firstLine(text string) string {
	for line := range strings.Lines(text) {
		if c := collapse(line); c != "" {
			return c
		}
	}
	return unknownProduct
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

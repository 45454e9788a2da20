// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"codeberg.org/oliverandrich/productscan/internal/imagedata"
	"codeberg.org/oliverandrich/productscan/internal/models"
)

const systemPrompt = `You are a product identification expert. Analyze the image and the text
extracted from it and identify the product. Respond with a JSON object with the keys
"name", "description", "brand" and "category". Use an empty string for unknown values.`

// Classify asks the model to identify the product shown in img. Every
// failure wraps ErrClassification.
func (c *Client) Classify(ctx context.Context, img imagedata.Image, text string) (models.ProductAttributes, error) {
	var attrs models.ProductAttributes
	if c.cfg.APIKey == "" {
		return attrs, fmt.Errorf("%w: api key not configured", ErrClassification)
	}

	prompt := "Identify this product."
	if t := strings.TrimSpace(text); t != "" {
		prompt += " Text found on the product: " + t
	}

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: img.DataURL()}},
			}},
		},
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	content, err := c.complete(ctx, req)
	if err != nil {
		return attrs, fmt.Errorf("%w: %w", ErrClassification, err)
	}
	if err := DecodeJSON(content, &attrs); err != nil {
		return attrs, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	attrs.Name = strings.TrimSpace(attrs.Name)
	attrs.Description = strings.TrimSpace(attrs.Description)
	attrs.Brand = strings.TrimSpace(attrs.Brand)
	attrs.Category = strings.TrimSpace(attrs.Category)
	if attrs.Name == "" {
		return attrs, fmt.Errorf("%w: response has no product name", ErrClassification)
	}
	return attrs, nil
}

// DecodeJSON decodes a model response, tolerating code fences and prose
// around the JSON object.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}

	sanitized := stripCodeFence(trimmed)
	if start := strings.Index(sanitized, "{"); start >= 0 {
		if end := strings.LastIndex(sanitized, "}"); end > start {
			sanitized = sanitized[start : end+1]
		}
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("failed to decode payload %q: %w", snippet(trimmed), err)
	}
	return nil
}

func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	body := strings.TrimLeft(content[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

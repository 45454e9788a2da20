// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// action is an email asking the recipient to open a single link.
type action struct {
	subject  string
	greeting string
	body     string
	label    string
	link     string
	note     string
	footer   string
}

func (a action) text() string {
	var sb strings.Builder
	sb.WriteString(a.greeting + "\n\n")
	sb.WriteString(a.body + "\n\n")
	sb.WriteString(a.link + "\n\n")
	if a.note != "" {
		sb.WriteString(a.note + "\n\n")
	}
	sb.WriteString(a.footer + "\n")
	return sb.String()
}

func actionEmail(a action) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		link := templ.EscapeString(string(templ.URL(a.link)))

		var sb strings.Builder
		sb.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`)
		sb.WriteString(templ.EscapeString(a.subject))
		sb.WriteString(`</title></head><body style="font-family:sans-serif;line-height:1.5">`)
		sb.WriteString(`<p>` + templ.EscapeString(a.greeting) + `</p>`)
		sb.WriteString(`<p>` + templ.EscapeString(a.body) + `</p>`)
		sb.WriteString(`<p><a href="` + link + `" style="display:inline-block;padding:10px 16px;background:#2563eb;color:#fff;text-decoration:none;border-radius:6px">`)
		sb.WriteString(templ.EscapeString(a.label) + `</a></p>`)
		sb.WriteString(`<p style="font-size:12px;color:#555">` + link + `</p>`)
		if a.note != "" {
			sb.WriteString(`<p>` + templ.EscapeString(a.note) + `</p>`)
		}
		sb.WriteString(`<p style="font-size:12px;color:#555">` + templ.EscapeString(a.footer) + `</p>`)
		sb.WriteString(`</body></html>`)

		_, err := io.WriteString(w, sb.String())
		return err
	})
}

func renderHTML(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

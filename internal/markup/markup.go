// Package markup turns user-authored plain text into display markup.
package markup

import (
	"html"
	"html/template"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Paragraphs escapes text and then wraps each blank-line separated block in
// <p>, turning the remaining single line breaks into <br />.
func Paragraphs(text string) template.HTML {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.Trim(para, "\n")
		if strings.TrimSpace(para) == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i := range lines {
			lines[i] = html.EscapeString(lines[i])
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br />"))
		b.WriteString("</p>")
	}
	return template.HTML(b.String())
}

// DayMonth formats a due date the way task cards show it, e.g. "2 Jan".
func DayMonth(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2 Jan")
}

// Ago renders t relative to now, e.g. "3 minutes ago".
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

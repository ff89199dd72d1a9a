package mdrender

import (
	"bytes"

	"github.com/yuin/goldmark"
)

var md = goldmark.New()

// ToHTML renders generated markdown for the extension UI. Render failures
// fall back to an empty string so the plain-text answer still goes out.
func ToHTML(markdown string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return ""
	}
	return buf.String()
}

// Package docgen renders summary content as a DOCX document. The input is
// the lightly Markdown-shaped text the summary prompts produce: #/##/###
// headings, dash or asterisk bullets, and plain paragraphs.
package docgen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// Render converts summary content into DOCX bytes, with title as the
// document heading.
func Render(title, content string) ([]byte, error) {
	doc := docx.New().WithDefaultTheme()

	if title != "" {
		doc.AddParagraph().AddText(title).Size("36").Bold()
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, " \t")
		switch {
		case strings.TrimSpace(line) == "":
			continue
		case strings.HasPrefix(line, "### "):
			doc.AddParagraph().AddText(strings.TrimPrefix(line, "### ")).Size("26").Bold()
		case strings.HasPrefix(line, "## "):
			doc.AddParagraph().AddText(strings.TrimPrefix(line, "## ")).Size("28").Bold()
		case strings.HasPrefix(line, "# "):
			doc.AddParagraph().AddText(strings.TrimPrefix(line, "# ")).Size("32").Bold()
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			doc.AddParagraph().AddText("• " + line[2:])
		default:
			doc.AddParagraph().AddText(line)
		}
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}

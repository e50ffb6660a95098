package feed

import (
	"log/slog"
	"strings"

	"github.com/go-shiori/go-readability"
)

// PlainText returns the readable text of an HTML fragment. Input without
// markup is returned trimmed; if extraction fails the trimmed input is kept.
func PlainText(data string) string {
	data = strings.TrimSpace(data)
	if data == "" || !strings.Contains(data, "<") {
		return data
	}

	article, err := readability.FromReader(strings.NewReader(data), nil)
	if err != nil {
		slog.Debug("Text extraction failed, keeping markup", "error", err)
		return data
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if text == "" {
		return data
	}

	return text
}

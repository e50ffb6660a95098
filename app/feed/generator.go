package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"time"

	"github.com/lysyi3m/chat-comb/app/cfg"
	"github.com/lysyi3m/chat-comb/app/database"
)

const maxTitleRunes = 80

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders archived messages of one target as an RSS 2.0 channel.
func (g *Generator) Run(source *Source, targetID int, messages []database.Message) (string, error) {
	if source == nil {
		return "", fmt.Errorf("source is nil")
	}

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", fmt.Sprintf("%s #%d", source.Name, targetID), 4)
	g.writeElement(&buf, "link", source.URL, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Messages collected from %s", source.URL), 4)

	var selfLink string
	if cfg.Get().BaseUrl != "" {
		selfLink = fmt.Sprintf("%s/feed", cfg.Get().BaseUrl)
	} else {
		selfLink = fmt.Sprintf("http://localhost:%s/feed", cfg.Get().Port)
	}
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := time.Now().In(time.Local)
	if len(messages) > 0 {
		lastBuildDate = cmp.Or(messages[0].SentAt, messages[0].CreatedAt, lastBuildDate)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Chat-Comb/%s", cfg.Get().Version), 4)

	for _, message := range messages {
		g.writeItem(&buf, message)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, message database.Message) {
	buf.WriteString("    <item>\n")

	if message.Identity != "" {
		buf.WriteString("      <guid isPermaLink=\"false\">")
		xml.EscapeText(buf, []byte(message.Identity))
		buf.WriteString("</guid>\n")
	}

	g.writeElement(buf, "title", g.title(message), 6)
	g.writeElement(buf, "description", cmp.Or(message.Text, "No text available"), 6)
	g.writeElement(buf, "pubDate", message.SentAt.In(time.Local).Format(time.RFC1123Z), 6)

	if message.Name != "" {
		g.writeElement(buf, "author", message.Name, 6)
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) title(message database.Message) string {
	text := []rune(message.Text)
	if len(text) > maxTitleRunes {
		text = append(text[:maxTitleRunes], '…')
	}
	if message.Name == "" {
		return string(text)
	}
	return fmt.Sprintf("%s: %s", message.Name, string(text))
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// PayloadParser turns one fetched payload into candidate messages.
type PayloadParser interface {
	Parse(payload []byte) ([]Candidate, error)
}

var (
	_ PayloadParser = (*ChatParser)(nil)
	_ PayloadParser = (*FeedParser)(nil)
)

func NewPayloadParser(format string) (PayloadParser, error) {
	switch cmp.Or(format, FormatChat) {
	case FormatChat:
		return NewChatParser(), nil
	case FormatFeed:
		return NewFeedParser(), nil
	default:
		return nil, fmt.Errorf("unsupported payload format: %s", format)
	}
}

// FeedParser reads RSS/Atom payloads. Each item becomes a candidate named
// after its first author.
type FeedParser struct {
	gofeedParser *gofeed.Parser
}

func NewFeedParser() *FeedParser {
	return &FeedParser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *FeedParser) Parse(payload []byte) ([]Candidate, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	candidates := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		candidates = append(candidates, Candidate{
			Name:      p.extractName(feed, item),
			Text:      p.extractText(item),
			Timestamp: cmp.Or(strings.TrimSpace(item.Published), strings.TrimSpace(item.Updated)),
		})
	}

	return candidates, nil
}

func (p *FeedParser) extractName(feed *gofeed.Feed, item *gofeed.Item) string {
	for _, author := range item.Authors {
		if author == nil {
			continue
		}
		if name := cmp.Or(strings.TrimSpace(author.Name), strings.TrimSpace(author.Email)); name != "" {
			return name
		}
	}
	if item.Author != nil {
		if name := cmp.Or(strings.TrimSpace(item.Author.Name), strings.TrimSpace(item.Author.Email)); name != "" {
			return name
		}
	}
	return strings.TrimSpace(feed.Title)
}

func (p *FeedParser) extractText(item *gofeed.Item) string {
	if title := strings.TrimSpace(item.Title); title != "" {
		return title
	}
	return PlainText(cmp.Or(item.Description, item.Content))
}

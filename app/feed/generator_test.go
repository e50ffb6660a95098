package feed

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/chat-comb/app/cfg"
	"github.com/lysyi3m/chat-comb/app/database"
)

func setupTestConfig() {
	// Clear os.Args to prevent config parsing from failing
	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()

	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}

	cfg.Load()
}

func TestGenerateRSS(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator()

	source := &Source{Name: "live", URL: "https://api.example.com/history"}
	sentAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	messages := []database.Message{
		{
			ID:       1,
			TargetID: 42,
			Identity: "00000000000000ff",
			Name:     "A",
			Text:     "hi & welcome",
			SentAt:   sentAt,
		},
		{
			ID:       2,
			TargetID: 42,
			Identity: "0000000000000100",
			Text:     strings.Repeat("x", 100),
			SentAt:   sentAt.Add(time.Minute),
		},
	}

	rss, err := generator.Run(source, 42, messages)
	if err != nil {
		t.Fatal(err)
	}

	expectedElements := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<rss version="2.0"`,
		"<title>live #42</title>",
		"<link>https://api.example.com/history</link>",
		`<guid isPermaLink="false">00000000000000ff</guid>`,
		"<title>A: hi &amp; welcome</title>",
		"<description>hi &amp; welcome</description>",
		"<author>A</author>",
		"<pubDate>" + sentAt.In(time.Local).Format(time.RFC1123Z) + "</pubDate>",
		"<generator>Chat-Comb/",
		"…</title>",
	}

	for _, element := range expectedElements {
		if !strings.Contains(rss, element) {
			t.Errorf("Expected RSS to contain: %s", element)
		}
	}

	if strings.Count(rss, "<item>") != 2 {
		t.Errorf("Expected 2 items, got %d", strings.Count(rss, "<item>"))
	}
}

func TestGenerateRSSEmpty(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator()

	rss, err := generator.Run(&Source{Name: "live", URL: "https://example.com"}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(rss, "<item>") {
		t.Error("Expected no items")
	}
	if !strings.Contains(rss, "<lastBuildDate>") {
		t.Error("Expected lastBuildDate")
	}
}

func TestGenerateRSSNilSource(t *testing.T) {
	generator := NewGenerator()
	if _, err := generator.Run(nil, 1, nil); err == nil {
		t.Error("Expected error for nil source")
	}
}

func TestGenerateRSSUsesLocalZone(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator()

	oldLocal := time.Local
	time.Local = time.FixedZone("UTC+8", 8*60*60)
	defer func() { time.Local = oldLocal }()

	messages := []database.Message{
		{ID: 1, TargetID: 42, Identity: "01", Name: "A", Text: "hi", SentAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	rss, err := generator.Run(&Source{Name: "live", URL: "https://api.example.com/history"}, 42, messages)
	if err != nil {
		t.Fatal(err)
	}

	expected := "<pubDate>Mon, 01 Jan 2024 08:00:00 +0800</pubDate>"
	if !strings.Contains(rss, expected) {
		t.Errorf("Expected RSS to contain %s, got:\n%s", expected, rss)
	}
}

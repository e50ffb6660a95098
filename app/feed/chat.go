package feed

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type chatEntry struct {
	Text     string `json:"text"`
	Nickname string `json:"nickname"`
	Timeline string `json:"timeline"`
}

type chatPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Admin []chatEntry `json:"admin"`
		Room  []chatEntry `json:"room"`
	} `json:"data"`
}

// ChatParser reads the chat history payload:
//
//	{"code":0,"data":{"admin":[...],"room":[...]}}
//
// Admin messages are emitted before room messages. A payload with a non-zero
// code yields no candidates.
type ChatParser struct{}

func NewChatParser() *ChatParser {
	return &ChatParser{}
}

func (p *ChatParser) Parse(payload []byte) ([]Candidate, error) {
	var decoded chatPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode chat payload: %w", err)
	}

	// A non-zero code (rate limited, not logged in) still counts as a
	// parsed pass with no messages.
	if decoded.Code != 0 {
		return []Candidate{}, nil
	}

	candidates := make([]Candidate, 0, len(decoded.Data.Admin)+len(decoded.Data.Room))
	for _, box := range [][]chatEntry{decoded.Data.Admin, decoded.Data.Room} {
		for _, entry := range box {
			candidates = append(candidates, Candidate{
				Name:      entry.Nickname,
				Text:      entry.Text,
				Timestamp: entry.Timeline,
			})
		}
	}

	return candidates, nil
}

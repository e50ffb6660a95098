package feed

import (
	"fmt"
	"strconv"
	"time"
)

// Identity is the dedup key derived from a message's name and raw timestamp.
// Distinct messages may collide.
type Identity uint64

func (id Identity) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identity) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 16, 64)
	if err != nil {
		return fmt.Errorf("invalid identity %q: %w", string(text), err)
	}
	*id = Identity(v)
	return nil
}

// Candidate is one entry extracted from a payload, before dedup and
// timestamp validation.
type Candidate struct {
	Name      string
	Text      string
	Timestamp string // raw, as sent by the source
}

type Record struct {
	Text      string    `json:"text"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Identity  Identity  `json:"identity"`
}

// Source configuration

type Source struct {
	Name    string            // Derived from filename (without .yml extension)
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Format  string            `yaml:"format"`
	Params  map[string]string `yaml:"params"`
	Headers map[string]string `yaml:"headers"`
	Timeout int               `yaml:"timeout"` // seconds
	Filters []SourceFilter    `yaml:"filters"`
}

type SourceFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

const (
	FormatChat = "chat"
	FormatFeed = "feed"
)

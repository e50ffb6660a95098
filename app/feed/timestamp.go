package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseTimestamp interprets raw as an absolute point in time. Values without
// a zone are read in time.Local.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}

	t, err := dateparse.ParseLocal(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", raw, err)
	}

	return t, nil
}

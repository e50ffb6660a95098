package pipeline

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/chat-comb/app/feed"
)

// Fetcher performs one external fetch. Latency, timeouts and retries are the
// fetcher's business.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) ([]byte, error)
}

// Parser turns a successful payload into candidate messages.
type Parser interface {
	Parse(payload []byte) ([]feed.Candidate, error)
}

var _ Parser = (feed.PayloadParser)(nil)

// FetchRequest describes one fetch. It is never mutated after creation.
type FetchRequest struct {
	ID        string
	TargetID  int
	Params    map[string]string
	CreatedAt time.Time
}

func NewFetchRequest(targetID int, params map[string]string) FetchRequest {
	return FetchRequest{
		ID:        uuid.NewString(),
		TargetID:  targetID,
		Params:    maps.Clone(params),
		CreatedAt: time.Now(),
	}
}

// RawResponse is the outcome of one fetch: a payload or an error.
type RawResponse struct {
	Request   FetchRequest
	Payload   []byte
	Err       error
	FetchedAt time.Time
}

type Config struct {
	FetchInterval   time.Duration // fetch stage idle sleep
	ParseInterval   time.Duration // parse stage idle sleep
	PendingCapacity int
	ResultCapacity  int
	StopTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		FetchInterval:   500 * time.Millisecond,
		ParseInterval:   500 * time.Millisecond,
		PendingCapacity: 128,
		ResultCapacity:  256,
		StopTimeout:     5 * time.Second,
	}
}

type Stats struct {
	Running          bool   `json:"running"`
	TargetID         int    `json:"target_id"`
	PendingRequests  int    `json:"pending_requests"`
	PendingResponses int    `json:"pending_responses"`
	SinkSize         int    `json:"sink_size"`
	SinkCapacity     int    `json:"sink_capacity"`
	SinkFull         bool   `json:"sink_full"`
	Evicted          uint64 `json:"evicted"`
}

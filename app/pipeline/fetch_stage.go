package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/chat-comb/app/queue"
)

type fetchStage struct {
	fetcher   Fetcher
	observer  Observer
	requests  *queue.Mailbox[FetchRequest]
	responses *queue.Mailbox[RawResponse]
	interval  time.Duration
}

func (s *fetchStage) run(ctx context.Context) {
	for ctx.Err() == nil {
		batch := s.requests.DrainAll()
		if len(batch) == 0 {
			if !sleep(ctx, s.interval) {
				return
			}
			continue
		}

		s.responses.PushAll(s.fetchBatch(ctx, batch))
	}
}

// fetchBatch performs the fetches one at a time, in submission order. Every
// request yields exactly one response, successful or not. Requests left when
// ctx is cancelled are dropped.
func (s *fetchStage) fetchBatch(ctx context.Context, batch []FetchRequest) []RawResponse {
	responses := make([]RawResponse, 0, len(batch))

	for _, req := range batch {
		if ctx.Err() != nil {
			break
		}

		payload, err := s.fetch(ctx, req)
		s.observer.FetchDone(err)

		responses = append(responses, RawResponse{
			Request:   req,
			Payload:   payload,
			Err:       err,
			FetchedAt: time.Now(),
		})
	}

	return responses
}

func (s *fetchStage) fetch(ctx context.Context, req FetchRequest) (payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, err = nil, fmt.Errorf("fetcher panicked: %v", r)
		}
	}()

	return s.fetcher.Fetch(ctx, req)
}

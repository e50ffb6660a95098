package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/chat-comb/app/dedup"
	"github.com/lysyi3m/chat-comb/app/feed"
	"github.com/lysyi3m/chat-comb/app/queue"
)

type parseStage struct {
	parser    Parser
	observer  Observer
	responses *queue.Mailbox[RawResponse]
	sink      *queue.BoundedDropQueue[feed.Record]
	window    *dedup.Window
	interval  time.Duration
}

func (s *parseStage) run(ctx context.Context) {
	for ctx.Err() == nil {
		batch := s.responses.DrainAll()
		if len(batch) == 0 {
			if !sleep(ctx, s.interval) {
				return
			}
			continue
		}

		s.publish(s.processBatch(batch))
	}
}

func (s *parseStage) processBatch(batch []RawResponse) []feed.Record {
	var records []feed.Record
	for _, resp := range batch {
		records = s.processResponse(resp, records)
	}
	return records
}

// processResponse appends the new records of one response to records.
// Failed fetches and unparseable payloads are skipped without touching the
// dedup window; every parsed response, even an empty one, rotates it.
func (s *parseStage) processResponse(resp RawResponse, records []feed.Record) []feed.Record {
	if resp.Err != nil {
		s.observer.ResponseParsed(OutcomeTransportFailure, 0)
		return records
	}

	candidates, err := s.parse(resp.Payload)
	if err != nil {
		s.observer.ResponseParsed(OutcomeParseFailure, 0)
		return records
	}
	s.observer.ResponseParsed(OutcomeParsed, len(candidates))

	for _, c := range candidates {
		id := feed.NewIdentity(c.Name, c.Timestamp)
		if s.window.Observe(id) {
			s.observer.CandidateRejected(RejectDuplicate)
			continue
		}

		ts, err := feed.ParseTimestamp(c.Timestamp)
		if err != nil {
			s.observer.CandidateRejected(RejectTimestamp)
			continue
		}

		records = append(records, feed.Record{
			Text:      c.Text,
			Name:      c.Name,
			Timestamp: ts,
			Identity:  id,
		})
	}

	s.window.Rotate()
	return records
}

func (s *parseStage) parse(payload []byte) (candidates []feed.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			candidates, err = nil, fmt.Errorf("parser panicked: %v", r)
		}
	}()

	return s.parser.Parse(payload)
}

func (s *parseStage) publish(records []feed.Record) {
	if len(records) == 0 {
		return
	}
	evicted := s.sink.PushAll(records)
	s.observer.RecordsPublished(len(records), evicted)
}

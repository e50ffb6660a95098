package publish

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/lysyi3m/chat-comb/app/feed"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher fans drained records out to a downstream system.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, targetID int, records []feed.Record) error
	Close() error
}

// Envelope is the wire form of a published record.
type Envelope struct {
	TargetID int `json:"target_id"`
	feed.Record
}

func encode(targetID int, record feed.Record) ([]byte, error) {
	data, err := json.Marshal(Envelope{TargetID: targetID, Record: record})
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", record.Identity, err)
	}
	return data, nil
}

// Multi publishes to every publisher in order and joins their errors. A
// failing publisher does not stop the others.
type Multi []Publisher

func (m Multi) Name() string {
	return "multi"
}

func (m Multi) Publish(ctx context.Context, targetID int, records []feed.Record) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, targetID, records); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

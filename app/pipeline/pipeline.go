package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lysyi3m/chat-comb/app/dedup"
	"github.com/lysyi3m/chat-comb/app/feed"
	"github.com/lysyi3m/chat-comb/app/queue"
)

var ErrStopTimeout = errors.New("pipeline stages did not exit before stop timeout")

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Pipeline fetches, parses and deduplicates messages for one target in two
// background stages and leaves the results in a bounded sink for a consumer
// to drain. It is a long-lived object; Start and Stop may be called any
// number of times.
type Pipeline struct {
	fetcher  Fetcher
	parser   Parser
	observer Observer
	config   Config

	lifecycle sync.Mutex // serializes Start and Stop

	mu        sync.RWMutex
	state     state
	targetID  int
	requests  *queue.Mailbox[FetchRequest]
	responses *queue.Mailbox[RawResponse]
	sink      *queue.BoundedDropQueue[feed.Record]
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewPipeline(fetcher Fetcher, parser Parser, observer Observer, config Config) *Pipeline {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Pipeline{
		fetcher:  fetcher,
		parser:   parser,
		observer: observer,
		config:   config,
	}
}

// Start begins work for targetID with fresh queues and a fresh dedup
// window. A non-positive targetID is ignored. Starting a running pipeline
// stops it first.
func (p *Pipeline) Start(targetID int) {
	if targetID <= 0 {
		return
	}

	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	_ = p.stop()

	ctx, cancel := context.WithCancel(context.Background())
	requests := queue.NewMailbox[FetchRequest](p.config.PendingCapacity)
	responses := queue.NewMailbox[RawResponse](p.config.PendingCapacity)
	sink := queue.NewBoundedDropQueue[feed.Record](p.config.ResultCapacity)
	done := make(chan struct{})

	fetch := &fetchStage{
		fetcher:   p.fetcher,
		observer:  p.observer,
		requests:  requests,
		responses: responses,
		interval:  p.config.FetchInterval,
	}
	parse := &parseStage{
		parser:    p.parser,
		observer:  p.observer,
		responses: responses,
		sink:      sink,
		window:    dedup.NewWindow(),
		interval:  p.config.ParseInterval,
	}

	p.mu.Lock()
	p.state = stateRunning
	p.targetID = targetID
	p.requests = requests
	p.responses = responses
	p.sink = sink
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		fetch.run(ctx)
	}()
	go func() {
		defer wg.Done()
		parse.run(ctx)
	}()
	go func() {
		wg.Wait()
		close(done)
	}()
}

// Stop signals both stages, waits for them up to the configured stop
// timeout and releases the queues. Pending requests, responses and
// undrained records are discarded. Returns ErrStopTimeout when a stage was
// still busy, typically inside a slow fetch.
func (p *Pipeline) Stop() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	return p.stop()
}

func (p *Pipeline) stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.state = stateStopped
	p.targetID = 0
	p.requests = nil
	p.responses = nil
	p.sink = nil
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	timer := time.NewTimer(p.config.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// SubmitFetch queues a fetch for the current target. It is a no-op unless
// the pipeline is running.
func (p *Pipeline) SubmitFetch(params map[string]string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state != stateRunning {
		return
	}
	p.requests.Push(NewFetchRequest(p.targetID, params))
}

// Enqueue puts an already-built record straight into the sink, bypassing
// fetch, parse and dedup. Before the first Start the sink is created on
// demand; after Stop the call is a no-op.
func (p *Pipeline) Enqueue(record feed.Record) {
	sink := p.resultSink(true)
	if sink == nil {
		return
	}
	evicted := sink.PushAll([]feed.Record{record})
	p.observer.RecordsInjected(1, evicted)
}

// DrainAll removes and returns every record in the sink, oldest first. The
// result is never nil.
func (p *Pipeline) DrainAll() []feed.Record {
	sink := p.resultSink(false)
	if sink == nil {
		return []feed.Record{}
	}
	return sink.DrainAll()
}

func (p *Pipeline) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == stateRunning
}

func (p *Pipeline) TargetID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.targetID
}

func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{
		Running:      p.state == stateRunning,
		TargetID:     p.targetID,
		SinkCapacity: p.config.ResultCapacity,
	}
	if p.requests != nil {
		stats.PendingRequests = p.requests.Len()
	}
	if p.responses != nil {
		stats.PendingResponses = p.responses.Len()
	}
	if p.sink != nil {
		stats.SinkSize = p.sink.Size()
		stats.SinkCapacity = p.sink.Capacity()
		stats.SinkFull = p.sink.IsFull()
		stats.Evicted = p.sink.Dropped()
	}
	return stats
}

func (p *Pipeline) resultSink(create bool) *queue.BoundedDropQueue[feed.Record] {
	p.mu.RLock()
	sink, st := p.sink, p.state
	p.mu.RUnlock()

	if sink != nil || !create || st != stateIdle {
		return sink
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sink == nil && p.state == stateIdle {
		p.sink = queue.NewBoundedDropQueue[feed.Record](p.config.ResultCapacity)
	}
	return p.sink
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

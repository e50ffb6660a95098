package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/chat-comb/app/dedup"
	"github.com/lysyi3m/chat-comb/app/feed"
	"github.com/lysyi3m/chat-comb/app/queue"
)

type stubParser struct {
	payloads map[string][]feed.Candidate
}

func (p *stubParser) Parse(payload []byte) ([]feed.Candidate, error) {
	candidates, ok := p.payloads[string(payload)]
	if !ok {
		return nil, errors.New("malformed payload")
	}
	return candidates, nil
}

type stubFetcher struct {
	mu       sync.Mutex
	payload  []byte
	err      error
	requests []FetchRequest
}

func (f *stubFetcher) Fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.payload, f.err
}

func (f *stubFetcher) calls() []FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FetchRequest(nil), f.requests...)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[ResponseOutcome]int
	rejected map[RejectReason]int
	emitted  int
	injected int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		outcomes: make(map[ResponseOutcome]int),
		rejected: make(map[RejectReason]int),
	}
}

func (o *recordingObserver) FetchDone(error) {}

func (o *recordingObserver) ResponseParsed(outcome ResponseOutcome, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func (o *recordingObserver) CandidateRejected(reason RejectReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected[reason]++
}

func (o *recordingObserver) RecordsPublished(count, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emitted += count
}

func (o *recordingObserver) RecordsInjected(count, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.injected += count
}

var (
	entryA = feed.Candidate{Name: "A", Text: "hi", Timestamp: "2024-01-01T00:00:00Z"}
	entryB = feed.Candidate{Name: "B", Text: "yo", Timestamp: "not-a-date"}
	entryC = feed.Candidate{Name: "C", Text: "hey", Timestamp: "2024-01-01T00:00:05Z"}
)

func newTestStage(parser Parser, observer Observer) *parseStage {
	return &parseStage{
		parser:    parser,
		observer:  observer,
		responses: queue.NewMailbox[RawResponse](0),
		sink:      queue.NewBoundedDropQueue[feed.Record](16),
		window:    dedup.NewWindow(),
		interval:  time.Millisecond,
	}
}

func ok(payload string) RawResponse {
	return RawResponse{Payload: []byte(payload)}
}

func names(records []feed.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func equalNames(got []feed.Record, want ...string) bool {
	n := names(got)
	if len(n) != len(want) {
		return false
	}
	for i := range n {
		if n[i] != want[i] {
			return false
		}
	}
	return true
}

func TestProcessBatchDedupWindow(t *testing.T) {
	x := feed.Candidate{Name: "X", Text: "x", Timestamp: "2024-01-01T00:00:00Z"}
	y := feed.Candidate{Name: "Y", Text: "y", Timestamp: "2024-01-01T00:00:01Z"}
	parser := &stubParser{payloads: map[string][]feed.Candidate{
		"x": {x},
		"y": {y},
	}}
	stage := newTestStage(parser, noopObserver{})

	if got := stage.processBatch([]RawResponse{ok("x")}); !equalNames(got, "X") {
		t.Fatalf("Expected X on first pass, got %v", names(got))
	}
	if got := stage.processBatch([]RawResponse{ok("x")}); len(got) != 0 {
		t.Errorf("Expected X suppressed on the next pass, got %v", names(got))
	}
	// One pass without X is enough to forget it
	stage.processBatch([]RawResponse{ok("y")})
	if got := stage.processBatch([]RawResponse{ok("x")}); !equalNames(got, "X") {
		t.Errorf("Expected X admitted again after a pass without it, got %v", names(got))
	}
}

func TestProcessBatchRotatesPerResponse(t *testing.T) {
	parser := &stubParser{payloads: map[string][]feed.Candidate{
		"a": {entryA},
		"c": {entryC},
	}}
	stage := newTestStage(parser, noopObserver{})

	got := stage.processBatch([]RawResponse{ok("a"), ok("a"), ok("c"), ok("a")})
	if !equalNames(got, "A", "C", "A") {
		t.Errorf("Expected [A C A], got %v", names(got))
	}
}

func TestProcessBatchPartialResilience(t *testing.T) {
	parser := &stubParser{payloads: map[string][]feed.Candidate{
		"a": {entryA},
		"c": {entryC},
	}}
	observer := newRecordingObserver()
	stage := newTestStage(parser, observer)

	got := stage.processBatch([]RawResponse{ok("a"), ok("garbage"), ok("c")})
	if !equalNames(got, "A", "C") {
		t.Errorf("Expected [A C], got %v", names(got))
	}
	if observer.outcomes[OutcomeParseFailure] != 1 {
		t.Errorf("Expected 1 parse failure, got %d", observer.outcomes[OutcomeParseFailure])
	}
	if observer.outcomes[OutcomeParsed] != 2 {
		t.Errorf("Expected 2 parsed responses, got %d", observer.outcomes[OutcomeParsed])
	}
}

func TestProcessBatchSkipsTransportFailures(t *testing.T) {
	parser := &stubParser{payloads: map[string][]feed.Candidate{"a": {entryA}}}
	observer := newRecordingObserver()
	stage := newTestStage(parser, observer)

	stage.processBatch([]RawResponse{ok("a")})

	// A failed fetch must not rotate the window, so A stays suppressed
	got := stage.processBatch([]RawResponse{{Err: errors.New("timeout")}, ok("a")})
	if len(got) != 0 {
		t.Errorf("Expected A suppressed, got %v", names(got))
	}
	if observer.outcomes[OutcomeTransportFailure] != 1 {
		t.Errorf("Expected 1 transport failure, got %d", observer.outcomes[OutcomeTransportFailure])
	}
}

func TestProcessBatchErrorCodeStillRotates(t *testing.T) {
	stage := newTestStage(feed.NewChatParser(), noopObserver{})

	withA := RawResponse{Payload: []byte(`{"code":0,"data":{"room":[{"text":"hi","nickname":"A","timeline":"2024-01-01 00:00:00"}]}}`)}
	limited := RawResponse{Payload: []byte(`{"code":-412,"data":{}}`)}

	var emitted []int
	for _, resp := range []RawResponse{withA, limited, limited, withA} {
		emitted = append(emitted, len(stage.processBatch([]RawResponse{resp})))
	}

	want := []int{1, 0, 0, 1}
	for i := range want {
		if emitted[i] != want[i] {
			t.Errorf("Expected emitted counts %v, got %v", want, emitted)
			break
		}
	}
}

func TestProcessBatchTimestampRejection(t *testing.T) {
	parser := &stubParser{payloads: map[string][]feed.Candidate{"ab": {entryA, entryB}}}
	observer := newRecordingObserver()
	stage := newTestStage(parser, observer)

	for pass := 0; pass < 3; pass++ {
		for _, r := range stage.processBatch([]RawResponse{ok("ab")}) {
			if r.Name == "B" {
				t.Fatalf("Expected B never to be emitted, got it on pass %d", pass)
			}
		}
	}
	if observer.rejected[RejectTimestamp] == 0 {
		t.Error("Expected bad timestamp rejections to be reported")
	}
}

func TestProcessBatchResubmission(t *testing.T) {
	validB := feed.Candidate{Name: "B", Text: "yo", Timestamp: "2024-01-01T00:00:03Z"}
	parser := &stubParser{payloads: map[string][]feed.Candidate{
		"first":  {entryA, entryB},
		"second": {entryA, validB},
	}}
	stage := newTestStage(parser, noopObserver{})

	got := stage.processBatch([]RawResponse{ok("first")})
	if !equalNames(got, "A") {
		t.Fatalf("Expected [A] on first pass, got %v", names(got))
	}

	got = stage.processBatch([]RawResponse{ok("second")})
	if !equalNames(got, "B") {
		t.Errorf("Expected only the new B on second pass, got %v", names(got))
	}
}

func TestProcessBatchBuildsRecords(t *testing.T) {
	parser := &stubParser{payloads: map[string][]feed.Candidate{"a": {entryA}}}
	stage := newTestStage(parser, noopObserver{})

	got := stage.processBatch([]RawResponse{ok("a")})
	if len(got) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(got))
	}

	record := got[0]
	if record.Text != "hi" {
		t.Errorf("Expected text 'hi', got '%s'", record.Text)
	}
	if !record.Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected 2024-01-01T00:00:00Z, got %v", record.Timestamp)
	}
	if record.Identity != feed.NewIdentity("A", "2024-01-01T00:00:00Z") {
		t.Errorf("Expected identity derived from name and raw timestamp, got %s", record.Identity)
	}
}

func TestParsePanicIsAbsorbed(t *testing.T) {
	stage := newTestStage(panicParser{}, noopObserver{})

	if got := stage.processBatch([]RawResponse{ok("a")}); len(got) != 0 {
		t.Errorf("Expected no records, got %v", names(got))
	}
}

type panicParser struct{}

func (panicParser) Parse([]byte) ([]feed.Candidate, error) {
	panic("boom")
}

func testConfig() Config {
	return Config{
		FetchInterval:   5 * time.Millisecond,
		ParseInterval:   5 * time.Millisecond,
		PendingCapacity: 4,
		ResultCapacity:  8,
		StopTimeout:     time.Second,
	}
}

func drainUntil(t *testing.T, p *Pipeline, want int) []feed.Record {
	t.Helper()

	var records []feed.Record
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		records = append(records, p.DrainAll()...)
		if len(records) >= want {
			return records
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d records before deadline, got %d", want, len(records))
	return nil
}

func TestPipelineEndToEnd(t *testing.T) {
	fetcher := &stubFetcher{payload: []byte("ab")}
	parser := &stubParser{payloads: map[string][]feed.Candidate{"ab": {entryA, entryB}}}
	p := NewPipeline(fetcher, parser, nil, testConfig())

	p.Start(42)
	defer p.Stop()

	p.SubmitFetch(map[string]string{"page": "1"})

	records := drainUntil(t, p, 1)
	if len(records) != 1 {
		t.Fatalf("Expected exactly 1 record, got %d", len(records))
	}
	if records[0].Name != "A" || records[0].Text != "hi" {
		t.Errorf("Expected A/hi, got %s/%s", records[0].Name, records[0].Text)
	}

	calls := fetcher.calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 fetch, got %d", len(calls))
	}
	if calls[0].TargetID != 42 {
		t.Errorf("Expected target id 42, got %d", calls[0].TargetID)
	}
	if calls[0].Params["page"] != "1" {
		t.Errorf("Expected page param to reach the fetcher, got %v", calls[0].Params)
	}
}

func TestPipelineStartIgnoresInvalidTarget(t *testing.T) {
	p := NewPipeline(&stubFetcher{}, &stubParser{}, nil, testConfig())

	p.Start(0)
	p.Start(-3)

	if p.Running() {
		t.Error("Expected pipeline to stay idle for non-positive target")
	}
}

func TestPipelineRestartResetsState(t *testing.T) {
	fetcher := &stubFetcher{payload: []byte("a")}
	parser := &stubParser{payloads: map[string][]feed.Candidate{"a": {entryA}}}
	p := NewPipeline(fetcher, parser, nil, testConfig())

	p.Start(1)
	p.SubmitFetch(nil)
	drainUntil(t, p, 1)

	p.Start(2)
	defer p.Stop()

	if p.TargetID() != 2 {
		t.Errorf("Expected target id 2 after restart, got %d", p.TargetID())
	}

	// Fresh dedup window: A is admitted again
	p.SubmitFetch(nil)
	records := drainUntil(t, p, 1)
	if records[0].Name != "A" {
		t.Errorf("Expected A after restart, got %s", records[0].Name)
	}
}

func TestPipelineStopDiscardsAndDisables(t *testing.T) {
	p := NewPipeline(&stubFetcher{}, &stubParser{}, nil, testConfig())

	p.Start(7)
	p.Enqueue(feed.Record{Name: "injected"})

	if err := p.Stop(); err != nil {
		t.Fatalf("Expected clean stop, got %v", err)
	}
	if p.Running() {
		t.Error("Expected pipeline not running after stop")
	}

	p.Enqueue(feed.Record{Name: "late"})
	p.SubmitFetch(nil)

	drained := p.DrainAll()
	if drained == nil || len(drained) != 0 {
		t.Errorf("Expected empty non-nil drain after stop, got %v", drained)
	}

	if err := p.Stop(); err != nil {
		t.Errorf("Expected second stop to be a no-op, got %v", err)
	}
}

func TestPipelineStopTimeout(t *testing.T) {
	release := make(chan struct{})
	fetcher := blockingFetcher{release: release}
	config := testConfig()
	config.StopTimeout = 20 * time.Millisecond

	p := NewPipeline(fetcher, &stubParser{}, nil, config)
	p.Start(1)
	p.SubmitFetch(nil)
	time.Sleep(50 * time.Millisecond)

	if err := p.Stop(); !errors.Is(err, ErrStopTimeout) {
		t.Errorf("Expected ErrStopTimeout, got %v", err)
	}
	close(release)
}

type blockingFetcher struct {
	release chan struct{}
}

func (f blockingFetcher) Fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	<-f.release
	return nil, errors.New("released")
}

func TestPipelineEnqueueBeforeStart(t *testing.T) {
	p := NewPipeline(&stubFetcher{}, &stubParser{}, nil, testConfig())

	p.Enqueue(feed.Record{Name: "first"})
	p.Enqueue(feed.Record{Name: "second"})

	got := p.DrainAll()
	if !equalNames(got, "first", "second") {
		t.Errorf("Expected [first second], got %v", names(got))
	}

	again := p.DrainAll()
	if again == nil || len(again) != 0 {
		t.Errorf("Expected second drain to be empty and non-nil, got %v", again)
	}
}

func TestPipelineEnqueueReportsInjected(t *testing.T) {
	observer := newRecordingObserver()
	p := NewPipeline(&stubFetcher{}, &stubParser{}, observer, testConfig())

	p.Enqueue(feed.Record{Name: "first"})
	p.Enqueue(feed.Record{Name: "second"})

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if observer.injected != 2 {
		t.Errorf("Expected 2 injected records, got %d", observer.injected)
	}
	if observer.emitted != 0 {
		t.Errorf("Expected injected records not to count as emitted, got %d", observer.emitted)
	}
}

func TestPipelineEnqueueEvictsOldest(t *testing.T) {
	config := testConfig()
	config.ResultCapacity = 2
	p := NewPipeline(&stubFetcher{}, &stubParser{}, nil, config)

	p.Enqueue(feed.Record{Name: "1"})
	p.Enqueue(feed.Record{Name: "2"})
	p.Enqueue(feed.Record{Name: "3"})

	stats := p.Stats()
	if !stats.SinkFull {
		t.Error("Expected sink to report full")
	}
	if stats.Evicted != 1 {
		t.Errorf("Expected 1 eviction, got %d", stats.Evicted)
	}

	if got := p.DrainAll(); !equalNames(got, "2", "3") {
		t.Errorf("Expected [2 3], got %v", names(got))
	}
}

func TestNewFetchRequestCopiesParams(t *testing.T) {
	params := map[string]string{"page": "1"}
	req := NewFetchRequest(5, params)
	params["page"] = "2"

	if req.Params["page"] != "1" {
		t.Errorf("Expected request params to be isolated from caller, got %s", req.Params["page"])
	}
	if req.ID == "" {
		t.Error("Expected request id to be set")
	}
}

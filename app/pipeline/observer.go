package pipeline

type ResponseOutcome string

const (
	OutcomeParsed           ResponseOutcome = "parsed"
	OutcomeTransportFailure ResponseOutcome = "transport_failure"
	OutcomeParseFailure     ResponseOutcome = "parse_failure"
)

type RejectReason string

const (
	RejectDuplicate RejectReason = "duplicate"
	RejectTimestamp RejectReason = "bad_timestamp"
)

// Observer receives per-item outcomes from the stages. The pipeline never
// logs or returns these failures; an Observer is the only way to see them.
// Implementations must be safe for concurrent use.
type Observer interface {
	FetchDone(err error)
	ResponseParsed(outcome ResponseOutcome, candidates int)
	CandidateRejected(reason RejectReason)
	RecordsPublished(count, evicted int)
	RecordsInjected(count, evicted int)
}

type noopObserver struct{}

func (noopObserver) FetchDone(error) {}
func (noopObserver) ResponseParsed(ResponseOutcome, int) {}
func (noopObserver) CandidateRejected(RejectReason) {}
func (noopObserver) RecordsPublished(int, int) {}
func (noopObserver) RecordsInjected(int, int) {}

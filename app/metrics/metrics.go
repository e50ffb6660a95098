package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lysyi3m/chat-comb/app/pipeline"
)

const namespace = "chat_comb"

var _ pipeline.Observer = (*Collector)(nil)

// Collector exposes pipeline and consumer activity as Prometheus metrics.
type Collector struct {
	fetches    *prometheus.CounterVec
	responses  *prometheus.CounterVec
	candidates *prometheus.CounterVec
	injected   prometheus.Counter
	evicted    prometheus.Counter
	drained    prometheus.Counter
	archived   prometheus.Counter
	published  *prometheus.CounterVec

	sinkSize         prometheus.Gauge
	sinkCapacity     prometheus.Gauge
	pendingRequests  prometheus.Gauge
	pendingResponses prometheus.Gauge
	running          prometheus.Gauge
}

// NewCollector builds the metric set and registers it with reg. A nil reg
// leaves the metrics unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Total fetches by result",
			},
			[]string{"result"},
		),
		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "responses_total",
				Help:      "Total raw responses by parse outcome",
			},
			[]string{"outcome"},
		),
		candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_total",
				Help:      "Total candidate messages by outcome",
			},
			[]string{"outcome"},
		),
		injected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_injected_total",
			Help:      "Records put into the result sink directly, bypassing fetch and parse",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_evicted_total",
			Help:      "Records evicted from the result sink before being drained",
		}),
		drained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_drained_total",
			Help:      "Records drained from the result sink",
		}),
		archived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_archived_total",
			Help:      "Records newly written to the archive",
		}),
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_published_total",
				Help:      "Records handed to downstream publishers",
			},
			[]string{"publisher", "result"},
		),
		sinkSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sink_size",
			Help:      "Records currently waiting in the result sink",
		}),
		sinkCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sink_capacity",
			Help:      "Capacity of the result sink",
		}),
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_requests",
			Help:      "Fetch requests waiting for the fetch stage",
		}),
		pendingResponses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_responses",
			Help:      "Raw responses waiting for the parse stage",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the pipeline is running",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.fetches, c.responses, c.candidates, c.injected, c.evicted, c.drained, c.archived, c.published,
			c.sinkSize, c.sinkCapacity, c.pendingRequests, c.pendingResponses, c.running,
		)
	}

	return c
}

func (c *Collector) FetchDone(err error) {
	if err != nil {
		c.fetches.WithLabelValues("error").Inc()
		return
	}
	c.fetches.WithLabelValues("ok").Inc()
}

func (c *Collector) ResponseParsed(outcome pipeline.ResponseOutcome, candidates int) {
	c.responses.WithLabelValues(string(outcome)).Inc()
}

func (c *Collector) CandidateRejected(reason pipeline.RejectReason) {
	c.candidates.WithLabelValues(string(reason)).Inc()
}

func (c *Collector) RecordsPublished(count, evicted int) {
	c.candidates.WithLabelValues("emitted").Add(float64(count))
	c.evicted.Add(float64(evicted))
}

func (c *Collector) RecordsInjected(count, evicted int) {
	c.injected.Add(float64(count))
	c.evicted.Add(float64(evicted))
}

func (c *Collector) RecordsDrained(count int) {
	c.drained.Add(float64(count))
}

func (c *Collector) RecordsArchived(count int) {
	c.archived.Add(float64(count))
}

func (c *Collector) PublishDone(publisher string, count int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.published.WithLabelValues(publisher, result).Add(float64(count))
}

// ObserveStats copies a pipeline snapshot into the gauges.
func (c *Collector) ObserveStats(stats pipeline.Stats) {
	c.sinkSize.Set(float64(stats.SinkSize))
	c.sinkCapacity.Set(float64(stats.SinkCapacity))
	c.pendingRequests.Set(float64(stats.PendingRequests))
	c.pendingResponses.Set(float64(stats.PendingResponses))
	if stats.Running {
		c.running.Set(1)
	} else {
		c.running.Set(0)
	}
}

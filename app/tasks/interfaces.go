package tasks

import (
	"github.com/lysyi3m/chat-comb/app/feed"
	"github.com/lysyi3m/chat-comb/app/pipeline"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to drive the pipeline in the background.
// Example usage:
//
//	scheduler := NewScheduler(pipeline, source, filterer, messageRepo, publisher, collector)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(scheduler.NewPollTask(nil))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// PipelineInterface is the part of the pipeline the tasks drive.
type PipelineInterface interface {
	SubmitFetch(params map[string]string)
	DrainAll() []feed.Record
	Stats() pipeline.Stats
	Running() bool
}

var _ PipelineInterface = (*pipeline.Pipeline)(nil)

// Recorder receives consumer-side counts. Satisfied by *metrics.Collector.
type Recorder interface {
	ObserveStats(stats pipeline.Stats)
	RecordsDrained(count int)
	RecordsArchived(count int)
	PublishDone(publisher string, count int, err error)
}

type noopRecorder struct{}

func (noopRecorder) ObserveStats(pipeline.Stats) {}
func (noopRecorder) RecordsDrained(int) {}
func (noopRecorder) RecordsArchived(int) {}
func (noopRecorder) PublishDone(string, int, error) {}

package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/chat-comb/app/database"
	"github.com/lysyi3m/chat-comb/app/feed"
	"github.com/lysyi3m/chat-comb/app/publish"
)

// DrainTask takes everything out of the result sink, archives it with the
// source filters applied and fans the visible records out. The sink is
// drained once per task; retries only redo the steps that failed.
type DrainTask struct {
	Task
	Source      *feed.Source
	pipeline    PipelineInterface
	filterer    *feed.Filterer
	messageRepo database.MessageRepository
	publisher   publish.Publisher
	recorder    Recorder

	drained   bool
	records   []feed.FilteredRecord
	archived  bool
	inserted  int
	published bool
}

func NewDrainTask(targetID int, source *feed.Source, p PipelineInterface, filterer *feed.Filterer,
	messageRepo database.MessageRepository, publisher publish.Publisher, recorder Recorder) *DrainTask {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &DrainTask{
		Task:        NewTask(TaskTypeDrain, targetID),
		Source:      source,
		pipeline:    p,
		filterer:    filterer,
		messageRepo: messageRepo,
		publisher:   publisher,
		recorder:    recorder,
	}
}

func (t *DrainTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.drained {
		t.drain()
	}

	if len(t.records) == 0 {
		return nil
	}

	if !t.archived {
		if err := t.archive(); err != nil {
			return fmt.Errorf("failed to archive messages: %w", err)
		}
	}

	if t.publisher != nil && !t.published {
		if err := t.publish(ctx); err != nil {
			return fmt.Errorf("failed to publish messages: %w", err)
		}
	}

	slog.Info("Task completed",
		"type", "Drain",
		"target", t.TargetID,
		"duration", t.GetDuration(),
		"drained", len(t.records),
		"new", t.inserted,
		"filtered", t.FilteredCount())

	return nil
}

func (t *DrainTask) drain() {
	stats := t.pipeline.Stats()
	t.recorder.ObserveStats(stats)

	if stats.SinkFull {
		slog.Warn("Result sink full at drain time, oldest records are being evicted",
			"target", t.TargetID,
			"capacity", stats.SinkCapacity,
			"evicted_total", stats.Evicted)
	}

	records := t.pipeline.DrainAll()
	t.records = t.filterer.Run(records, t.filters())
	t.drained = true
	t.recorder.RecordsDrained(len(records))
}

func (t *DrainTask) archive() error {
	if t.messageRepo == nil {
		t.archived = true
		return nil
	}

	messages := make([]database.Message, 0, len(t.records))
	for _, record := range t.records {
		messages = append(messages, database.Message{
			TargetID:     t.TargetID,
			Identity:     record.Identity.String(),
			Name:         record.Name,
			Text:         record.Text,
			SentAt:       record.Timestamp,
			IsFiltered:   record.IsFiltered,
			FilterReason: record.FilterReason,
		})
	}

	inserted, err := t.messageRepo.InsertMessages(t.TargetID, messages)
	if err != nil {
		return err
	}

	t.archived = true
	t.inserted = inserted
	t.recorder.RecordsArchived(inserted)

	return nil
}

func (t *DrainTask) publish(ctx context.Context) error {
	visible := t.VisibleRecords()
	if len(visible) == 0 {
		t.published = true
		return nil
	}

	err := t.publisher.Publish(ctx, t.TargetID, visible)
	t.recorder.PublishDone(t.publisher.Name(), len(visible), err)
	if err != nil {
		return err
	}

	t.published = true
	return nil
}

func (t *DrainTask) filters() []feed.SourceFilter {
	if t.Source == nil {
		return nil
	}
	return t.Source.Filters
}

// VisibleRecords returns the drained records that passed the source filters.
func (t *DrainTask) VisibleRecords() []feed.Record {
	visible := make([]feed.Record, 0, len(t.records))
	for _, record := range t.records {
		if !record.IsFiltered {
			visible = append(visible, record.Record)
		}
	}
	return visible
}

func (t *DrainTask) DrainedCount() int {
	return len(t.records)
}

func (t *DrainTask) InsertedCount() int {
	return t.inserted
}

func (t *DrainTask) FilteredCount() int {
	count := 0
	for _, record := range t.records {
		if record.IsFiltered {
			count++
		}
	}
	return count
}

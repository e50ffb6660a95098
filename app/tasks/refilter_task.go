package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/chat-comb/app/database"
	"github.com/lysyi3m/chat-comb/app/feed"
)

// RefilterTask re-applies the source filters to every archived message of a
// target, so edits to the source file also apply to history.
type RefilterTask struct {
	Task
	Source      *feed.Source
	filterer    *feed.Filterer
	messageRepo database.MessageRepository
}

func NewRefilterTask(targetID int, source *feed.Source, filterer *feed.Filterer, messageRepo database.MessageRepository) *RefilterTask {
	return &RefilterTask{
		Task:        NewTask(TaskTypeRefilter, targetID),
		Source:      source,
		filterer:    filterer,
		messageRepo: messageRepo,
	}
}

func (t *RefilterTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	messages, err := t.messageRepo.GetAllMessages(t.TargetID)
	if err != nil {
		return fmt.Errorf("failed to get archived messages: %w", err)
	}

	records := make([]feed.Record, len(messages))
	for i, message := range messages {
		records[i] = feed.Record{
			Name:      message.Name,
			Text:      message.Text,
			Timestamp: message.SentAt,
		}
	}

	filteredRecords := t.filterer.Run(records, t.Source.Filters)

	updatedCount := 0
	errorCount := 0

	for i, filteredRecord := range filteredRecords {
		original := messages[i]

		if original.IsFiltered != filteredRecord.IsFiltered || original.FilterReason != filteredRecord.FilterReason {
			err := t.messageRepo.UpdateMessageFilterStatus(original.ID, filteredRecord.IsFiltered, filteredRecord.FilterReason)
			if err != nil {
				slog.Error("Failed to update message filter status", "message_id", original.ID, "error", err)
				errorCount++
			} else {
				updatedCount++
			}
		}
	}

	slog.Info("Task completed",
		"type", "Refilter",
		"target", t.TargetID,
		"duration", t.GetDuration(),
		"success", updatedCount,
		"errors", errorCount)

	return nil
}

package tasks

import (
	"context"
	"log/slog"
)

// PollTask asks the pipeline for one more fetch of the current target.
type PollTask struct {
	Task
	Params   map[string]string
	pipeline PipelineInterface
}

func NewPollTask(targetID int, params map[string]string, p PipelineInterface) *PollTask {
	task := &PollTask{
		Task:     NewTask(TaskTypePoll, targetID),
		Params:   params,
		pipeline: p,
	}
	// a missed poll is replaced by the next tick
	task.MaxRetries = 0
	return task
}

func (t *PollTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.pipeline.Running() {
		slog.Debug("Pipeline not running, skipping poll", "target", t.TargetID)
		return nil
	}

	t.pipeline.SubmitFetch(t.Params)

	slog.Debug("Task completed", "type", "Poll", "target", t.TargetID, "duration", t.GetDuration())

	return nil
}

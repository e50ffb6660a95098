package api

import (
	"github.com/lysyi3m/chat-comb/app/database"
	"github.com/lysyi3m/chat-comb/app/feed"
	"github.com/lysyi3m/chat-comb/app/pipeline"
	"github.com/lysyi3m/chat-comb/app/tasks"
)

type GeneratorInterface interface {
	Run(source *feed.Source, targetID int, messages []database.Message) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type PipelineInterface interface {
	Enqueue(record feed.Record)
	Stats() pipeline.Stats
	Running() bool
}

var _ PipelineInterface = (*pipeline.Pipeline)(nil)

type SchedulerInterface interface {
	tasks.TaskSchedulerInterface
	NewPollTask(params map[string]string) *tasks.PollTask
	NewDrainTask() *tasks.DrainTask
	NewRefilterTask() *tasks.RefilterTask
}

var _ SchedulerInterface = (*tasks.Scheduler)(nil)

type Handler struct {
	targetID    int
	source      *feed.Source
	pipeline    PipelineInterface
	messageRepo database.MessageRepository
	generator   GeneratorInterface
	scheduler   SchedulerInterface
}

type fetchRequest struct {
	Params map[string]string `json:"params"`
}

type messageRequest struct {
	Name      string `json:"name" binding:"required"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp" binding:"required"`
}

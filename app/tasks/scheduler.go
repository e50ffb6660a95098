package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/chat-comb/app/cfg"
	"github.com/lysyi3m/chat-comb/app/database"
	"github.com/lysyi3m/chat-comb/app/feed"
	"github.com/lysyi3m/chat-comb/app/publish"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	pipeline      PipelineInterface
	source        *feed.Source
	filterer      *feed.Filterer
	messageRepo   database.MessageRepository
	publisher     publish.Publisher
	recorder      Recorder
	targetID      int
	pollInterval  time.Duration
	drainInterval time.Duration
	workerCount   int
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	taskQueue     chan TaskInterface
}

func NewScheduler(p PipelineInterface, source *feed.Source, filterer *feed.Filterer,
	messageRepo database.MessageRepository, publisher publish.Publisher, recorder Recorder) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Scheduler{
		pipeline:      p,
		source:        source,
		filterer:      filterer,
		messageRepo:   messageRepo,
		publisher:     publisher,
		recorder:      recorder,
		targetID:      cfg.TargetID,
		pollInterval:  cfg.PollInterval,
		drainInterval: cfg.DrainInterval,
		workerCount:   cfg.WorkerCount,
		ctx:           ctx,
		cancel:        cancel,
		taskQueue:     make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		pollTicker := time.NewTicker(s.pollInterval)
		defer pollTicker.Stop()
		drainTicker := time.NewTicker(s.drainInterval)
		defer drainTicker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-pollTicker.C:
				if err := s.EnqueueTask(s.NewPollTask(nil)); err != nil {
					slog.Warn("Failed to enqueue PollTask", "target", s.targetID, "error", err)
				}
			case <-drainTicker.C:
				if err := s.EnqueueTask(s.NewDrainTask()); err != nil {
					slog.Warn("Failed to enqueue DrainTask", "target", s.targetID, "error", err)
				}
			}
		}
	}()
}

// Stop cancels pending work and waits for the workers. The task queue stays
// open so that late retries fail with an error instead of a panic.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) NewPollTask(params map[string]string) *PollTask {
	return NewPollTask(s.targetID, params, s.pipeline)
}

func (s *Scheduler) NewDrainTask() *DrainTask {
	return NewDrainTask(s.targetID, s.source, s.pipeline, s.filterer, s.messageRepo, s.publisher, s.recorder)
}

func (s *Scheduler) NewRefilterTask() *RefilterTask {
	return NewRefilterTask(s.targetID, s.source, s.filterer, s.messageRepo)
}

func (s *Scheduler) enqueueStartupTasks() {
	if s.messageRepo != nil && s.source != nil {
		if err := s.EnqueueTask(s.NewRefilterTask()); err != nil {
			slog.Warn("Failed to enqueue RefilterTask", "target", s.targetID, "error", err)
		}
	}

	if err := s.EnqueueTask(s.NewPollTask(nil)); err != nil {
		slog.Warn("Failed to enqueue PollTask", "target", s.targetID, "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		return
	}

	task.IncrementRetryCount()
	delay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTargetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

// retryDelay doubles from one second and caps at thirty.
func retryDelay(retryCount int) time.Duration {
	delay := time.Duration(1<<uint(retryCount-1)) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

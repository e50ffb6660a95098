package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/chat-comb/app/database"
	"github.com/lysyi3m/chat-comb/app/feed"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 500
)

func NewHandler(targetID int, source *feed.Source, p PipelineInterface,
	messageRepo database.MessageRepository, scheduler SchedulerInterface) *Handler {
	return &Handler{
		targetID:    targetID,
		source:      source,
		pipeline:    p,
		messageRepo: messageRepo,
		generator:   feed.NewGenerator(),
		scheduler:   scheduler,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	limit, ok := h.limit(c)
	if !ok {
		c.Status(http.StatusBadRequest)
		return
	}

	messages, err := h.messageRepo.GetVisibleMessages(h.targetID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_messages", "target", h.targetID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(h.source, h.targetID, messages)
	if err != nil {
		slog.Error("RSS generation error", "target", h.targetID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(messages)))
	c.Header("X-Feed-Target", strconv.Itoa(h.targetID))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetMessages(c *gin.Context) {
	limit, ok := h.limit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}

	messages, err := h.messageRepo.GetVisibleMessages(h.targetID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_messages", "target", h.targetID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]gin.H, 0, len(messages))
	for _, message := range messages {
		items = append(items, gin.H{
			"identity":  message.Identity,
			"name":      message.Name,
			"text":      message.Text,
			"timestamp": message.SentAt.In(time.Local).Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"target_id": h.targetID,
		"messages":  items,
		"total":     len(items),
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"running":   h.pipeline.Running(),
		"target_id": h.targetID,
	}

	if count, err := h.messageRepo.GetMessageCount(h.targetID); err == nil {
		health["messages"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"pipeline": h.pipeline.Stats(),
		"source": gin.H{
			"name":    h.source.Name,
			"url":     h.source.URL,
			"format":  h.source.Format,
			"filters": len(h.source.Filters),
		},
	}

	if total, visible, filtered, err := h.messageRepo.GetMessageStats(h.targetID); err == nil {
		stats["messages"] = gin.H{
			"total":    total,
			"visible":  visible,
			"filtered": filtered,
		}
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APISubmitFetch(c *gin.Context) {
	var req fetchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	if !h.pipeline.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "Pipeline is not running"})
		return
	}

	pollTask := h.scheduler.NewPollTask(req.Params)
	if err := h.scheduler.EnqueueTask(pollTask); err != nil {
		slog.Error("Error enqueueing poll task", "target", h.targetID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue poll task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   pollTask.ID,
			"type": pollTask.Type,
		},
	})
}

func (h *Handler) APIEnqueueMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	timestamp, err := feed.ParseTimestamp(req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid timestamp", "details": err.Error()})
		return
	}

	record := feed.Record{
		Text:      req.Text,
		Name:      req.Name,
		Timestamp: timestamp,
		Identity:  feed.NewIdentity(req.Name, req.Timestamp),
	}
	h.pipeline.Enqueue(record)

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"record":  record,
	})
}

func (h *Handler) APIDrain(c *gin.Context) {
	drainTask := h.scheduler.NewDrainTask()
	drainTask.Start()

	if err := drainTask.Execute(c.Request.Context()); err != nil {
		slog.Error("Drain failed", "target", h.targetID, "error", err)

		// the records are already out of the sink; let the scheduler finish them
		if enqueueErr := h.scheduler.EnqueueTask(drainTask); enqueueErr != nil {
			slog.Error("Error enqueueing drain retry", "target", h.targetID, "error", enqueueErr)
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Drain failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"drained":  drainTask.DrainedCount(),
		"new":      drainTask.InsertedCount(),
		"filtered": drainTask.FilteredCount(),
		"records":  drainTask.VisibleRecords(),
	})
}

func (h *Handler) APIRefilter(c *gin.Context) {
	refilterTask := h.scheduler.NewRefilterTask()
	if err := h.scheduler.EnqueueTask(refilterTask); err != nil {
		slog.Error("Error enqueueing refilter task", "target", h.targetID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue refilter task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   refilterTask.ID,
			"type": refilterTask.Type,
		},
	})
}

func (h *Handler) limit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultMessageLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, false
	}
	return min(limit, maxMessageLimit), true
}

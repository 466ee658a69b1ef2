package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/farsisweep/internal/cache"
	"github.com/jon4hz/farsisweep/internal/database"
	"github.com/jon4hz/farsisweep/internal/scheduler"
	"github.com/jon4hz/farsisweep/internal/tracker"
)

type Handler struct {
	db        database.DB
	tracker   *tracker.Tracker
	links     *cache.CrawlCache
	scheduler *scheduler.Scheduler
}

func New(db database.DB, t *tracker.Tracker, links *cache.CrawlCache, sched *scheduler.Scheduler) *Handler {
	return &Handler{
		db:        db,
		tracker:   t,
		links:     links,
		scheduler: sched,
	}
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats returns the store, tracker and link cache statistics.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.db.GetStats(c.Request.Context())
	if err != nil {
		log.Error("failed to get stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"database": stats,
		"tracker":  h.tracker.Stats(),
		"cache":    h.links.GetStats(),
	})
}

// NewContent returns the pending new content without acknowledging it.
func (h *Handler) NewContent(c *gin.Context) {
	content, err := h.tracker.GetNewContent(c.Request.Context())
	if err != nil {
		log.Error("failed to get new content", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get new content"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": content.Summary(),
		"content": content,
	})
}

func (h *Handler) Snapshot(c *gin.Context) {
	snap, err := h.db.BuildSnapshot(c.Request.Context())
	if err != nil {
		log.Error("failed to build snapshot", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build snapshot"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) Jobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.scheduler.GetJobs()})
}

// RunJob triggers a job. The job runs in the background.
func (h *Handler) RunJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.scheduler.RunJobNow(id); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		log.Error("failed to run job", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to run job"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "triggered", "id": id})
}

func (h *Handler) EnableJob(c *gin.Context) {
	h.setJobEnabled(c, true)
}

func (h *Handler) DisableJob(c *gin.Context) {
	h.setJobEnabled(c, false)
}

func (h *Handler) setJobEnabled(c *gin.Context, enabled bool) {
	id := c.Param("id")
	set := h.scheduler.DisableJob
	if enabled {
		set = h.scheduler.EnableJob
	}
	if err := set(id); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		log.Error("failed to change job state", "id", id, "enabled", enabled, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to change job state"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": enabled})
}

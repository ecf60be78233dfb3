package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) GetProgress(c *gin.Context) {
	progress, found, err := h.progress.Get(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"progress": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": toProgress(progress)})
}

type setProgressRequest struct {
	Completed *bool `json:"completed"`
}

func (h HandlerSet) SetProgress(c *gin.Context) {
	var req setProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "body", "invalid JSON body")
		return
	}
	if req.Completed == nil {
		h.badRequest(c, "completed", "completed is required")
		return
	}
	progress, err := h.progress.SetCompleted(c.Request.Context(), actorOf(c), c.Param("id"), *req.Completed)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": toProgress(progress)})
}

func (h HandlerSet) TouchProgress(c *gin.Context) {
	progress, err := h.progress.Touch(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": toProgress(progress)})
}

const defaultIncompleteLimit = 10

// MyProgress returns the caller's rows for ?lesson_ids=a,b,c. Without
// lesson_ids it lists the most recent incomplete rows, up to ?limit=.
func (h HandlerSet) MyProgress(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("lesson_ids"))
	if raw == "" {
		h.myIncompleteProgress(c)
		return
	}

	var lessonIDs []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			lessonIDs = append(lessonIDs, id)
		}
	}
	if len(lessonIDs) == 0 {
		h.badRequest(c, "lesson_ids", "lesson_ids must name at least one lesson")
		return
	}

	rows, err := h.progress.ListForLessons(c.Request.Context(), actorOf(c), lessonIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]progressResponse, 0, len(rows))
	for _, p := range rows {
		items = append(items, toProgress(p))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) myIncompleteProgress(c *gin.Context) {
	limit := defaultIncompleteLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(c, "limit", "limit must be an integer")
			return
		}
		limit = n
	}

	rows, err := h.progress.ListIncomplete(c.Request.Context(), actorOf(c).UserID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]progressResponse, 0, len(rows))
	for _, a := range rows {
		item := toProgress(a.Progress)
		item.ProductID = a.ProductID
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

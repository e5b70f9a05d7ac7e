package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/news-comb/app/apperr"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/sound"
)

func NewHandler(svc Services) *Handler {
	return &Handler{
		svc:       svc,
		keepalive: keepaliveEvery,
		now:       time.Now,
	}
}

// respondError maps domain errors onto status codes.
func respondError(c *gin.Context, operation string, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.IsValidation(err):
		status = http.StatusBadRequest
	case apperr.IsNotFound(err):
		status = http.StatusNotFound
	case apperr.IsAuthorization(err):
		status = http.StatusUnauthorized
	default:
		slog.Error("Request failed", "operation", operation, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) Ingest(c *gin.Context) {
	result, err := h.svc.Ingester.Run(c.Request.Context())
	if err != nil {
		respondError(c, "ingest", err)
		return
	}

	if len(result.Results) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No active RSS sources configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Ingestion completed",
		"totalInserted": result.TotalInserted,
		"totalFailed":   result.TotalFailed,
		"results":       result.Results,
	})
}

func (h *Handler) Archive(c *gin.Context) {
	result, err := h.svc.Archiver.Run(c.Request.Context(), h.now())
	if err != nil {
		respondError(c, "archive", err)
		return
	}

	if result.Archived == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No items to archive", "archived": 0, "deleted": 0})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Archive completed successfully",
		"archived":   result.Archived,
		"cutoffDate": result.CutoffDate.Format(time.RFC3339Nano),
	})
}

func (h *Handler) SystemStatus(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.now()

	status, err := h.svc.Status.Get(ctx)
	if err != nil {
		respondError(c, "system_status", err)
		return
	}

	lastHour, err := h.svc.News.CountCreatedSince(ctx, now.Add(-time.Hour))
	if err != nil {
		respondError(c, "system_status", err)
		return
	}
	lastDay, err := h.svc.News.CountCreatedSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		respondError(c, "system_status", err)
		return
	}
	total, err := h.svc.News.Count(ctx)
	if err != nil {
		respondError(c, "system_status", err)
		return
	}

	state := database.StatusLive
	var lastIngest *time.Time
	if status != nil {
		if status.Status != "" {
			state = status.Status
		}
		lastIngest = status.LastIngest
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        state,
		"lastIngest":    lastIngest,
		"itemsLastHour": lastHour,
		"itemsLastDay":  lastDay,
		"totalItems":    total,
	})
}

func (h *Handler) SoundSettings(c *gin.Context) {
	ctx := c.Request.Context()
	user := userID(c)

	var (
		prefs sound.Preferences
		err   error
	)

	if c.Request.Method == http.MethodPost {
		body, readErr := io.ReadAll(c.Request.Body)
		if readErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		patch, parseErr := sound.ParsePatch(body)
		if parseErr != nil {
			respondError(c, "sound_settings", parseErr)
			return
		}
		prefs, err = h.svc.Sound.Update(ctx, user, patch)
	} else {
		prefs, err = h.svc.Sound.Load(ctx, user)
	}

	if err != nil {
		respondError(c, "sound_settings", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      user,
		"enabled":      prefs.Enabled,
		"volume":       prefs.Volume,
		"sound_tags":   prefs.SoundTags,
		"tag_settings": prefs.TagSettings,
	})
}

func (h *Handler) ListPanes(c *gin.Context) {
	panes := h.svc.Panes.Snapshot().Panes()

	out := make([]gin.H, 0, len(panes))
	for _, p := range panes {
		out = append(out, gin.H{
			"id":       p.ID,
			"title":    p.Title,
			"priority": p.Priority(),
			"rules":    p.Rules,
		})
	}

	c.JSON(http.StatusOK, gin.H{"panes": out, "total": len(out)})
}

func (h *Handler) UpdatePane(c *gin.Context) {
	var req updatePaneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	pane, err := h.svc.Panes.Update(c.Request.Context(), c.Param("id"), req.Title, req.Rules)
	if err != nil {
		respondError(c, "update_pane", err)
		return
	}

	slog.Info("Pane rules updated", "pane", pane.ID, "user", userID(c))

	c.JSON(http.StatusOK, gin.H{
		"id":       pane.ID,
		"title":    pane.Title,
		"priority": pane.Priority(),
		"rules":    pane.Rules,
	})
}

// PaneFeed renders the pane's items from the last day as RSS.
func (h *Handler) PaneFeed(c *gin.Context) {
	id := c.Param("id")
	now := h.now()

	snapshot := h.svc.Panes.Snapshot()
	pane, ok := snapshot.Get(id)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	candidates, err := h.svc.News.ListPublishedSince(c.Request.Context(), now.Add(-feedWindow), feedCandidateCap)
	if err != nil {
		slog.Error("Database error", "operation", "list_news", "pane", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	items := make([]database.NewsItem, 0, len(candidates))
	for _, item := range candidates {
		if owner, ok := snapshot.Route(itemView(item)); ok && owner == id {
			items = append(items, item)
		}
	}

	rss, err := h.svc.Generator.Run(pane, items, now)
	if err != nil {
		slog.Error("RSS generation error", "pane", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Pane-Id", id)

	c.String(http.StatusOK, rss)
}

func (h *Handler) MarkRead(c *gin.Context)    { h.setMark(c, h.svc.Read, "read", true) }
func (h *Handler) UnmarkRead(c *gin.Context)  { h.setMark(c, h.svc.Read, "read", false) }
func (h *Handler) MarkSaved(c *gin.Context)   { h.setMark(c, h.svc.Saved, "saved", true) }
func (h *Handler) UnmarkSaved(c *gin.Context) { h.setMark(c, h.svc.Saved, "saved", false) }

func (h *Handler) setMark(c *gin.Context, store MarkStore, kind string, on bool) {
	ctx := c.Request.Context()
	id := c.Param("id")

	item, err := h.svc.News.Get(ctx, id)
	if err != nil {
		respondError(c, "get_item", err)
		return
	}
	if item == nil {
		respondError(c, "get_item", apperr.NotFound("news item", id))
		return
	}

	if on {
		_, err = store.Mark(ctx, userID(c), id)
	} else {
		_, err = store.Unmark(ctx, userID(c), id)
	}
	if err != nil {
		respondError(c, "mark_"+kind, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, kind: on})
}

func (h *Handler) MarkManyRead(c *gin.Context) {
	var req markManyRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must be a non-empty array"})
		return
	}

	ctx := c.Request.Context()

	// Every id must exist; nothing is marked otherwise.
	for _, id := range req.IDs {
		item, err := h.svc.News.Get(ctx, id)
		if err != nil {
			respondError(c, "get_item", err)
			return
		}
		if item == nil {
			respondError(c, "get_item", apperr.NotFound("news item", id))
			return
		}
	}

	marked, err := h.svc.Read.Mark(ctx, userID(c), req.IDs...)
	if err != nil {
		respondError(c, "mark_read", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

func (h *Handler) Health(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": h.now().In(time.Local).Format(time.RFC3339),
		"panes":     h.svc.Panes.Snapshot().Len(),
		"sessions":  h.svc.Sessions.Count(),
	}

	if count, err := h.svc.News.Count(c.Request.Context()); err == nil {
		health["items"] = count
	}

	if h.svc.Configs != nil {
		health["loaded_configurations"] = h.svc.Configs.GetConfigCount()
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	sources, err := h.svc.Stats.SourceCount(ctx)
	if err != nil {
		respondError(c, "stats", err)
		return
	}
	items, err := h.svc.News.Count(ctx)
	if err != nil {
		respondError(c, "stats", err)
		return
	}
	archived, err := h.svc.Stats.ArchivedCount(ctx)
	if err != nil {
		respondError(c, "stats", err)
		return
	}
	logs, err := h.svc.Stats.RecentLogs(ctx, recentLogLimit)
	if err != nil {
		respondError(c, "stats", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources":        sources,
		"items":          items,
		"archived_items": archived,
		"recent_runs":    logs,
		"schema_version": h.svc.Stats.SchemaVersion(),
	})
}

package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/realtime"
	"github.com/lysyi3m/news-comb/app/routing"
)

var newsInserts = realtime.Topic{
	Table: realtime.TableNewsItems,
	Types: []realtime.EventType{realtime.EventInsert},
}

func startSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
}

// Stream pushes every newly ingested item to the user, plus sound alerts.
func (h *Handler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	user := userID(c)

	var filter *routing.Rules
	if paneID := c.Query("pane"); paneID != "" {
		pane, ok := h.svc.Panes.Snapshot().Get(paneID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "pane \"" + paneID + "\" not found"})
			return
		}
		filter = &pane.Rules
	}

	sub := h.svc.Hub.Subscribe(newsInserts)
	defer sub.Close()
	inserts := pump(ctx, sub)

	alerts, cancel := h.svc.Sessions.Alerts(ctx, user)
	defer cancel()

	startSSE(c)
	c.SSEvent("connected", gin.H{"userId": user})

	recent, err := h.svc.News.ListCreatedSince(ctx, h.now().Add(-snapshotWindow), snapshotLimit)
	if err != nil {
		slog.Error("Stream snapshot failed", "user", user, "error", err)
		c.SSEvent("error", gin.H{"message": err.Error()})
		return
	}
	if filter != nil {
		recent = filterItems(recent, *filter)
	}
	if len(recent) > snapshotSend {
		recent = recent[:snapshotSend]
	}
	c.SSEvent("snapshot", gin.H{"items": recent})
	c.Writer.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-inserts:
			if !ok {
				return false
			}
			item, ok := evt.Record.(database.NewsItem)
			if !ok {
				return true
			}
			if filter != nil && !routing.Filter(itemView(item), *filter) {
				return true
			}
			c.SSEvent("news", item)
		case alert := <-alerts:
			c.SSEvent("alert", alert)
		case <-keepalive.C:
			_, _ = io.WriteString(w, ": keepalive\n\n")
		}
		return true
	})
}

// PaneLive runs a pane session for the lifetime of the connection.
func (h *Handler) PaneLive(c *gin.Context) {
	ctx := c.Request.Context()
	user := userID(c)

	ctrl, err := h.svc.Sessions.Open(ctx, user, c.Param("id"))
	if err != nil {
		respondError(c, "open_session", err)
		return
	}
	defer h.svc.Sessions.Close(ctrl.ID())

	startSSE(c)
	c.SSEvent("connected", gin.H{"sessionId": ctrl.ID(), "paneId": ctrl.PaneID()})
	c.SSEvent("pane", ctrl.View())
	c.Writer.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	updates := ctrl.Updates()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("pane", ctrl.View())
		case <-keepalive.C:
			_, _ = io.WriteString(w, ": keepalive\n\n")
		}
		return true
	})
}

func (h *Handler) ResumeSession(c *gin.Context) {
	ctrl, err := h.svc.Sessions.Get(c.Param("id"), userID(c))
	if err != nil {
		respondError(c, "resume_session", err)
		return
	}

	fetched, err := ctrl.Resume(c.Request.Context())
	if err != nil {
		respondError(c, "resume_session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"fetched": fetched, "view": ctrl.View()})
}

// pump moves subscription events onto a channel so they can be selected on.
func pump(ctx context.Context, sub *realtime.Subscription) <-chan realtime.Event {
	out := make(chan realtime.Event, 16)
	go func() {
		defer close(out)
		for {
			evt, err := sub.Next(ctx)
			if err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func itemView(item database.NewsItem) routing.Item {
	return routing.Item{Headline: item.Headline, Source: item.Source, Tags: item.Tags()}
}

func filterItems(items []database.NewsItem, rules routing.Rules) []database.NewsItem {
	out := items[:0:0]
	for _, item := range items {
		if routing.Filter(itemView(item), rules) {
			out = append(out, item)
		}
	}
	return out
}

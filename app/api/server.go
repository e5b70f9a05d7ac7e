package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, internalSecret, jwtSecret string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, X-Client-Info, Apikey, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, internalSecret, jwtSecret)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, internalSecret, jwtSecret string) {
	internal := internalAuthMiddleware(internalSecret)
	user := userAuthMiddleware(jwtSecret)

	r.POST("/ingest", internal, handler.Ingest)
	r.Any("/archive", methodGuard("Method not allowed. Use POST.", http.MethodPost), internal, handler.Archive)

	r.Any("/system-status", methodGuard("Method not allowed. Use GET.", http.MethodGet), handler.SystemStatus)
	r.Any("/sound-settings", methodGuard("Method not allowed", http.MethodGet, http.MethodPost), user, handler.SoundSettings)
	r.Any("/stream", methodGuard("Method not allowed", http.MethodGet), user, handler.Stream)

	// Public RSS rendering of a pane
	r.GET("/panes/:id/feed.xml", handler.PaneFeed)

	authed := r.Group("/")
	authed.Use(user)
	{
		authed.GET("/panes", handler.ListPanes)
		authed.PUT("/panes/:id", handler.UpdatePane)
		authed.GET("/panes/:id/live", handler.PaneLive)
		authed.POST("/sessions/:id/resume", handler.ResumeSession)

		authed.PUT("/items/:id/read", handler.MarkRead)
		authed.DELETE("/items/:id/read", handler.UnmarkRead)
		authed.PUT("/items/:id/saved", handler.MarkSaved)
		authed.DELETE("/items/:id/saved", handler.UnmarkSaved)
		authed.POST("/items/read", handler.MarkManyRead)
	}

	if internalSecret == "" {
		slog.Warn("INTERNAL_CRON_SECRET not set, /ingest and /archive will reject every request")
	}

	r.GET("/health", handler.Health)
	r.GET("/stats", handler.GetStats)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "News Comb",
			"description": "News ingestion, classification and pane routing",
			"endpoints": map[string]string{
				"ingest":         "/ingest (POST, internal secret)",
				"archive":        "/archive (POST, internal secret)",
				"system_status":  "/system-status",
				"sound_settings": "/sound-settings (GET/POST, bearer token)",
				"stream":         "/stream (SSE, bearer token)",
				"panes":          "/panes (bearer token)",
				"pane_live":      "/panes/<id>/live (SSE, bearer token)",
				"pane_feed":      "/panes/<id>/feed.xml",
				"health":         "/health",
				"stats":          "/stats",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

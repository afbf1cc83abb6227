// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skufu/medassist/internal/assistant"
	"github.com/Skufu/medassist/internal/logging"
	"github.com/Skufu/medassist/internal/report"
)

//go:embed static/ui.html
var uiPage []byte

// SessionHeader selects the conversation; absent means the default one.
const SessionHeader = "X-Session-ID"

const maxChatBody = 1 << 20

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Responder sends a chat prompt within a session.
type Responder interface {
	Respond(ctx context.Context, s *assistant.Session, prompt string) (string, error)
}

// Analyzer runs report extraction and analysis.
type Analyzer interface {
	Analyze(ctx context.Context, s *assistant.Session, path string) (*report.Analysis, error)
}

// Deps are the collaborators the router needs. DB may be nil.
type Deps struct {
	Sessions       *assistant.Sessions
	Gateway        Responder
	Reports        Analyzer
	DB             HealthChecker
	MetricsHandler http.Handler
	OnSentinel     func()
	MaxUploadBytes int64
	UploadDir      string
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.MetricsHandler == nil {
		d.MetricsHandler = promhttp.Handler()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 20 << 20
	}

	h := &handlers{deps: d, log: logging.WithComponent("http")}

	router := gin.New()
	router.MaxMultipartMemory = d.MaxUploadBytes
	router.Use(
		logging.GinLogger(),
		gin.Recovery(),
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", SessionHeader},
			ExposeHeaders: []string{SessionHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Medical assistant backend is running. Use POST /chat to interact."})
	})
	router.GET("/ui", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", uiPage)
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		if d.DB == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := d.DB.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"db":     fmt.Sprintf("unhealthy: %v", err),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
	})

	router.GET("/metrics", gin.WrapH(d.MetricsHandler))

	router.POST("/sessions", h.newSession)
	router.POST("/chat", limitBodySize(maxChatBody), h.chat)
	router.POST("/analyze-report", limitBodySize(d.MaxUploadBytes+(1<<20)), h.analyzeReport)

	return router
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

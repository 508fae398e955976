package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
)

// Routes holds the handlers served by the local API.
type Routes struct {
	Translate APIHandler
	Events    func(ctx context.Context, raw json.RawMessage) (events.APIGatewayProxyResponse, error)
	Files     APIHandler
	Uploads   APIHandler
	APIKeys   APIHandler
}

// SetupRouter configures the gin engine serving routes.
func SetupRouter(routes Routes, logger *slog.Logger) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "csv-translation",
		})
	})

	r.POST("/translate", proxy(routes.Translate))
	r.OPTIONS("/translate", proxy(routes.Translate))
	r.GET("/files", proxy(routes.Files))
	r.OPTIONS("/files", proxy(routes.Files))
	r.GET("/uploads", proxy(routes.Uploads))
	r.OPTIONS("/uploads", proxy(routes.Uploads))
	r.POST("/api-keys", proxy(routes.APIKeys))
	r.OPTIONS("/api-keys", proxy(routes.APIKeys))

	// Raw storage and queue events, as Lambda would receive them.
	r.POST("/events", func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp, err := routes.Events(c.Request.Context(), raw)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		writeProxyResponse(c, resp)
	})

	return r
}

func proxy(h APIHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := toProxyRequest(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp, err := h(c.Request.Context(), req)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		writeProxyResponse(c, resp)
	}
}

// LoggerMiddleware logs HTTP requests with slog
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("HTTP Request",
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("query", c.Request.URL.RawQuery),
			slog.Duration("latency", time.Since(start)),
			slog.Int("body_size", c.Writer.Size()),
		)
		for _, e := range c.Errors {
			logger.Error("Request error", slog.String("error", e.Error()))
		}
	}
}

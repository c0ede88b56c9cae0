package handler

import (
	"net/http"
	"runtime/debug"
	"time"

	"ngram-sandbox/internal/controller"
	"ngram-sandbox/pkg/mcp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter wires the REST API. mcpServer may be nil when MCP is disabled.
func SetupRouter(corpusController *controller.CorpusController, sessionController *controller.SessionController, mcpServer *mcp.GeneratorServer, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(CustomRecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/corpora", corpusController.List)
		v1.POST("/corpora/:id/train", corpusController.Train)
		v1.GET("/ngrams", corpusController.NGrams)

		sessions := v1.Group("/sessions")
		sessions.GET("", sessionController.List)
		sessions.POST("", sessionController.Create)
		sessions.GET("/:id", sessionController.Get)
		sessions.PATCH("/:id", sessionController.Update)
		sessions.DELETE("/:id", sessionController.Delete)
		sessions.PUT("/:id/seed", sessionController.SetSeed)
		sessions.POST("/:id/step", sessionController.Step)
		sessions.POST("/:id/generate", sessionController.Generate)
		sessions.POST("/:id/animate", sessionController.StartAnimation)
		sessions.DELETE("/:id/animate", sessionController.StopAnimation)
		sessions.POST("/:id/clear", sessionController.Clear)
		sessions.GET("/:id/context", sessionController.Context)

		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "healthy",
			})
		})
	}

	if mcpServer != nil {
		mcpServer.SetupHTTPRoutes(router)
	}

	return router
}

func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func CustomRecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

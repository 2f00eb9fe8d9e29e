package router

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/pneumonia-api/internal/handlers"
)

// Options configures the HTTP router builder.
type Options struct {
	Handler            *handlers.Handler
	Logger             *zap.SugaredLogger
	Mode               string
	MaxMultipartMemory int64
}

// Build constructs a gin engine with recovery, request logging and CORS, and
// registers the application routes.
func Build(opts Options) (*gin.Engine, error) {
	if opts.Handler == nil {
		return nil, fmt.Errorf("http router requires a handler")
	}

	switch opts.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(opts.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if opts.Logger != nil {
		engine.Use(loggingMiddleware(opts.Logger))
	}
	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	if opts.MaxMultipartMemory > 0 {
		engine.MaxMultipartMemory = opts.MaxMultipartMemory
	}
	engine.SetHTMLTemplate(handlers.Templates())

	h := opts.Handler
	engine.GET("/", h.Index)
	engine.POST("/", h.Upload)
	engine.GET("/health", h.Health)

	api := engine.Group("/api")
	api.POST("/predict", h.Predict)
	api.POST("/predict/tensor", h.PredictTensor)

	return engine, nil
}

func loggingMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infof(
			"[HTTP] %s %s -> %d (%s)",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
		)
	}
}

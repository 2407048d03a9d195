package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"domain-monitor/internal/config"
	"domain-monitor/internal/metrics"
	"domain-monitor/internal/models"
)

// OwnerHeader names the account a request acts for
const OwnerHeader = "X-Owner"

// NewRouter builds the engine with middleware and all routes
func NewRouter(cfg *config.ServerConfig, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(), gin.Recovery(), metrics.Middleware(), corsMiddleware(cfg.CORSOrigins))
	SetupRoutes(r, h)
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", OwnerHeader},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

// requestLogger logs one line per request
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Microsecond).String(),
			"ip":      c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Debug("request")
		}
	}
}

// owner is the account named by the request, or the default account
func owner(c *gin.Context) string {
	if o := c.GetHeader(OwnerHeader); o != "" {
		return o
	}
	return models.DefaultOwner
}

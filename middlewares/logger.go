package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"flashvote/logging"
	"flashvote/metrics"
)

// RequestLogger writes one logrus entry per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logrus.WithFields(logrus.Fields{
			logging.FldMethod:  c.Request.Method,
			logging.FldPath:    c.Request.URL.Path,
			logging.FldStatus:  status,
			logging.FldLatency: time.Since(start).String(),
			logging.FldIP:      c.ClientIP(),
		})
		if uid := c.GetInt64("userId"); uid != 0 {
			entry = entry.WithField(logging.FldUser, uid)
		}

		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Info("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}

// Metrics records count and latency per route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

package middlewares_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"flashvote/metrics"
	"flashvote/middlewares"
)

func TestRequestLogger_LogsFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logrus.SetOutput(&buf)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	t.Cleanup(func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetFormatter(&logrus.TextFormatter{})
	})

	s := gin.New()
	s.Use(middlewares.RequestLogger())
	s.GET("/boom", func(c *gin.Context) { c.JSON(500, gin.H{"message": "x"}) })

	_ = get(s, "/boom", "")
	out := buf.String()
	if !strings.Contains(out, `"status":500`) || !strings.Contains(out, `"path":"/boom"`) {
		t.Fatalf("log line missing fields: %s", out)
	}
	if !strings.Contains(out, `"level":"error"`) {
		t.Fatalf("5xx should log at error: %s", out)
	}
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New()
	s := gin.New()
	s.Use(middlewares.Metrics(m))
	s.GET("/e/:slug", func(c *gin.Context) { c.String(200, "ok") })

	_ = get(s, "/e/a", "")
	_ = get(s, "/e/b", "")
	_ = get(s, "/nowhere", "")

	const want = `
# HELP flashvote_http_requests_total HTTP requests by route and status
# TYPE flashvote_http_requests_total counter
flashvote_http_requests_total{method="GET",route="/e/:slug",status="200"} 2
flashvote_http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(want), "flashvote_http_requests_total"); err != nil {
		t.Fatal(err)
	}
}

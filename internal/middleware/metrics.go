package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

type requestObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// Metrics records the duration and status of every request, labelled by route template so view ids
// never reach a label. Unmatched routes share one label. Routes in streams are long-lived event
// streams and are left out of the histogram.
func Metrics(observer requestObserver, streams ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(streams))
	for _, route := range streams {
		skip[route] = struct{}{}
	}
	return func(c *gin.Context) {
		if observer == nil {
			c.Next()
			return
		}
		if _, ok := skip[c.FullPath()]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		observer.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

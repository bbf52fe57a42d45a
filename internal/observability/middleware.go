package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouteUnmatched labels requests that hit no registered route, so scans of
// random paths cannot grow the metric label set.
const RouteUnmatched = "unmatched"

// AdminAccess logs and counts each admin request for node. Routes listed in
// quiet (health checks, scrapes) log at debug unless they fail. Handler errors
// attached with c.Error are logged with the request.
func AdminAccess(node string, logger zerolog.Logger, quiet ...string) gin.HandlerFunc {
	quietRoutes := make(map[string]bool, len(quiet))
	for _, route := range quiet {
		quietRoutes[route] = true
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = RouteUnmatched
		}
		status := c.Writer.Status()
		RecordHTTPRequest(node, c.Request.Method, route, status, elapsed)

		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = logger.Error()
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			ev = logger.Warn()
		case quietRoutes[route] && status < http.StatusBadRequest:
			ev = logger.Debug()
		default:
			ev = logger.Info()
		}
		if last := c.Errors.Last(); last != nil {
			ev = ev.Err(last.Err)
		}
		ev.Str("node", node).
			Str("route", route).
			Str("method", c.Request.Method).
			Int("status", status).
			Dur("elapsed", elapsed).
			Str("remote", c.ClientIP()).
			Msg("observability.AdminAccess")
	}
}

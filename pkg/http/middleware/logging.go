package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	xlogger "EarnPull/pkg/logger"
)

// RequestLogging logs one line per request. 5xx responses log at error
// level, requests slower than slow (if > 0) at warn, the rest at debug.
func RequestLogging(l *xlogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			latency := time.Since(start)
			status := c.Response().Status
			fields := []xlogger.Field{
				xlogger.String("method", req.Method),
				xlogger.String("uri", req.RequestURI),
				xlogger.String("remote", c.RealIP()),
				xlogger.Int("status", status),
				xlogger.Duration("duration_ms", latency),
			}

			switch {
			case status >= 500:
				if err != nil {
					fields = append(fields, xlogger.Error(err))
				}
				l.Error("http request failed", fields...)
			case slow > 0 && latency >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}

package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// roundTripperFunc adapts a function to http.RoundTripper
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// LoggingTransport logs each outgoing request with its status and duration.
// A nil next uses http.DefaultTransport.
func LoggingTransport(next http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}

	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)
		duration := time.Since(start)

		if err != nil {
			logger.Debug("[HTTP] request failed",
				"method", r.Method,
				"url", r.URL.String(),
				"duration", duration,
				"error", err,
			)
			return resp, err
		}

		logger.Debug("[HTTP] request completed",
			"method", r.Method,
			"url", r.URL.String(),
			"status", resp.StatusCode,
			"bytes", resp.ContentLength,
			"duration", duration,
		)
		return resp, nil
	})
}

package http

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// logRequests is a single wrapping handler that times the request and
// logs method/path/duration after it completes.
func logRequests(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.WithFields(logrus.Fields{
				"method": r.Method, "path": r.URL.Path, "duration": time.Since(start),
			}).Info("request")
		})
	}
}

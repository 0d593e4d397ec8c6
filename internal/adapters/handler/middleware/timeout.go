package middleware

import (
	"net/http"
	"time"
)

const timeoutBody = `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"request did not complete in time"}}`

// Timeout answers 503 with timeoutBody when next runs past limit. The request
// context carries the same deadline, so gateway calls made by next are
// cancelled along with it.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, limit, timeoutBody)
	}
}

package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

var (
	errNotFound         = errors.New("route not found")
	errMethodNotAllowed = errors.New("method not allowed")
	errRequestEnded     = errors.New("request cancelled before the snapshot completed")
	errInvalidMessage   = errors.New("message must be a non-empty string")
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Route  string `json:"route"`
	Time   string `json:"time"`
}

func errPanic(v any) error {
	return fmt.Errorf("panic: %v", v)
}

// writeError renders {error, detail?, route, time}. Client errors show their
// message; server errors show a generic message and carry the cause in detail
// outside production only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	body := errorBody{
		Error: http.StatusText(status),
		Route: r.Method + " " + r.URL.Path,
		Time:  domain.Now().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if status < http.StatusInternalServerError {
		body.Error = err.Error()
	} else {
		s.logger.Error("request failed", "route", body.Route, "status", status, "error", err)
		if !s.opts.Production {
			body.Detail = err.Error()
		}
	}
	sharedobs.WriteJSON(w, status, body)
}

// handleUnmatched answers /api requests no route accepted: 405 when the path
// exists under another method, 404 otherwise.
func (s *Server) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	if methods, ok := s.methods[r.URL.Path]; ok {
		w.Header().Set("Allow", strings.Join(methods, ", "))
		s.writeError(w, r, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	s.writeError(w, r, http.StatusNotFound, errNotFound)
}

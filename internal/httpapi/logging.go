package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, request logging is off.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logRequestStart(r *http.Request) {
	if zlog == nil {
		return
	}
	e := zlog.Info().Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		e = e.Str("request_id", rid)
	}
	e.Msg("completion start")
}

// logRequestEnd records the outcome. A zero status means the response was
// already in flight when the session failed.
func logRequestEnd(r *http.Request, status int, dur time.Duration, err error) {
	if zlog == nil {
		return
	}
	var e *zerolog.Event
	if err != nil {
		e = zlog.Error().Err(err)
	} else {
		e = zlog.Info()
	}
	if status != 0 {
		e = e.Int("status", status)
	}
	e = e.Dur("dur", dur)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		e = e.Str("request_id", rid)
	}
	e.Msg("completion end")
}

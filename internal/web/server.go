package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"gpsmon/internal/board"
	"gpsmon/internal/cmdchan"
	"gpsmon/internal/gpsmon"
	"gpsmon/internal/notify"
	"gpsmon/internal/udp"
)

// Monitor is the part of *gpsmon.Monitor the web UI needs.
type Monitor interface {
	Snapshot() gpsmon.Snapshot
	Post(e gpsmon.Event) bool
}

// Deps wires the handlers. Commands, Feed and Logs are optional.
type Deps struct {
	Monitor  Monitor
	Commands *cmdchan.Channel
	Feed     *notify.Broadcaster
	Board    board.Board
	Logs     *LogBuffer
	Log      *logrus.Entry
}

// CommandTimeout bounds how long POST /api/cmd waits for the monitor.
const CommandTimeout = 5 * time.Second

func Handler(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	st := newStatus(d)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Log))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		snap := d.Monitor.Snapshot()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>gpsmon</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>gpsmon</h1>")
		_, _ = fmt.Fprintf(w, "<p>See <a href=\"/api/status\">/api/status</a> and <a href=\"/api/logs?format=text\">/api/logs</a>.</p>")
		_, _ = fmt.Fprintf(w, "<pre>state=%s\nmajor=%s\nrunning=%t\npending=%v</pre>",
			snap.State, snap.Major, snap.Running, snap.PendingTimers,
		)
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, st.snapshot(time.Now().UTC()))
		})
		r.Get("/board", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, d.Board)
		})
		r.Get("/about", aboutHandler)
		if d.Logs != nil {
			r.Get("/logs", d.Logs.ServeHTTP)
		}
		if d.Commands != nil {
			r.Post("/cmd", commandHandler(d.Commands))
		}
		r.Post("/event", eventHandler(d.Monitor))
		if d.Feed != nil {
			r.Get("/events", eventsHandler(d.Feed, d.Log))
		}
	})
	return r
}

// CommandResponse is the answer to POST /api/cmd. Reply carries the same two
// bytes a UDP client would get.
type CommandResponse struct {
	Status  string `json:"status"`
	State   string `json:"state,omitempty"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
	Reply   []byte `json:"reply"`
}

func commandHandler(c *cmdchan.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, udp.MaxDatagram+1))
		if err != nil {
			http.Error(w, "read body failed", http.StatusBadRequest)
			return
		}
		if len(body) > udp.MaxDatagram {
			http.Error(w, "frame too large", http.StatusRequestEntityTooLarge)
			return
		}

		frame := body
		if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "text/plain" {
			req, err := cmdchan.DecodeText(string(body))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, CommandResponse{
					Status: "rejected",
					Error:  err.Error(),
					Reply:  cmdchan.Reply(gpsmon.Outcome{}, err),
				})
				return
			}
			frame = cmdchan.Encode(req)
		}

		ctx, cancel := context.WithTimeout(r.Context(), CommandTimeout)
		defer cancel()
		out, err := c.Handle(ctx, frame)
		resp := CommandResponse{Reply: cmdchan.Reply(out, err)}
		code := http.StatusOK
		switch {
		case errors.Is(err, gpsmon.ErrCommandRejected):
			resp.Status, resp.Error = "rejected", err.Error()
			code = http.StatusBadRequest
		case err != nil:
			resp.Status, resp.Error = "error", err.Error()
			code = http.StatusServiceUnavailable
		case errors.Is(out.Err, gpsmon.ErrCommandRejected):
			resp.Status, resp.State, resp.Error = "rejected", out.To.String(), out.Err.Error()
		default:
			resp.Status, resp.State = "accepted", out.To.String()
		}
		if err == nil {
			if req, derr := cmdchan.Decode(frame); derr == nil {
				resp.Command = req.String()
			}
		}
		writeJSON(w, code, resp)
	}
}

type eventRequest struct {
	Event string `json:"event"`
}

func eventHandler(mon Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req eventRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		e, err := gpsmon.ParseEvent(req.Event)
		if err != nil || e == gpsmon.EvNone {
			http.Error(w, fmt.Sprintf("unknown event %q", req.Event), http.StatusBadRequest)
			return
		}
		if !mon.Post(e) {
			http.Error(w, "monitor queue unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"event": e.String()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": ww.Status(),
				"bytes":  ww.BytesWritten(),
				"took":   time.Since(start),
			}).Debug("http request")
		})
	}
}

func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

package server

import (
	"context"
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/go-chi/chi/v5"

	"prepx/internal/domain"
	"prepx/internal/export"
	"prepx/internal/pipeline"
	"prepx/internal/repo"
)

// keepaliveInterval is how long the stream may sit idle before a
// keepalive event is written to stop proxies from closing the
// connection.
const keepaliveInterval = 30 * time.Second

// keepalivePing is the typed no-op event sent on idle streams.
type keepalivePing struct{}

// registerStream mounts the SSE progress feed. Snapshot history is
// replayed after subscribing to the live feed so no event can fall in
// the gap between the two; duplicates across the boundary are filtered
// by event id (delivery is at-least-once).
func registerStream(api huma.API, e *pipeline.Engine) {
	sse.Register(api, huma.Operation{
		OperationID: "plan-stream",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}/stream",
		Summary:     "Live progress feed for the latest run",
		Middlewares: huma.Middlewares{func(ctx huma.Context, next func(huma.Context)) {
			// The stream body cannot change the status once it has
			// started, so resolve the run up front.
			_, err := e.Repo.LatestRun(ctx.Context(), ctx.Param("session_id"))
			if errors.Is(err, repo.ErrNotFound) {
				huma.WriteErr(api, ctx, http.StatusNotFound, "no run for session")
				return
			}
			if err != nil {
				huma.WriteErr(api, ctx, http.StatusInternalServerError, err.Error())
				return
			}
			next(ctx)
		}},
	}, map[string]any{
		"message":   domain.ProgressEvent{},
		"keepalive": keepalivePing{},
	}, func(ctx context.Context, input *SessionPath, send sse.Sender) {
		run, err := e.Repo.LatestRun(ctx, input.SessionID)
		if err != nil {
			return
		}

		ch, cancel := e.Broadcast.Subscribe(run.ID)
		defer cancel()

		var lastID int64
		history, err := e.Log.Snapshot(ctx, run.ID)
		if err == nil {
			for _, ev := range history {
				if send(sse.Message{ID: int(ev.ID), Data: ev}) != nil {
					return
				}
				lastID = ev.ID
				if ev.Done {
					return
				}
			}
		}

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-keepalive.C:
				if send.Data(keepalivePing{}) != nil {
					return
				}
			case ev, open := <-ch:
				if !open {
					return
				}
				if ev.ID != 0 && ev.ID <= lastID {
					continue
				}
				if send(sse.Message{ID: int(ev.ID), Data: ev}) != nil {
					return
				}
				if ev.Done {
					return
				}
			}
		}
	})
}

// registerExports mounts the CSV and Markdown plan downloads. These are
// plain file responses on the router, not API operations.
func registerExports(router chi.Router, basePath string, e *pipeline.Engine) {
	router.Get(path.Join(basePath, "sessions/{session_id}/plan.csv"), func(w http.ResponseWriter, r *http.Request) {
		tasks, ok := loadPlan(w, r, e)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="study-plan.csv"`)
		_ = export.WriteCSV(w, tasks)
	})

	router.Get(path.Join(basePath, "sessions/{session_id}/plan.md"), func(w http.ResponseWriter, r *http.Request) {
		tasks, ok := loadPlan(w, r, e)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_ = export.WriteMarkdown(w, tasks)
	})
}

func loadPlan(w http.ResponseWriter, r *http.Request, e *pipeline.Engine) ([]domain.StudyTask, bool) {
	sessionID := chi.URLParam(r, "session_id")
	run, err := e.Repo.LatestRun(r.Context(), sessionID)
	if errors.Is(err, repo.ErrNotFound) {
		http.Error(w, "no run for session", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	tasks, err := e.Repo.ListTasks(r.Context(), run.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return tasks, true
}

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"prepx/internal/domain"
	"prepx/internal/pipeline"
	"prepx/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *pipeline.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"session not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the prepx API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("prepx API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerSessions(group, cfg.Engine)
	registerCourses(group, cfg.Engine)
	registerDocuments(group, cfg.Engine)
	registerPlan(group, cfg.Engine)
	registerStream(group, cfg.Engine)
	registerExports(router, basePath, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, pipeline.ErrRunActive) {
		return newAPIError(http.StatusConflict, "run_active", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "healthy"}}, nil
	})
}

func registerSessions(api huma.API, e *pipeline.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "session-create",
		Method:        http.MethodPost,
		Path:          "/sessions",
		Summary:       "Create a session",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateSessionRequest
	}) (*struct {
		Body domain.Session
	}, error) {
		s := domain.Session{ID: input.Body.ID, CreatedAt: nowRFC3339()}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if err := e.Repo.EnsureSession(ctx, s); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Session
		}{Body: s}, nil
	})
}

type SessionPath struct {
	SessionID string `path:"session_id"`
}

func registerCourses(api huma.API, e *pipeline.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "course-create",
		Method:        http.MethodPost,
		Path:          "/sessions/{session_id}/courses",
		Summary:       "Add a course to a session",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		SessionPath
		Body CreateCourseRequest
	}) (*struct {
		Body domain.Course
	}, error) {
		if input.Body.Code == "" || input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "code and name are required", nil)
		}
		if _, err := e.Repo.GetSession(ctx, input.SessionID); err != nil {
			return nil, handleError(err)
		}
		existing, err := e.Repo.ListCourses(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		c := domain.Course{
			ID:        input.Body.ID,
			SessionID: input.SessionID,
			Code:      input.Body.Code,
			Name:      input.Body.Name,
			ExamDate:  input.Body.ExamDate,
			Color:     domain.PaletteColor(len(existing)),
			CreatedAt: nowRFC3339(),
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if err := e.Repo.InsertCourse(ctx, c); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Course
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "course-list",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}/courses",
		Summary:     "List courses in a session",
	}, func(ctx context.Context, input *SessionPath) (*struct {
		Body []domain.Course
	}, error) {
		items, err := e.Repo.ListCourses(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Course
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "course-update",
		Method:      http.MethodPatch,
		Path:        "/courses/{course_id}",
		Summary:     "Edit a course's display fields",
	}, func(ctx context.Context, input *struct {
		CourseID string `path:"course_id"`
		Body     UpdateCourseRequest
	}) (*struct {
		Body domain.Course
	}, error) {
		if err := e.Repo.UpdateCourse(ctx, input.CourseID, input.Body.Code, input.Body.Name, input.Body.ExamDate); err != nil {
			return nil, handleError(err)
		}
		c, err := e.Repo.GetCourse(ctx, input.CourseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Course
		}{Body: c}, nil
	})
}

func registerDocuments(api huma.API, e *pipeline.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "document-add",
		Method:        http.MethodPost,
		Path:          "/courses/{course_id}/documents",
		Summary:       "Register extracted document text for a course",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		CourseID string `path:"course_id"`
		Body     AddDocumentRequest
	}) (*struct {
		Body DocumentAck
	}, error) {
		if !domain.ValidDocKinds[input.Body.Kind] {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid document kind", nil)
		}
		if input.Body.Text == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "text is required", nil)
		}
		if _, err := e.Repo.GetCourse(ctx, input.CourseID); err != nil {
			return nil, handleError(err)
		}
		d := domain.DocumentRef{
			ID:        uuid.NewString(),
			CourseID:  input.CourseID,
			Kind:      domain.DocKind(input.Body.Kind),
			Name:      input.Body.Name,
			Text:      input.Body.Text,
			PageCount: input.Body.PageCount,
			CreatedAt: nowRFC3339(),
		}
		if err := e.Repo.InsertDocument(ctx, d); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentAck
		}{Body: DocumentAck{ID: d.ID, Name: d.Name, Status: "complete"}}, nil
	})
}

func registerPlan(api huma.API, e *pipeline.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "plan-start",
		Method:        http.MethodPost,
		Path:          "/sessions/{session_id}/plan",
		Summary:       "Start plan generation",
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *struct {
		SessionPath
		Body PlanRequest
	}) (*struct {
		Body PlanAck
	}, error) {
		if _, err := e.Repo.GetSession(ctx, input.SessionID); err != nil {
			return nil, handleError(err)
		}
		opts := pipeline.StartOptions{
			SessionID:   input.SessionID,
			Constraints: input.Body.Constraints,
		}
		for _, c := range input.Body.Courses {
			opts.Courses = append(opts.Courses, pipeline.CourseOverride{
				ID: c.ID, Code: c.Code, Name: c.Name, ExamDate: c.ExamDate,
			})
		}
		run, err := e.Start(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlanAck
		}{Body: PlanAck{Message: "Plan generation started", SessionID: input.SessionID, RunID: run.ID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "plan-logs",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}/logs",
		Summary:     "Full progress log snapshot for the latest run",
	}, func(ctx context.Context, input *SessionPath) (*struct {
		Body []domain.ProgressEvent
	}, error) {
		run, err := e.Repo.LatestRun(ctx, input.SessionID)
		if errors.Is(err, repo.ErrNotFound) {
			return &struct {
				Body []domain.ProgressEvent
			}{Body: []domain.ProgressEvent{}}, nil
		}
		if err != nil {
			return nil, handleError(err)
		}
		log, err := e.Log.Snapshot(ctx, run.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if log == nil {
			log = []domain.ProgressEvent{}
		}
		return &struct {
			Body []domain.ProgressEvent
		}{Body: log}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "plan-result",
		Method:      http.MethodGet,
		Path:        "/sessions/{session_id}/result",
		Summary:     "Finished plan, error, or processing marker",
	}, func(ctx context.Context, input *SessionPath) (*struct {
		Body any
	}, error) {
		run, err := e.Repo.LatestRun(ctx, input.SessionID)
		if errors.Is(err, repo.ErrNotFound) {
			return &struct{ Body any }{Body: map[string]string{"status": "processing"}}, nil
		}
		if err != nil {
			return nil, handleError(err)
		}
		switch run.Status {
		case domain.RunDone:
			tasks, err := e.Repo.ListTasks(ctx, run.ID)
			if err != nil {
				return nil, handleError(err)
			}
			if tasks == nil {
				tasks = []domain.StudyTask{}
			}
			return &struct{ Body any }{Body: tasks}, nil
		case domain.RunFailed:
			return &struct{ Body any }{Body: map[string]string{"error": run.Error}}, nil
		default:
			return &struct{ Body any }{Body: map[string]string{"status": "processing"}}, nil
		}
	})

	huma.Register(api, huma.Operation{
		OperationID: "plan-abort",
		Method:      http.MethodDelete,
		Path:        "/sessions/{session_id}/run",
		Summary:     "Abort the active run",
	}, func(ctx context.Context, input *SessionPath) (*struct {
		Body map[string]bool `json:"body"`
	}, error) {
		aborted := e.Abort(input.SessionID)
		return &struct {
			Body map[string]bool `json:"body"`
		}{Body: map[string]bool{"aborted": aborted}}, nil
	})
}

package prepxsdk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal PrepX HTTP API client.
type Client struct {
	BaseURL    string
	SessionID  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, sessionID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		SessionID: sessionID,
		Timeout:   10 * time.Second,
	}
}

// Session represents the API session model.
type Session struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// Course represents the API course model.
type Course struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	ExamDate  string `json:"exam_date,omitempty"`
	Color     string `json:"color,omitempty"`
}

// StudyTask is one scheduled block of the generated plan.
type StudyTask struct {
	Date          string  `json:"date"`
	CourseID      string  `json:"course_id"`
	Course        string  `json:"course"`
	CourseColor   string  `json:"courseColor,omitempty"`
	Topic         string  `json:"topic"`
	Kind          string  `json:"task_type"`
	DurationHours float64 `json:"duration_hours"`
	Resources     string  `json:"resources,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	IsReview      bool    `json:"is_review,omitempty"`
}

// ProgressEvent is one entry of a run's agent log.
type ProgressEvent struct {
	Agent     string `json:"agent"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Done      bool   `json:"_done,omitempty"`
}

// PlanCourse carries per-course overrides for a plan request.
type PlanCourse struct {
	ID       string `json:"id"`
	Code     string `json:"code,omitempty"`
	Name     string `json:"name,omitempty"`
	ExamDate string `json:"examDate,omitempty"`
}

// Constraints are the scheduling limits sent with a plan request.
type Constraints struct {
	WeekdayHours    float64  `json:"weekdayHours,omitempty"`
	WeekendHours    float64  `json:"weekendHours,omitempty"`
	NoStudyDates    []string `json:"noStudyDates,omitempty"`
	ReviewFrequency string   `json:"reviewFrequency,omitempty"`
}

// PlanAck acknowledges an accepted plan request.
type PlanAck struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	RunID     string `json:"runId"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateSession creates a session and remembers its id on the client.
func (c *Client) CreateSession(ctx context.Context) (Session, error) {
	var resp Session
	if err := c.do(ctx, http.MethodPost, "api/sessions", struct{}{}, &resp); err != nil {
		return resp, err
	}
	c.SessionID = resp.ID
	return resp, nil
}

// CreateCourse adds a course to the session.
func (c *Client) CreateCourse(ctx context.Context, code, name, examDate string) (Course, error) {
	body := map[string]any{"code": code, "name": name}
	if examDate != "" {
		body["exam_date"] = examDate
	}
	var resp Course
	err := c.do(ctx, http.MethodPost, c.sessionPath("courses"), body, &resp)
	return resp, err
}

// ListCourses returns the session's courses.
func (c *Client) ListCourses(ctx context.Context) ([]Course, error) {
	var resp []Course
	err := c.do(ctx, http.MethodGet, c.sessionPath("courses"), nil, &resp)
	return resp, err
}

// UpdateCourse patches course fields; nil pointers leave fields unchanged.
func (c *Client) UpdateCourse(ctx context.Context, courseID string, code, name, examDate *string) (Course, error) {
	body := map[string]any{}
	if code != nil {
		body["code"] = *code
	}
	if name != nil {
		body["name"] = *name
	}
	if examDate != nil {
		body["exam_date"] = *examDate
	}
	var resp Course
	endpoint := fmt.Sprintf("api/courses/%s", url.PathEscape(courseID))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// AddDocument attaches a document's extracted text to a course.
func (c *Client) AddDocument(ctx context.Context, courseID, kind, name, text string, pageCount int) error {
	body := map[string]any{
		"kind": kind,
		"name": name,
		"text": text,
	}
	if pageCount > 0 {
		body["page_count"] = pageCount
	}
	endpoint := fmt.Sprintf("api/courses/%s/documents", url.PathEscape(courseID))
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// StartPlan kicks off plan generation and returns the acknowledgment.
func (c *Client) StartPlan(ctx context.Context, courses []PlanCourse, cons *Constraints) (PlanAck, error) {
	body := map[string]any{"courses": courses}
	if cons != nil {
		body["constraints"] = cons
	}
	var resp PlanAck
	err := c.do(ctx, http.MethodPost, c.sessionPath("plan"), body, &resp)
	return resp, err
}

// Logs returns the progress log of the latest run.
func (c *Client) Logs(ctx context.Context) ([]ProgressEvent, error) {
	var resp []ProgressEvent
	err := c.do(ctx, http.MethodGet, c.sessionPath("logs"), nil, &resp)
	return resp, err
}

// Result returns the latest run's plan. While the run is still
// processing it returns (nil, false, nil); a failed run surfaces as an
// error.
func (c *Client) Result(ctx context.Context) ([]StudyTask, bool, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.sessionPath("result"), nil, &raw); err != nil {
		return nil, false, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tasks []StudyTask
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return nil, false, err
		}
		return tasks, true, nil
	}
	var status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &status); err != nil {
		return nil, false, err
	}
	if status.Error != "" {
		return nil, false, fmt.Errorf("plan failed: %s", status.Error)
	}
	return nil, false, nil
}

// Abort cancels the session's active run. Returns whether a run was
// actually aborted.
func (c *Client) Abort(ctx context.Context) (bool, error) {
	var resp struct {
		Aborted bool `json:"aborted"`
	}
	err := c.do(ctx, http.MethodDelete, c.sessionPath("run"), nil, &resp)
	return resp.Aborted, err
}

// Stream follows the SSE progress feed, invoking fn for every event
// until the terminal event arrives, the context is canceled, or the
// server closes the stream.
func (c *Client) Stream(ctx context.Context, fn func(ProgressEvent)) error {
	streamURL := c.base() + "/" + strings.TrimLeft(c.sessionPath("stream"), "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	// No client timeout here; the stream stays open for the whole run.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		fn(ev)
		if ev.Done {
			return nil
		}
	}
	return scanner.Err()
}

// ExportCSV downloads the latest plan as CSV.
func (c *Client) ExportCSV(ctx context.Context) ([]byte, error) {
	return c.download(ctx, c.sessionPath("plan.csv"))
}

// ExportMarkdown downloads the latest plan as a Markdown table.
func (c *Client) ExportMarkdown(ctx context.Context) ([]byte, error) {
	return c.download(ctx, c.sessionPath("plan.md"))
}

func (c *Client) download(ctx context.Context, endpoint string) ([]byte, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/"+strings.TrimLeft(endpoint, "/"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	reqURL := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) sessionPath(p string) string {
	session := url.PathEscape(c.SessionID)
	return fmt.Sprintf("api/sessions/%s/%s", session, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

package server

import (
	"prepx/internal/domain"
)

// Request payloads

type CreateSessionRequest struct {
	ID string `json:"id,omitempty"`
}

type CreateCourseRequest struct {
	ID       string `json:"id,omitempty"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	ExamDate string `json:"exam_date,omitempty" format:"date"`
}

type UpdateCourseRequest struct {
	Code     *string `json:"code,omitempty"`
	Name     *string `json:"name,omitempty"`
	ExamDate *string `json:"exam_date,omitempty"`
}

type AddDocumentRequest struct {
	Kind      string `json:"kind" enum:"syllabus,exam_overview,textbook"`
	Name      string `json:"name,omitempty"`
	Text      string `json:"text"`
	PageCount int    `json:"page_count,omitempty"`
}

// PlanCourse mirrors the course override shape of the original plan
// request: id with optional display edits and exam date.
type PlanCourse struct {
	ID       string `json:"id"`
	Code     string `json:"code,omitempty"`
	Name     string `json:"name,omitempty"`
	ExamDate string `json:"examDate,omitempty"`
}

type PlanRequest struct {
	Courses     []PlanCourse       `json:"courses,omitempty"`
	Constraints domain.Constraints `json:"constraints,omitempty"`
}

// Response payloads

type PlanAck struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	RunID     string `json:"runId"`
}

type DocumentAck struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status"`
}

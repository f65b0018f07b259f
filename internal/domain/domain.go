package domain

// Course is one course the student is preparing for. ID is the stable
// identifier used everywhere internally; Code is the display code and may
// be edited without invalidating an existing plan.
type Course struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	ExamDate  string `json:"exam_date,omitempty" format:"date"`
	Color     string `json:"color,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// coursePalette is cycled to assign a color tag to courses created
// without one.
var coursePalette = []string{"#4a5d45", "#8c7851", "#51688c", "#8c5151", "#518c86"}

// PaletteColor returns the color for the i-th course in a session.
func PaletteColor(i int) string {
	if i < 0 {
		i = 0
	}
	return coursePalette[i%len(coursePalette)]
}

// DocumentRef points at the extracted text of one uploaded document.
type DocumentRef struct {
	ID        string  `json:"id"`
	CourseID  string  `json:"course_id"`
	Kind      DocKind `json:"kind" enum:"syllabus,exam_overview,textbook"`
	Name      string  `json:"name,omitempty"`
	Text      string  `json:"-"`
	PageCount int     `json:"page_count,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

// Module is one syllabus module with its topics.
type Module struct {
	Name   string   `json:"name"`
	Topics []string `json:"topics"`
	Week   int      `json:"week,omitempty"`
}

// Assessment is a graded item found in the syllabus.
type Assessment struct {
	Type   string `json:"type"`
	Weight string `json:"weight,omitempty"`
	Date   string `json:"date,omitempty"`
}

// ModuleRecord is the Structure stage output. Immutable once produced;
// serves as the fallback topic source when the exam overview yields none.
type ModuleRecord struct {
	CourseName  string       `json:"course_name,omitempty"`
	CourseCode  string       `json:"course_code,omitempty"`
	Modules     []Module     `json:"modules"`
	Assessments []Assessment `json:"assessments,omitempty"`
}

// TopicRef is a topic with its exam importance.
type TopicRef struct {
	Name       string     `json:"name"`
	Importance Importance `json:"importance" enum:"high,medium,low"`
}

// ScopeRecord is the Scope stage output.
type ScopeRecord struct {
	ExamDate string     `json:"exam_date,omitempty"`
	Topics   []TopicRef `json:"topics"`
}

// Section is one textbook region the Locator matched to exam topics.
type Section struct {
	Chapter   string   `json:"chapter"`
	StartPage int      `json:"start_page"`
	EndPage   int      `json:"end_page"`
	Covers    []string `json:"covers_topics,omitempty"`
}

// LocatorRecord is the Locator stage output.
type LocatorRecord struct {
	Sections []Section `json:"relevant_sections"`
}

// Mapping assigns one topic a study resource and an hour estimate.
type Mapping struct {
	Topic          string  `json:"topic"`
	Resource       string  `json:"resource"`
	EstimatedHours float64 `json:"estimated_hours"`
}

// MappingRecord is the Mapper stage output: one mapping per effective topic.
type MappingRecord struct {
	Mappings []Mapping `json:"mappings"`
}

// Constraints are the user's scheduling limits.
type Constraints struct {
	WeekdayHours    float64       `json:"weekdayHours,omitempty"`
	WeekendHours    float64       `json:"weekendHours,omitempty"`
	NoStudyDates    []string      `json:"noStudyDates,omitempty"`
	ReviewFrequency ReviewCadence `json:"reviewFrequency,omitempty" enum:"daily,every_2_days,weekly"`
}

// TaskNotes holds the four fixed note sections attached to every task.
type TaskNotes struct {
	Focus    string `json:"focus"`
	Practice string `json:"practice"`
	Memorize string `json:"memorize"`
	SelfTest string `json:"self_test"`
}

// Render flattens the sections into the single pipe-separated string used
// on the wire and in exports.
func (n TaskNotes) Render() string {
	return "Focus: " + n.Focus + " | Practice: " + n.Practice +
		" | Memorize: " + n.Memorize + " | Self-Test: " + n.SelfTest
}

// StudyTask is one scheduled block of study. Identity within a plan is
// (CourseID, Topic, Kind, Date).
type StudyTask struct {
	Date          string   `json:"date" format:"date"`
	CourseID      string   `json:"course_id"`
	Course        string   `json:"course"`
	CourseColor   string   `json:"courseColor,omitempty"`
	Topic         string   `json:"topic"`
	Kind          TaskKind `json:"task_type" enum:"learn,practice,review"`
	DurationHours float64  `json:"duration_hours"`
	Resources     string   `json:"resources,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	Completed     bool     `json:"completed,omitempty"`
	IsReview      bool     `json:"is_review,omitempty"`
}

// ProgressEvent is one entry in a run's progress log.
type ProgressEvent struct {
	ID        int64       `json:"-"`
	Agent     string      `json:"agent"`
	Message   string      `json:"message"`
	Status    EventStatus `json:"status" enum:"loading,success,error"`
	Timestamp string      `json:"timestamp"`
	Done      bool        `json:"_done,omitempty"`
}

// Session groups the courses, documents and runs of one user workspace.
type Session struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Run is one pipeline execution for a session.
type Run struct {
	ID         string   `json:"id"`
	SessionID  string   `json:"session_id"`
	Status     RunState `json:"status" enum:"running,done,failed"`
	Error      string   `json:"error,omitempty"`
	StartedAt  string   `json:"started_at" format:"date-time"`
	FinishedAt string   `json:"finished_at,omitempty" format:"date-time"`
}

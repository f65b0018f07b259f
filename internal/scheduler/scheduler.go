package scheduler

import (
	"errors"
	"time"

	"prepx/internal/domain"
)

// CourseInput is one course's aggregated pipeline output.
type CourseInput struct {
	ID       string
	Code     string
	Color    string
	ExamDate string // "YYYY-MM-DD"; empty means unknown
	Topics   []domain.TopicRef
	Mappings []domain.Mapping
}

// Input is a complete scheduling request. Solving is deterministic:
// identical inputs always produce the identical plan.
type Input struct {
	Today       time.Time
	Courses     []CourseInput
	Constraints domain.Constraints
}

// Dropped records a topic removed because it could not fit before its
// course's exam date.
type Dropped struct {
	CourseID   string
	Topic      string
	Importance domain.Importance
}

// Result is a solved plan.
type Result struct {
	Tasks   []domain.StudyTask
	Dropped []Dropped
}

var (
	// ErrNoCourses indicates an empty scheduling request.
	ErrNoCourses = errors.New("no courses to schedule")

	// ErrNoTopics indicates no course contributed any topics.
	ErrNoTopics = errors.New("no topics to schedule")

	// ErrNoExamDates indicates no course has a usable exam date.
	ErrNoExamDates = errors.New("no course has a usable exam date")
)

const (
	// Rest day spacing: after this many consecutive study days a
	// task-free day is inserted, budget permitting.
	restAfterDays = 5

	reviewHours = 0.5
)

// Solve packs every course's topics into the calendar. It first attempts
// a plan with rest days inserted; if that forces topic drops that a
// rest-free calendar avoids, the rest-free plan wins.
func Solve(in Input) (*Result, error) {
	if len(in.Courses) == 0 {
		return nil, ErrNoCourses
	}

	courses, err := resolveHorizons(in.Courses)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, c := range courses {
		total += len(c.Topics)
	}
	if total == 0 {
		return nil, ErrNoTopics
	}

	withRest := place(in.Today, courses, in.Constraints, true)
	if len(withRest.Dropped) == 0 {
		return withRest, nil
	}
	noRest := place(in.Today, courses, in.Constraints, false)
	if len(noRest.Dropped) < len(withRest.Dropped) {
		return noRest, nil
	}
	return withRest, nil
}

// resolveHorizons substitutes the farthest known exam date for courses
// without one, orders courses canonically, and fails when no date exists
// anywhere.
func resolveHorizons(courses []CourseInput) ([]CourseInput, error) {
	var farthest string
	for _, c := range courses {
		if c.ExamDate != "" && c.ExamDate > farthest {
			farthest = c.ExamDate
		}
	}
	if farthest == "" {
		return nil, ErrNoExamDates
	}
	out := make([]CourseInput, len(courses))
	copy(out, courses)
	for i := range out {
		if out[i].ExamDate == "" {
			out[i].ExamDate = farthest
		}
	}
	SortCourses(out)
	return out, nil
}

func parseDay(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func dayString(t time.Time) string {
	return t.Format("2006-01-02")
}

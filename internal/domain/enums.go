package domain

type DocKind string

const (
	DocSyllabus     DocKind = "syllabus"
	DocExamOverview DocKind = "exam_overview"
	DocTextbook     DocKind = "textbook"
)

// ValidDocKinds is the canonical set of accepted document kind strings.
var ValidDocKinds = map[string]bool{
	"syllabus": true, "exam_overview": true, "textbook": true,
}

type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// NormalizeImportance maps unknown or empty importance values to medium.
func NormalizeImportance(s string) Importance {
	switch Importance(s) {
	case ImportanceHigh, ImportanceMedium, ImportanceLow:
		return Importance(s)
	default:
		return ImportanceMedium
	}
}

type TaskKind string

const (
	TaskLearn    TaskKind = "learn"
	TaskPractice TaskKind = "practice"
	TaskReview   TaskKind = "review"
)

type ReviewCadence string

const (
	ReviewDaily  ReviewCadence = "daily"
	ReviewEvery2 ReviewCadence = "every_2_days"
	ReviewWeekly ReviewCadence = "weekly"
)

// IntervalDays returns the spacing between review sessions for a cadence.
// Unknown cadences fall back to every two days.
func (c ReviewCadence) IntervalDays() int {
	switch c {
	case ReviewDaily:
		return 1
	case ReviewWeekly:
		return 7
	default:
		return 2
	}
}

type EventStatus string

const (
	StatusLoading EventStatus = "loading"
	StatusSuccess EventStatus = "success"
	StatusError   EventStatus = "error"
)

type RunState string

const (
	RunRunning RunState = "running"
	RunDone    RunState = "done"
	RunFailed  RunState = "failed"
)

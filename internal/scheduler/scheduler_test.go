package scheduler_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepx/internal/domain"
	"prepx/internal/scheduler"
)

func day(offset int) time.Time {
	base := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC) // a Monday
	return base.AddDate(0, 0, offset)
}

func dateStr(offset int) string {
	return day(offset).Format("2006-01-02")
}

func defaultConstraints() domain.Constraints {
	return domain.Constraints{
		WeekdayHours:    3,
		WeekendHours:    6,
		ReviewFrequency: domain.ReviewEvery2,
	}
}

func topics(imp domain.Importance, names ...string) []domain.TopicRef {
	var out []domain.TopicRef
	for _, n := range names {
		out = append(out, domain.TopicRef{Name: n, Importance: imp})
	}
	return out
}

func mappings(hours float64, names ...string) []domain.Mapping {
	var out []domain.Mapping
	for _, n := range names {
		out = append(out, domain.Mapping{Topic: n, Resource: "Textbook Ch. 1", EstimatedHours: hours})
	}
	return out
}

// assertBudgets verifies no day's scheduled hours exceed its budget.
func assertBudgets(t *testing.T, tasks []domain.StudyTask, cons domain.Constraints) {
	t.Helper()
	perDay := map[string]float64{}
	for _, task := range tasks {
		perDay[task.Date] += task.DurationHours
	}
	for date, hours := range perDay {
		d, err := time.Parse("2006-01-02", date)
		require.NoError(t, err)
		budget := cons.WeekdayHours
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			budget = cons.WeekendHours
		}
		assert.LessOrEqualf(t, hours, budget+1e-9, "day %s over budget", date)
	}
}

func TestSolveErrors(t *testing.T) {
	_, err := scheduler.Solve(scheduler.Input{Today: day(0)})
	assert.ErrorIs(t, err, scheduler.ErrNoCourses)

	_, err = scheduler.Solve(scheduler.Input{Today: day(0), Courses: []scheduler.CourseInput{
		{ID: "c1", Code: "CS101", ExamDate: dateStr(10)},
	}})
	assert.ErrorIs(t, err, scheduler.ErrNoTopics)

	_, err = scheduler.Solve(scheduler.Input{Today: day(0), Courses: []scheduler.CourseInput{
		{ID: "c1", Code: "CS101", Topics: topics(domain.ImportanceHigh, "A")},
	}})
	assert.ErrorIs(t, err, scheduler.ErrNoExamDates)
}

func TestSolveTwoCoursesWithFallbackTopics(t *testing.T) {
	names := []string{"Recursion", "Trees", "Graphs"}
	in := scheduler.Input{
		Today:       day(0),
		Constraints: defaultConstraints(),
		Courses: []scheduler.CourseInput{
			{
				ID: "c1", Code: "CS201", ExamDate: dateStr(5),
				Topics:   topics(domain.ImportanceHigh, names...),
				Mappings: mappings(2, names...),
			},
			{
				ID: "c2", Code: "MA102", ExamDate: dateStr(20),
				// Overview was missing upstream: module-derived topics
				// arrive at medium importance with no mappings.
				Topics: topics(domain.ImportanceMedium, "Limits", "Derivatives"),
			},
		},
	}

	res, err := scheduler.Solve(in)
	require.NoError(t, err)
	assert.Empty(t, res.Dropped)
	assertBudgets(t, res.Tasks, in.Constraints)

	var c1Learn, c1Practice, c2Tasks int
	for _, task := range res.Tasks {
		switch task.CourseID {
		case "c1":
			assert.Less(t, task.Date, dateStr(5), "c1 work finishes before its exam")
			switch task.Kind {
			case domain.TaskLearn:
				c1Learn++
			case domain.TaskPractice:
				c1Practice++
			}
		case "c2":
			assert.Less(t, task.Date, dateStr(20))
			assert.Equal(t, "Textbook", task.Resources, "unmapped topics use the default resource")
			c2Tasks++
		}
	}
	assert.Equal(t, 3, c1Learn)
	assert.Equal(t, 3, c1Practice)
	assert.GreaterOrEqual(t, c2Tasks, 4, "both fallback topics get learn and practice blocks")
}

func TestSolveDropsLowImportanceUnderPressure(t *testing.T) {
	var names []string
	for i := 0; i < 10; i++ {
		names = append(names, fmt.Sprintf("Topic %d", i+1))
	}
	course := scheduler.CourseInput{
		ID: "c1", Code: "PH301", ExamDate: dateStr(7),
		Topics:   append(topics(domain.ImportanceHigh, names[:3]...), topics(domain.ImportanceLow, names[3:]...)...),
		Mappings: mappings(3, names...),
	}
	cons := domain.Constraints{WeekdayHours: 2, WeekendHours: 2, ReviewFrequency: domain.ReviewEvery2}

	res, err := scheduler.Solve(scheduler.Input{Today: day(0), Courses: []scheduler.CourseInput{course}, Constraints: cons})
	require.NoError(t, err)

	assert.NotEmpty(t, res.Dropped, "capacity forces drops")
	for _, d := range res.Dropped {
		assert.Equal(t, domain.ImportanceLow, d.Importance, "high-importance topics survive")
	}
	for _, task := range res.Tasks {
		assert.Less(t, task.Date, dateStr(7), "no work on or after exam day")
	}
	assertBudgets(t, res.Tasks, cons)
}

func TestSolveLearnBeforePracticePerTopic(t *testing.T) {
	in := scheduler.Input{
		Today:       day(0),
		Constraints: defaultConstraints(),
		Courses: []scheduler.CourseInput{{
			ID: "c1", Code: "CS101", ExamDate: dateStr(14),
			Topics:   topics(domain.ImportanceMedium, "A", "B", "C"),
			Mappings: mappings(4, "A", "B", "C"),
		}},
	}
	res, err := scheduler.Solve(in)
	require.NoError(t, err)

	learnDay := map[string]string{}
	for _, task := range res.Tasks {
		if task.Kind == domain.TaskLearn {
			learnDay[task.Topic] = task.Date
		}
	}
	for _, task := range res.Tasks {
		switch task.Kind {
		case domain.TaskPractice:
			assert.GreaterOrEqual(t, task.Date, learnDay[task.Topic], "practice never precedes learn")
		case domain.TaskReview:
			assert.Greater(t, task.Date, learnDay[task.Topic], "reviews come after the learn block")
			assert.InDelta(t, 0.5, task.DurationHours, 1e-9)
			assert.True(t, task.IsReview)
		}
	}
}

func TestSolveReviewCadence(t *testing.T) {
	course := func() scheduler.CourseInput {
		return scheduler.CourseInput{
			ID: "c1", Code: "CS101", ExamDate: dateStr(21),
			Topics:   topics(domain.ImportanceHigh, "Solo"),
			Mappings: mappings(2, "Solo"),
		}
	}
	count := func(cadence domain.ReviewCadence) int {
		cons := defaultConstraints()
		cons.ReviewFrequency = cadence
		res, err := scheduler.Solve(scheduler.Input{Today: day(0), Courses: []scheduler.CourseInput{course()}, Constraints: cons})
		require.NoError(t, err)
		n := 0
		for _, task := range res.Tasks {
			if task.Kind == domain.TaskReview {
				n++
			}
		}
		return n
	}

	daily := count(domain.ReviewDaily)
	weekly := count(domain.ReviewWeekly)
	assert.Greater(t, daily, weekly, "daily cadence yields more reviews than weekly")
	assert.LessOrEqual(t, weekly, 3)
}

func TestSolveBlockedDatesStayEmpty(t *testing.T) {
	cons := defaultConstraints()
	cons.NoStudyDates = []string{dateStr(1), dateStr(2)}
	in := scheduler.Input{
		Today:       day(0),
		Constraints: cons,
		Courses: []scheduler.CourseInput{{
			ID: "c1", Code: "CS101", ExamDate: dateStr(10),
			Topics:   topics(domain.ImportanceHigh, "A", "B"),
			Mappings: mappings(3, "A", "B"),
		}},
	}
	res, err := scheduler.Solve(in)
	require.NoError(t, err)
	for _, task := range res.Tasks {
		assert.NotContains(t, cons.NoStudyDates, task.Date)
	}
}

func TestSolveUnknownExamDateBorrowsFarthest(t *testing.T) {
	in := scheduler.Input{
		Today:       day(0),
		Constraints: defaultConstraints(),
		Courses: []scheduler.CourseInput{
			{ID: "c1", Code: "CS101", ExamDate: dateStr(12), Topics: topics(domain.ImportanceHigh, "A"), Mappings: mappings(2, "A")},
			{ID: "c2", Code: "MA102", ExamDate: "", Topics: topics(domain.ImportanceMedium, "B"), Mappings: mappings(2, "B")},
		},
	}
	res, err := scheduler.Solve(in)
	require.NoError(t, err)

	sawC2 := false
	for _, task := range res.Tasks {
		if task.CourseID == "c2" {
			sawC2 = true
			assert.Less(t, task.Date, dateStr(12), "dateless course schedules within the farthest known horizon")
		}
	}
	assert.True(t, sawC2)
}

func TestSolveDeterministic(t *testing.T) {
	build := func() scheduler.Input {
		return scheduler.Input{
			Today:       day(0),
			Constraints: defaultConstraints(),
			Courses: []scheduler.CourseInput{
				{ID: "c2", Code: "MA102", ExamDate: dateStr(9), Topics: topics(domain.ImportanceMedium, "X", "Y"), Mappings: mappings(2, "X", "Y")},
				{ID: "c1", Code: "CS101", ExamDate: dateStr(9), Topics: topics(domain.ImportanceHigh, "A", "B"), Mappings: mappings(2, "A", "B")},
			},
		}
	}
	first, err := scheduler.Solve(build())
	require.NoError(t, err)
	second, err := scheduler.Solve(build())
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical inputs produce the identical plan")
}

func TestSortCourses(t *testing.T) {
	courses := []scheduler.CourseInput{
		{ID: "b", Code: "ZZ", ExamDate: "2025-05-01"},
		{ID: "a", Code: "AA", ExamDate: "2025-05-01"},
		{ID: "c", Code: "MM", ExamDate: "2025-04-01"},
	}
	scheduler.SortCourses(courses)
	assert.Equal(t, "c", courses[0].ID, "earliest exam first")
	assert.Equal(t, "a", courses[1].ID, "code breaks date ties")
	assert.Equal(t, "b", courses[2].ID)
}

func TestRankTopicsStable(t *testing.T) {
	in := []domain.TopicRef{
		{Name: "low1", Importance: domain.ImportanceLow},
		{Name: "high1", Importance: domain.ImportanceHigh},
		{Name: "med1", Importance: domain.ImportanceMedium},
		{Name: "high2", Importance: domain.ImportanceHigh},
	}
	out := scheduler.RankTopics(in)
	assert.Equal(t, []string{"high1", "high2", "med1", "low1"}, []string{out[0].Name, out[1].Name, out[2].Name, out[3].Name})
	assert.Equal(t, "low1", in[0].Name, "input slice untouched")
}

package scheduler

import (
	"sort"
	"time"

	"prepx/internal/domain"
)

const hoursEpsilon = 1e-9

// calendar is the bounded day grid tasks are packed into.
type calendar struct {
	days      []time.Time
	remaining []float64
}

// buildCalendar lays out every candidate day from start (inclusive) to
// end (exclusive). Blocked dates get zero capacity; with rest enabled,
// every day after a run of restAfterDays consecutive study-capable days
// is forced task-free.
func buildCalendar(start, end time.Time, cons domain.Constraints, withRest bool) *calendar {
	blocked := make(map[string]bool, len(cons.NoStudyDates))
	for _, d := range cons.NoStudyDates {
		blocked[d] = true
	}

	cal := &calendar{}
	run := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		capacity := cons.WeekdayHours
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			capacity = cons.WeekendHours
		}
		if blocked[dayString(d)] {
			capacity = 0
			run = 0
		} else if withRest && run >= restAfterDays {
			capacity = 0
			run = 0
		} else {
			run++
		}
		cal.days = append(cal.days, d)
		cal.remaining = append(cal.remaining, capacity)
	}
	return cal
}

// placeFrom finds the earliest day index >= from, strictly before
// deadline, with enough remaining capacity, reserves the hours and
// returns the index. Returns -1 when nothing fits.
func (c *calendar) placeFrom(from int, deadline time.Time, hours float64) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(c.days); i++ {
		if !c.days[i].Before(deadline) {
			return -1
		}
		if c.remaining[i]+hoursEpsilon >= hours {
			c.remaining[i] -= hours
			return i
		}
	}
	return -1
}

func (c *calendar) release(i int, hours float64) {
	if i >= 0 && i < len(c.remaining) {
		c.remaining[i] += hours
	}
}

// indexOf returns the index of the first day not before t.
func (c *calendar) indexOf(t time.Time) int {
	for i, d := range c.days {
		if !d.Before(t) {
			return i
		}
	}
	return len(c.days)
}

// place runs one full greedy packing pass over all courses.
func place(today time.Time, courses []CourseInput, cons domain.Constraints, withRest bool) *Result {
	start := today
	var horizon time.Time
	for _, c := range courses {
		if exam, ok := parseDay(c.ExamDate); ok && exam.After(horizon) {
			horizon = exam
		}
	}
	cal := buildCalendar(start, horizon, cons, withRest)
	interval := cons.ReviewFrequency.IntervalDays()

	res := &Result{}
	for _, course := range courses {
		exam, ok := parseDay(course.ExamDate)
		if !ok {
			continue
		}
		for _, topic := range RankTopics(course.Topics) {
			plan := buildTopicPlan(topic, course.Mappings)

			learnIdx := cal.placeFrom(0, exam, plan.LearnHours)
			if learnIdx == -1 {
				res.Dropped = append(res.Dropped, Dropped{CourseID: course.ID, Topic: topic.Name, Importance: topic.Importance})
				continue
			}
			practiceIdx := cal.placeFrom(learnIdx, exam, plan.PracticeHours)
			if practiceIdx == -1 {
				cal.release(learnIdx, plan.LearnHours)
				res.Dropped = append(res.Dropped, Dropped{CourseID: course.ID, Topic: topic.Name, Importance: topic.Importance})
				continue
			}

			res.Tasks = append(res.Tasks,
				newTask(course, plan, domain.TaskLearn, cal.days[learnIdx], plan.LearnHours),
				newTask(course, plan, domain.TaskPractice, cal.days[practiceIdx], plan.PracticeHours),
			)

			// Reviews between practice and the exam, spaced by cadence.
			// A review that finds no capacity is skipped, not dropped:
			// it is a spacing aid, not required work.
			seen := map[string]bool{}
			for want := cal.days[practiceIdx].AddDate(0, 0, interval); want.Before(exam); want = want.AddDate(0, 0, interval) {
				idx := cal.placeFrom(cal.indexOf(want), exam, reviewHours)
				if idx == -1 {
					break
				}
				date := dayString(cal.days[idx])
				if seen[date] {
					cal.release(idx, reviewHours)
					continue
				}
				seen[date] = true
				res.Tasks = append(res.Tasks, newTask(course, plan, domain.TaskReview, cal.days[idx], reviewHours))
			}
		}
	}

	// Chronological order; stable so same-day tasks keep the
	// course-then-importance placement order.
	sort.SliceStable(res.Tasks, func(i, j int) bool {
		return res.Tasks[i].Date < res.Tasks[j].Date
	})
	return res
}

func newTask(course CourseInput, plan topicPlan, kind domain.TaskKind, day time.Time, hours float64) domain.StudyTask {
	return domain.StudyTask{
		Date:          dayString(day),
		CourseID:      course.ID,
		Course:        course.Code,
		CourseColor:   course.Color,
		Topic:         plan.Topic.Name,
		Kind:          kind,
		DurationHours: hours,
		Resources:     plan.Resource,
		Notes:         buildNotes(plan.Topic.Name, plan.Resource, kind).Render(),
		IsReview:      kind == domain.TaskReview,
	}
}

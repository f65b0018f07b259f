package scheduler

import (
	"sort"

	"prepx/internal/domain"
)

// ImportancePriority returns a sort priority (lower = more important).
func ImportancePriority(imp domain.Importance) int {
	switch imp {
	case domain.ImportanceHigh:
		return 0
	case domain.ImportanceMedium:
		return 1
	default:
		return 2
	}
}

// SortCourses orders courses by the deterministic canonical rules:
// 1. Exam date: earliest first
// 2. Course code: lexical ascending
// 3. Course ID: lexical ascending
func SortCourses(courses []CourseInput) {
	sort.SliceStable(courses, func(i, j int) bool {
		a, b := courses[i], courses[j]
		if a.ExamDate != b.ExamDate {
			return a.ExamDate < b.ExamDate
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.ID < b.ID
	})
}

// RankTopics orders a course's topics by importance (high > medium > low),
// ties broken by original position.
func RankTopics(topics []domain.TopicRef) []domain.TopicRef {
	out := make([]domain.TopicRef, len(topics))
	copy(out, topics)
	sort.SliceStable(out, func(i, j int) bool {
		return ImportancePriority(out[i].Importance) < ImportancePriority(out[j].Importance)
	})
	return out
}

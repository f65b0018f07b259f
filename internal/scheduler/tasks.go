package scheduler

import (
	"math"
	"strings"

	"prepx/internal/domain"
)

// topicPlan is the per-topic work derived from its hour estimate before
// calendar placement.
type topicPlan struct {
	Topic         domain.TopicRef
	Resource      string
	LearnHours    float64
	PracticeHours float64
}

// buildTopicPlan splits a topic's estimated hours into a learn block and
// a practice block, rounded to quarter hours. Topics without a mapping
// get the default estimate.
func buildTopicPlan(t domain.TopicRef, mappings []domain.Mapping) topicPlan {
	resource := "Textbook"
	est := 2.0
	for _, m := range mappings {
		if strings.EqualFold(m.Topic, t.Name) {
			if m.Resource != "" {
				resource = m.Resource
			}
			if m.EstimatedHours > 0 {
				est = m.EstimatedHours
			}
			break
		}
	}
	learn := roundQuarter(0.6 * est)
	if learn < 0.5 {
		learn = 0.5
	}
	practice := roundQuarter(est - learn)
	if practice < 0.5 {
		practice = 0.5
	}
	return topicPlan{Topic: t, Resource: resource, LearnHours: learn, PracticeHours: practice}
}

func roundQuarter(x float64) float64 {
	return math.Round(x*4) / 4
}

// buildNotes derives the four fixed note sections from the topic and its
// resource. Wording varies by task kind so a review block reads like a
// review block.
func buildNotes(topic, resource string, kind domain.TaskKind) domain.TaskNotes {
	switch kind {
	case domain.TaskLearn:
		return domain.TaskNotes{
			Focus:    "Understand the core concepts of " + topic + " using " + resource,
			Practice: "Work the introductory examples for " + topic + " as you read",
			Memorize: "Key definitions and formulas introduced in " + resource,
			SelfTest: "Close the book and outline " + topic + " from memory",
		}
	case domain.TaskPractice:
		return domain.TaskNotes{
			Focus:    "Apply " + topic + " to graded-style problems",
			Practice: "Solve end-of-section exercises from " + resource + " without looking at worked solutions",
			Memorize: "Problem patterns and common pitfalls in " + topic,
			SelfTest: "Time yourself on two unseen problems covering " + topic,
		}
	default:
		return domain.TaskNotes{
			Focus:    "Refresh the main results of " + topic,
			Practice: "Redo one previously missed exercise on " + topic,
			Memorize: "Re-check the formulas and definitions for " + topic,
			SelfTest: "Explain " + topic + " aloud in under five minutes",
		}
	}
}

package stage

import (
	"strings"

	"prepx/internal/domain"
)

// Resolve decides which topic set flows downstream. If the exam overview
// yielded any topics they are used verbatim; otherwise one topic is
// derived per module-topic pair at medium importance, and a module with
// no topics of its own contributes its name instead. Total and pure:
// always returns a (possibly empty) set, never fails.
func Resolve(scope domain.ScopeRecord, modules domain.ModuleRecord) []domain.TopicRef {
	if len(scope.Topics) > 0 {
		return dedupTopics(scope.Topics)
	}
	var out []domain.TopicRef
	for _, m := range modules.Modules {
		if len(m.Topics) == 0 {
			if name := strings.TrimSpace(m.Name); name != "" {
				out = append(out, domain.TopicRef{Name: name, Importance: domain.ImportanceMedium})
			}
			continue
		}
		for _, t := range m.Topics {
			if name := strings.TrimSpace(t); name != "" {
				out = append(out, domain.TopicRef{Name: name, Importance: domain.ImportanceMedium})
			}
		}
	}
	return dedupTopics(out)
}

// dedupTopics drops repeated names case-insensitively, keeping the
// first occurrence. Topic names identify tasks downstream, so the set
// must be free of duplicates.
func dedupTopics(topics []domain.TopicRef) []domain.TopicRef {
	seen := make(map[string]bool, len(topics))
	out := make([]domain.TopicRef, 0, len(topics))
	for _, t := range topics {
		key := strings.ToLower(strings.TrimSpace(t.Name))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// TopicNames projects a topic set to its names, preserving order.
func TopicNames(topics []domain.TopicRef) []string {
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		names = append(names, t.Name)
	}
	return names
}

package stage

import (
	"context"
	"strings"

	"prepx/internal/domain"
	"prepx/internal/extract"
)

// Scope runs the exam overview analysis stage: overview text in, a
// ScopeRecord out. When no overview document exists the stage must not
// be called at all; the orchestrator synthesizes an empty record instead.
func Scope(ctx context.Context, env Env, overviewText string) (domain.ScopeRecord, error) {
	raw, err := env.call(ctx, "scope", scopeSystemPrompt, overviewText)
	if err != nil {
		return domain.ScopeRecord{}, err
	}
	rec, err := extract.ExtractJSON[domain.ScopeRecord](raw, nil)
	if err != nil {
		return domain.ScopeRecord{}, err
	}
	return capScopeRecord(rec, env.Caps), nil
}

func capScopeRecord(rec domain.ScopeRecord, caps Caps) domain.ScopeRecord {
	max := caps.MaxScopeTopics
	if max <= 0 {
		max = DefaultCaps().MaxScopeTopics
	}
	rec.ExamDate = cleanExamDate(rec.ExamDate)
	out := rec.Topics[:0]
	seen := map[string]bool{}
	for _, t := range rec.Topics {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			continue
		}
		// Topic names are a set; a repeated name keeps its first entry.
		key := strings.ToLower(t.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		t.Importance = domain.NormalizeImportance(string(t.Importance))
		out = append(out, t)
	}
	if len(out) > max {
		out = out[:max]
	}
	rec.Topics = out
	return rec
}

// cleanExamDate maps the extractor's "unknown" spellings to the empty
// string so date resolution can treat them uniformly.
func cleanExamDate(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown", "n/a", "none":
		return ""
	}
	return strings.TrimSpace(s)
}

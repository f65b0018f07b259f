package stage

import (
	"context"
	"strings"

	"prepx/internal/domain"
	"prepx/internal/extract"
)

// Structure runs the syllabus analysis stage: full syllabus text in, a
// ModuleRecord out. Module and per-module topic counts are hard-capped
// by truncation.
func Structure(ctx context.Context, env Env, syllabusText string) (domain.ModuleRecord, error) {
	raw, err := env.call(ctx, "structure", structureSystemPrompt, syllabusText)
	if err != nil {
		return domain.ModuleRecord{}, err
	}
	rec, err := extract.ExtractJSON[domain.ModuleRecord](raw, nil)
	if err != nil {
		return domain.ModuleRecord{}, err
	}
	return capModuleRecord(rec, env.Caps), nil
}

func capModuleRecord(rec domain.ModuleRecord, caps Caps) domain.ModuleRecord {
	maxModules := caps.MaxModules
	if maxModules <= 0 {
		maxModules = DefaultCaps().MaxModules
	}
	maxTopics := caps.MaxModuleTopics
	if maxTopics <= 0 {
		maxTopics = DefaultCaps().MaxModuleTopics
	}
	if len(rec.Modules) > maxModules {
		rec.Modules = rec.Modules[:maxModules]
	}
	out := rec.Modules[:0]
	for _, m := range rec.Modules {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" && len(m.Topics) == 0 {
			continue
		}
		if len(m.Topics) > maxTopics {
			m.Topics = m.Topics[:maxTopics]
		}
		out = append(out, m)
	}
	rec.Modules = out
	return rec
}

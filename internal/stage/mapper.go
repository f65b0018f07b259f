package stage

import (
	"context"
	"encoding/json"
	"fmt"

	"prepx/internal/domain"
	"prepx/internal/extract"
)

// defaultEstimateHours is assigned when no textbook evidence is available
// for a topic.
const defaultEstimateHours = 2.0

// Mapper runs the resource-mapping stage: sampled textbook windows plus
// the effective topic set in, a MappingRecord out. When the locator found
// no sections the mapping is synthesized without an extractor call, one
// default entry per topic.
func Mapper(ctx context.Context, env Env, textbookText string, locator domain.LocatorRecord, topics []string) (domain.MappingRecord, error) {
	if len(locator.Sections) == 0 {
		return DefaultMapping(topics), nil
	}

	// Sample only the first few pages of each section; the full ranges
	// were already pre-fetched into textbookText so no extra retrieval
	// round-trips happen here.
	sample := env.Caps.SamplePages
	if sample <= 0 {
		sample = DefaultCaps().SamplePages
	}
	var ranges []PageRange
	for _, s := range locator.Sections {
		start := s.StartPage
		if start < 1 {
			start = 1
		}
		end := start + sample
		if s.EndPage > 0 && s.EndPage+1 < end {
			end = s.EndPage + 1
		}
		ranges = append(ranges, PageRange{Start: start, End: end})
	}

	maxChars := env.Caps.MaxMapperChars
	if maxChars <= 0 {
		maxChars = DefaultCaps().MaxMapperChars
	}
	relevant := ClampChars(PageWindows(textbookText, ranges), maxChars)

	names, _ := json.Marshal(topics)
	user := fmt.Sprintf("Map exam topics to textbook resources.\n\nTOPICS: %s\n\nTEXT:\n%s", names, relevant)

	raw, err := env.call(ctx, "mapper", mapperSystemPrompt, user)
	if err != nil {
		return domain.MappingRecord{}, err
	}
	mappings, err := extract.ExtractJSON[[]domain.Mapping](raw, validateMappings)
	if err != nil {
		return domain.MappingRecord{}, err
	}
	return domain.MappingRecord{Mappings: mappings}, nil
}

// DefaultMapping yields one placeholder mapping per topic.
func DefaultMapping(topics []string) domain.MappingRecord {
	var out []domain.Mapping
	for _, t := range topics {
		out = append(out, domain.Mapping{
			Topic:          t,
			Resource:       "Unknown",
			EstimatedHours: defaultEstimateHours,
		})
	}
	return domain.MappingRecord{Mappings: out}
}

func validateMappings(ms []domain.Mapping) error {
	for i, m := range ms {
		if m.Topic == "" {
			return fmt.Errorf("mapping %d has empty topic", i)
		}
		if m.EstimatedHours < 0 {
			return fmt.Errorf("mapping %q has negative hours", m.Topic)
		}
	}
	return nil
}

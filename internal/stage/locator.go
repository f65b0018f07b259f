package stage

import (
	"context"
	"encoding/json"
	"fmt"

	"prepx/internal/domain"
	"prepx/internal/extract"
)

// Locator runs the table-of-contents scan: the first N pages of the
// textbook plus the effective topic names in, a LocatorRecord out. Never
// called when the course has no textbook document.
func Locator(ctx context.Context, env Env, textbookText string, topics []string) (domain.LocatorRecord, error) {
	tocPages := env.Caps.TocPages
	if tocPages <= 0 {
		tocPages = DefaultCaps().TocPages
	}
	totalPages := CountPages(textbookText)
	tocText := PageWindow(textbookText, 1, tocPages+1)
	if tocText == "" {
		// Unmarked text: fall back to a rough head slice so the scan
		// still has something to work with.
		tocText = ClampChars(textbookText, 12000)
	}

	names, _ := json.Marshal(topics)
	user := fmt.Sprintf("Table of contents of a %d-page textbook.\n\nEXAM TOPICS: %s\n\nTOC:\n%s",
		totalPages, names, tocText)

	raw, err := env.call(ctx, "locator", locatorSystemPrompt, user)
	if err != nil {
		return domain.LocatorRecord{}, err
	}
	rec, err := extract.ExtractJSON[domain.LocatorRecord](raw, validateLocator)
	if err != nil {
		return domain.LocatorRecord{}, err
	}
	return rec, nil
}

func validateLocator(rec domain.LocatorRecord) error {
	for _, s := range rec.Sections {
		if s.StartPage < 0 || (s.EndPage != 0 && s.EndPage < s.StartPage) {
			return fmt.Errorf("section %q has inverted page range %d-%d", s.Chapter, s.StartPage, s.EndPage)
		}
	}
	return nil
}

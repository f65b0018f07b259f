package stage_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepx/internal/domain"
	"prepx/internal/extract"
	"prepx/internal/stage"
)

// fakeClient scripts one raw response per stage name and records every
// request it sees.
type fakeClient struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	requests  []extract.Request
}

func (f *fakeClient) Complete(_ context.Context, req extract.Request) (*extract.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err, ok := f.errs[req.Stage]; ok {
		return nil, err
	}
	raw, ok := f.responses[req.Stage]
	if !ok {
		return nil, fmt.Errorf("unexpected stage %q", req.Stage)
	}
	return &extract.Response{Text: raw, Model: "fake"}, nil
}

func (f *fakeClient) Available(context.Context) bool { return true }

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newEnv(client extract.Client) stage.Env {
	return stage.Env{Client: client, Caps: stage.DefaultCaps()}
}

func TestStructureCapsModulesAndTopics(t *testing.T) {
	rec := domain.ModuleRecord{CourseName: "Algorithms"}
	for i := 0; i < 12; i++ {
		m := domain.Module{Name: fmt.Sprintf("Module %d", i+1)}
		for j := 0; j < 5; j++ {
			m.Topics = append(m.Topics, fmt.Sprintf("Topic %d.%d", i+1, j+1))
		}
		rec.Modules = append(rec.Modules, m)
	}
	raw, _ := json.Marshal(rec)
	client := &fakeClient{responses: map[string]string{"structure": string(raw)}}

	out, err := stage.Structure(context.Background(), newEnv(client), "syllabus text")
	require.NoError(t, err)
	assert.Len(t, out.Modules, 10, "module cap")
	for _, m := range out.Modules {
		assert.LessOrEqual(t, len(m.Topics), 3, "per-module topic cap")
	}
}

func TestStructureDropsEmptyModules(t *testing.T) {
	raw := `{"modules":[{"name":"  ","topics":[]},{"name":"Real","topics":["a"]}]}`
	client := &fakeClient{responses: map[string]string{"structure": raw}}
	out, err := stage.Structure(context.Background(), newEnv(client), "syllabus")
	require.NoError(t, err)
	require.Len(t, out.Modules, 1)
	assert.Equal(t, "Real", out.Modules[0].Name)
}

func TestStructurePropagatesExtractorError(t *testing.T) {
	client := &fakeClient{errs: map[string]error{"structure": extract.ErrUnavailable}}
	_, err := stage.Structure(context.Background(), newEnv(client), "syllabus")
	require.ErrorIs(t, err, extract.ErrUnavailable)
}

func TestScopeNormalizesImportanceAndDate(t *testing.T) {
	raw := `{"exam_date":"Unknown","topics":[
		{"name":"Recursion","importance":"HIGH"},
		{"name":" Graphs ","importance":"critical"},
		{"name":"","importance":"low"}]}`
	client := &fakeClient{responses: map[string]string{"scope": raw}}

	out, err := stage.Scope(context.Background(), newEnv(client), "overview")
	require.NoError(t, err)
	assert.Empty(t, out.ExamDate, `"unknown" maps to empty`)
	require.Len(t, out.Topics, 2, "empty names removed")
	assert.Equal(t, domain.ImportanceHigh, out.Topics[0].Importance)
	assert.Equal(t, "Graphs", out.Topics[1].Name)
	assert.Equal(t, domain.ImportanceMedium, out.Topics[1].Importance, "unrecognized importance defaults to medium")
}

func TestScopeCapsTopics(t *testing.T) {
	rec := domain.ScopeRecord{}
	for i := 0; i < 20; i++ {
		rec.Topics = append(rec.Topics, domain.TopicRef{Name: fmt.Sprintf("T%d", i), Importance: domain.ImportanceLow})
	}
	raw, _ := json.Marshal(rec)
	client := &fakeClient{responses: map[string]string{"scope": string(raw)}}

	out, err := stage.Scope(context.Background(), newEnv(client), "overview")
	require.NoError(t, err)
	assert.Len(t, out.Topics, 15)
}

func TestScopeDropsDuplicateTopicNames(t *testing.T) {
	raw := `{"exam_date":"2025-03-10","topics":[
		{"name":"Quicksort","importance":"high"},
		{"name":"Graphs","importance":"low"},
		{"name":"Quicksort","importance":"low"},
		{"name":" quicksort ","importance":"medium"}]}`
	client := &fakeClient{responses: map[string]string{"scope": raw}}

	out, err := stage.Scope(context.Background(), newEnv(client), "overview")
	require.NoError(t, err)
	require.Len(t, out.Topics, 2, "repeated names collapse case-insensitively")
	assert.Equal(t, "Quicksort", out.Topics[0].Name)
	assert.Equal(t, domain.ImportanceHigh, out.Topics[0].Importance, "first occurrence wins")
	assert.Equal(t, "Graphs", out.Topics[1].Name)
}

func markedPages(n int) string {
	var b strings.Builder
	for p := 1; p <= n; p++ {
		fmt.Fprintf(&b, "[Page %d]\ncontent of page %d\n", p, p)
	}
	return b.String()
}

func TestLocatorSendsTocWindowOnly(t *testing.T) {
	raw := `{"relevant_sections":[{"chapter":"Ch 3","start_page":40,"end_page":60,"covers_topics":["Trees"]}]}`
	client := &fakeClient{responses: map[string]string{"locator": raw}}
	text := markedPages(200)

	out, err := stage.Locator(context.Background(), newEnv(client), text, []string{"Trees"})
	require.NoError(t, err)
	require.Len(t, out.Sections, 1)
	assert.Equal(t, 40, out.Sections[0].StartPage)

	require.Len(t, client.requests, 1)
	user := client.requests[0].UserPrompt
	assert.Contains(t, user, "200-page textbook")
	assert.Contains(t, user, "content of page 15")
	assert.NotContains(t, user, "content of page 16", "only the TOC window is sent")
}

func TestLocatorRejectsInvertedRange(t *testing.T) {
	raw := `{"relevant_sections":[{"chapter":"Ch 1","start_page":50,"end_page":10}]}`
	client := &fakeClient{responses: map[string]string{"locator": raw}}
	_, err := stage.Locator(context.Background(), newEnv(client), markedPages(60), []string{"x"})
	require.ErrorIs(t, err, extract.ErrInvalidOutput)
}

func TestMapperNoSectionsSkipsExtractor(t *testing.T) {
	client := &fakeClient{}
	topics := []string{"Trees", "Heaps"}

	out, err := stage.Mapper(context.Background(), newEnv(client), markedPages(50), domain.LocatorRecord{}, topics)
	require.NoError(t, err)
	assert.Zero(t, client.callCount(), "default mapping must not call the extractor")
	require.Len(t, out.Mappings, 2)
	for i, m := range out.Mappings {
		assert.Equal(t, topics[i], m.Topic)
		assert.Equal(t, "Unknown", m.Resource)
		assert.InDelta(t, 2.0, m.EstimatedHours, 1e-9)
	}
}

func TestMapperSamplesSectionHeads(t *testing.T) {
	raw := `[{"topic":"Trees","resource":"Ch 3, pp. 40-60","estimated_hours":4}]`
	client := &fakeClient{responses: map[string]string{"mapper": raw}}
	locator := domain.LocatorRecord{Sections: []domain.Section{
		{Chapter: "Ch 3", StartPage: 40, EndPage: 60},
	}}

	out, err := stage.Mapper(context.Background(), newEnv(client), markedPages(100), locator, []string{"Trees"})
	require.NoError(t, err)
	require.Len(t, out.Mappings, 1)
	assert.InDelta(t, 4.0, out.Mappings[0].EstimatedHours, 1e-9)

	user := client.requests[0].UserPrompt
	assert.Contains(t, user, "content of page 40")
	assert.Contains(t, user, "content of page 42")
	assert.NotContains(t, user, "content of page 43", "only the first sample pages of a section are sent")
}

func TestMapperRejectsNegativeHours(t *testing.T) {
	raw := `[{"topic":"Trees","resource":"Ch 3","estimated_hours":-1}]`
	client := &fakeClient{responses: map[string]string{"mapper": raw}}
	locator := domain.LocatorRecord{Sections: []domain.Section{{Chapter: "Ch 3", StartPage: 1, EndPage: 5}}}
	_, err := stage.Mapper(context.Background(), newEnv(client), markedPages(10), locator, []string{"Trees"})
	require.ErrorIs(t, err, extract.ErrInvalidOutput)
}

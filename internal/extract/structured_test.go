package extract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleTopic struct {
	Name       string  `json:"name"`
	Importance string  `json:"importance"`
	Hours      float64 `json:"hours,omitempty"`
}

type sampleRecord struct {
	ExamDate string        `json:"exam_date"`
	Topics   []sampleTopic `json:"topics"`
}

func TestExtractJSONPlainObject(t *testing.T) {
	raw := `{"exam_date":"2025-03-14","topics":[{"name":"Recursion","importance":"high"}]}`
	rec, err := ExtractJSON[sampleRecord](raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", rec.ExamDate)
	require.Len(t, rec.Topics, 1)
	assert.Equal(t, "Recursion", rec.Topics[0].Name)
}

func TestExtractJSONCodeFences(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"exam_date\":\"2025-03-14\",\"topics\":[]}\n```\nHope that helps!"
	rec, err := ExtractJSON[sampleRecord](raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", rec.ExamDate)
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	raw := `Sure! The extracted topics are {"exam_date":"","topics":[{"name":"Graphs","importance":"medium"}]} as requested.`
	rec, err := ExtractJSON[sampleRecord](raw, nil)
	require.NoError(t, err)
	require.Len(t, rec.Topics, 1)
	assert.Equal(t, "Graphs", rec.Topics[0].Name)
}

func TestExtractJSONTopLevelArray(t *testing.T) {
	raw := "```\n[{\"name\":\"Sorting\",\"importance\":\"low\"},{\"name\":\"Hashing\",\"importance\":\"high\"}]\n```"
	topics, err := ExtractJSON[[]sampleTopic](raw, nil)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "Hashing", topics[1].Name)
}

func TestExtractJSONComments(t *testing.T) {
	raw := `{
		// the detected date
		"exam_date": "2025-06-01", /* ISO format */
		"topics": []
	}`
	rec, err := ExtractJSON[sampleRecord](raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", rec.ExamDate)
}

func TestExtractJSONLeadingDecimal(t *testing.T) {
	raw := `[{"name":"Limits","importance":"high","hours":.5},{"name":"Series","importance":"low","hours":-.25}]`
	topics, err := ExtractJSON[[]sampleTopic](raw, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, topics[0].Hours, 1e-9)
	assert.InDelta(t, -0.25, topics[1].Hours, 1e-9)
}

func TestExtractJSONStringsUntouched(t *testing.T) {
	raw := `{"exam_date":"see http://x/a//b and {braces}","topics":[{"name":"a // not a comment","importance":"low"}]}`
	rec, err := ExtractJSON[sampleRecord](raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "see http://x/a//b and {braces}", rec.ExamDate)
	assert.Equal(t, "a // not a comment", rec.Topics[0].Name)
}

func TestExtractJSONNoValue(t *testing.T) {
	_, err := ExtractJSON[sampleRecord]("the model refused to answer", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidOutput))
}

func TestExtractJSONUnbalanced(t *testing.T) {
	_, err := ExtractJSON[sampleRecord](`{"exam_date":"x","topics":[`, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidOutput))
}

func TestExtractJSONValidatorRejects(t *testing.T) {
	validator := func(r sampleRecord) error {
		if len(r.Topics) == 0 {
			return fmt.Errorf("no topics")
		}
		return nil
	}
	_, err := ExtractJSON[sampleRecord](`{"exam_date":"","topics":[]}`, validator)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidOutput))
	assert.Contains(t, err.Error(), "no topics")
}

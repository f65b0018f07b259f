package stage_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"prepx/internal/stage"
)

const sampleText = "[Page 1]\nintro\n[Page 2]\nmiddle\n[Page 3]\nend\n"

func TestPageWindow(t *testing.T) {
	assert.Equal(t, "[Page 2]\nmiddle", stage.PageWindow(sampleText, 2, 3))
	assert.Contains(t, stage.PageWindow(sampleText, 1, 3), "intro")
	assert.NotContains(t, stage.PageWindow(sampleText, 1, 3), "end")
}

func TestPageWindowClampsBounds(t *testing.T) {
	// Start below 1 and end past the last page both clamp.
	out := stage.PageWindow(sampleText, -5, 99)
	assert.Contains(t, out, "intro")
	assert.Contains(t, out, "end")
	assert.Equal(t, "", stage.PageWindow(sampleText, 3, 3), "inverted or empty range")
}

func TestPageWindows(t *testing.T) {
	out := stage.PageWindows(sampleText, []stage.PageRange{
		{Start: 1, End: 2},
		{Start: 3, End: 4},
	})
	assert.Contains(t, out, "intro")
	assert.Contains(t, out, "end")
	assert.NotContains(t, out, "middle")
}

func TestCountPages(t *testing.T) {
	assert.Equal(t, 3, stage.CountPages(sampleText))
	assert.Equal(t, 0, stage.CountPages("no markers here"))
}

func TestClampChars(t *testing.T) {
	long := strings.Repeat("x", 100)
	out := stage.ClampChars(long, 10)
	assert.True(t, strings.HasPrefix(out, "xxxxxxxxxx"))
	assert.True(t, strings.HasSuffix(out, "[...truncated...]"))
	assert.Equal(t, long, stage.ClampChars(long, 100), "no marker when nothing was cut")
	assert.Equal(t, long, stage.ClampChars(long, 0), "non-positive max disables clamping")
}

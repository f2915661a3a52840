package quizgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleText(n int) string {
	var sb strings.Builder
	for i := 0; sb.Len() < n; i++ {
		sb.WriteByte(byte('a' + i%26))
		if i%7 == 6 {
			sb.WriteByte(' ')
		}
	}
	return sb.String()[:n]
}

func TestSplitWindows_ShortTextIsSingleWindow(t *testing.T) {
	text := sampleText(8000)
	windows := SplitWindows(text, 8000, 500)
	require.Len(t, windows, 1)
	assert.Equal(t, text, windows[0])
}

func TestSplitWindows_OverlapAndReconstruction(t *testing.T) {
	text := sampleText(20001)
	windows := SplitWindows(text, 8000, 500)

	require.Len(t, windows, 3)
	assert.Len(t, windows[0], 8000)
	assert.Len(t, windows[1], 8000)
	assert.Len(t, windows[2], 20001-15000)

	rebuilt := windows[0]
	for i := 1; i < len(windows); i++ {
		prev := windows[i-1]
		assert.Equal(t, prev[len(prev)-500:], windows[i][:500], "window %d should start with the previous tail", i)
		rebuilt += windows[i][500:]
	}
	assert.Equal(t, text, rebuilt)
}

func TestSplitWindows_CountsRunes(t *testing.T) {
	text := strings.Repeat("가", 25)
	windows := SplitWindows(text, 10, 2)

	rebuilt := string([]rune(windows[0]))
	for i := 1; i < len(windows); i++ {
		r := []rune(windows[i])
		assert.LessOrEqual(t, len(r), 10)
		rebuilt += string(r[2:])
	}
	assert.Equal(t, text, rebuilt)
}

func TestSplitWindows_InvalidOverlapIgnored(t *testing.T) {
	windows := SplitWindows("abcdefghij", 4, 4)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, windows)
}

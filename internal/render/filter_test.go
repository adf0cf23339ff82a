package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantasma-ai/specky/internal/model"
)

func TestTurn_PlainTextGetsLineBreaks(t *testing.T) {
	assert.Equal(t, "hello<br>world<br>", Turn("hello\nworld"))
	assert.Equal(t, "hello<br><br>", Turn("hello\n"))
}

func TestTurn_EscapesEntities(t *testing.T) {
	assert.Equal(t, "&lt;b&gt; &amp; &quot;q&quot; &#39;s&#39;<br>", Turn(`<b> & "q" 's'`))
}

func TestTurn_TogglesTwiceWithinOneLine(t *testing.T) {
	got := Turn("a```b```c")

	assert.Equal(t, 1, strings.Count(got, EnterCode))
	assert.Equal(t, 1, strings.Count(got, LeaveCode))
	assert.Equal(t, "a"+EnterCode+"b"+LeaveCode+"c"+LineBreak, got)
	assert.NotContains(t, got, "`")
}

func TestTurn_CodeBlockAcrossLines(t *testing.T) {
	got := Turn("look:\n```\nx := 1 < 2\n```\ndone")

	want := "look:" + LineBreak +
		EnterCode + "\n" +
		"x := 1 &lt; 2\n" +
		LeaveCode + LineBreak +
		"done" + LineBreak
	assert.Equal(t, want, got)
}

func TestTurn_LoneBackticksKept(t *testing.T) {
	assert.Equal(t, "use `go vet` and ``x``<br>", Turn("use `go vet` and ``x``"))
}

func TestTurns_FenceStateDoesNotLeak(t *testing.T) {
	out := Turns([]model.Turn{
		model.AssistantTurn("```\nunterminated code"),
		model.UserTurn("plain <text>"),
	})

	require.Len(t, out, 2)
	assert.True(t, out[0].Assistant)
	assert.False(t, out[1].Assistant)
	assert.Contains(t, out[0].Markup, "<pre>")
	assert.NotContains(t, out[1].Markup, "<pre>")
	assert.Equal(t, "plain &lt;text&gt;"+LineBreak, out[1].Markup)
}

func TestTurn_BacktickLookbackResetsPerLine(t *testing.T) {
	// Two backticks ending one line and one starting the next are not a fence.
	got := Turn("a``\n`b")
	assert.NotContains(t, got, "<pre>")
	assert.Equal(t, "a``"+LineBreak+"`b"+LineBreak, got)
}

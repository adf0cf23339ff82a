// Package render turns stored conversation turns into display markup.
package render

import (
	"strings"

	"github.com/phantasma-ai/specky/internal/model"
)

const (
	// EnterCode is emitted when a fence opens a code block.
	EnterCode = "</p><pre>\n"
	// LeaveCode is emitted when a fence closes a code block.
	LeaveCode = "</pre><p>\n"
	// LineBreak ends a line outside code.
	LineBreak = "<br>"
)

// DisplayTurn is a turn whose text is safe to embed as markup.
type DisplayTurn struct {
	Assistant bool
	Markup    string
}

// Turns renders every turn. Each turn starts outside a code block no matter
// how the previous one ended.
func Turns(turns []model.Turn) []DisplayTurn {
	out := make([]DisplayTurn, len(turns))
	for i, t := range turns {
		out[i] = DisplayTurn{Assistant: t.Assistant, Markup: Turn(t.Text)}
	}
	return out
}

// Turn renders the text of a single turn.
func Turn(text string) string {
	var sb strings.Builder
	inCode := false

	for _, line := range strings.Split(text, "\n") {
		inCode = filterLine(&sb, line, inCode)
		if inCode {
			sb.WriteByte('\n')
		} else {
			sb.WriteString(LineBreak)
		}
	}

	return sb.String()
}

// filterLine escapes one line and toggles the code state on every run of
// three backticks. Backticks that never complete a run are not dropped: they
// are written out literally once the run is broken, so inline `code` keeps
// its quotes.
func filterLine(sb *strings.Builder, line string, inCode bool) bool {
	var prev1, prev2 rune
	held := 0

	for _, ch := range line {
		if ch == '`' {
			if prev1 == '`' && prev2 == '`' {
				inCode = !inCode
				if inCode {
					sb.WriteString(EnterCode)
				} else {
					sb.WriteString(LeaveCode)
				}
				held = 0
			} else {
				held++
			}
		} else {
			releaseBackticks(sb, held)
			held = 0
			writeEscaped(sb, ch)
		}
		prev2 = prev1
		prev1 = ch
	}
	releaseBackticks(sb, held)

	return inCode
}

func releaseBackticks(sb *strings.Builder, n int) {
	for ; n > 0; n-- {
		sb.WriteByte('`')
	}
}

func writeEscaped(sb *strings.Builder, ch rune) {
	switch ch {
	case '<':
		sb.WriteString("&lt;")
	case '>':
		sb.WriteString("&gt;")
	case '&':
		sb.WriteString("&amp;")
	case '"':
		sb.WriteString("&quot;")
	case '\'':
		sb.WriteString("&#39;")
	default:
		sb.WriteRune(ch)
	}
}

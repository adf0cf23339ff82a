package chatlog

import (
	"bufio"
	"io"
	"strings"

	"github.com/phantasma-ai/specky/internal/model"
)

const (
	// Separator closes every block in a chat log.
	Separator = "####"

	userMarker      = "user:"
	assistantMarker = "specky:"

	maxLineBytes = 1 << 20
)

// Canonical returns text in the form it takes after a trip through the log:
// every line, including the last, terminated by a bare newline.
func Canonical(text string) string {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return strings.ReplaceAll(text, "\r\n", "\n")
}

// Encode writes turns as log blocks.
func Encode(w io.Writer, turns []model.Turn) error {
	var sb strings.Builder
	for _, t := range turns {
		writeBlock(&sb, t)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeBlock(sb *strings.Builder, t model.Turn) {
	if t.Assistant {
		sb.WriteString(assistantMarker)
	} else {
		sb.WriteString(userMarker)
	}
	sb.WriteByte('\n')
	sb.WriteString(Canonical(t.Text))
	sb.WriteString(Separator)
	sb.WriteByte('\n')
}

// Decode parses a chat log. The first line of each block names the speaker;
// anything other than the assistant marker counts as the user. A final block
// without a closing separator is still returned.
func Decode(r io.Reader) ([]model.Turn, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		turns         []model.Turn
		sb            strings.Builder
		waitingMarker = true
		assistant     bool
	)

	flush := func() {
		if sb.Len() > 0 {
			turns = append(turns, model.Turn{Assistant: assistant, Text: sb.String()})
			sb.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, Separator):
			flush()
			waitingMarker = true
		case waitingMarker:
			assistant = strings.HasPrefix(line, assistantMarker)
			waitingMarker = false
		default:
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	return turns, nil
}

package llm

import "unicode/utf8"

// CharsPerToken approximates how many characters make up one token.
const CharsPerToken = 3

// EstimateTokens approximates the token count of a message list.
func EstimateTokens(messages []ChatMessage) int {
	return countChars(messages) / CharsPerToken
}

func countChars(messages []ChatMessage) int {
	n := 0
	for _, msg := range messages {
		n += utf8.RuneCountInString(msg.Content)
	}
	return n
}

// TrimToBudget drops the oldest non-system messages until the estimated
// token count fits budget, returning the kept messages and the number of
// characters discarded. System messages are always kept, so the budget is
// not honoured when they alone exceed it.
func TrimToBudget(messages []ChatMessage, budget int) ([]ChatMessage, int) {
	kept := make([]ChatMessage, len(messages))
	copy(kept, messages)

	discarded := 0
	total := countChars(kept)

	for total/CharsPerToken > budget {
		idx := -1
		for i, msg := range kept {
			if msg.Role != "system" {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}

		n := utf8.RuneCountInString(kept[idx].Content)
		discarded += n
		total -= n
		kept = append(kept[:idx], kept[idx+1:]...)
	}

	return kept, discarded
}

// Package model defines data structures for the chat service.
package model

// Turn is one message in a conversation, tagged with its speaker.
type Turn struct {
	Assistant bool   `json:"assistant"`
	Text      string `json:"text"`
}

// UserTurn builds a turn spoken by the user.
func UserTurn(text string) Turn {
	return Turn{Assistant: false, Text: text}
}

// AssistantTurn builds a turn spoken by the assistant.
func AssistantTurn(text string) Turn {
	return Turn{Assistant: true, Text: text}
}

// Conversation is the ordered turn history of one session.
type Conversation struct {
	ID    string `json:"id"`
	Turns []Turn `json:"turns"`
}

// Clone returns a copy that shares no backing array with c.
func (c *Conversation) Clone() *Conversation {
	turns := make([]Turn, len(c.Turns))
	copy(turns, c.Turns)
	return &Conversation{ID: c.ID, Turns: turns}
}

// FirstUserTurn returns the earliest turn spoken by the user.
func (c *Conversation) FirstUserTurn() (Turn, bool) {
	for _, t := range c.Turns {
		if !t.Assistant {
			return t, true
		}
	}
	return Turn{}, false
}

// ChatStatus is the JSON view of a session served to polling clients.
type ChatStatus struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	Pending bool   `json:"pending"`
	Turns   []Turn `json:"turns"`
}

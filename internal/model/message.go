package model

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// RoleOf maps a stored turn to the role it plays in a completion request.
func RoleOf(t Turn) Role {
	if t.Assistant {
		return RoleAssistant
	}
	return RoleUser
}

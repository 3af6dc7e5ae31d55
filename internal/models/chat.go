// ABOUTME: ChatMessage model for the coaching chat history.
// ABOUTME: IDs are monotonic surrogate keys assigned by the store.
package models

import "time"

// ChatRole identifies who authored a message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

// IsValidChatRole checks if a string is a known role.
func IsValidChatRole(s string) bool {
	switch ChatRole(s) {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ChatMessage is one entry in the chat history.
type ChatMessage struct {
	ID        int64      `json:"id"`
	Content   string     `json:"content"`
	Role      ChatRole   `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// NewChatMessage creates a message stamped with the current time. The ID is
// assigned when the message is stored.
func NewChatMessage(role ChatRole, content string) *ChatMessage {
	return &ChatMessage{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

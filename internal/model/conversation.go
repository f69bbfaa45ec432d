// Package model 包含了应用的数据模型定义。
package model

import "time"

// Role 表示一条消息的角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn 代表对话中的单条消息。
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation 代表一次聊天会话，只允许追加。
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Turns     []Turn    `json:"turns"`
}

// Equal 按值比较两个会话：ID 与全部消息都一致才相等。
func (c Conversation) Equal(o Conversation) bool {
	if c.ID != o.ID || len(c.Turns) != len(o.Turns) {
		return false
	}
	for i := range c.Turns {
		if c.Turns[i] != o.Turns[i] {
			return false
		}
	}
	return true
}

// Clone 返回一个不共享底层数组的副本。
func (c Conversation) Clone() Conversation {
	out := c
	out.Turns = append([]Turn(nil), c.Turns...)
	return out
}

// FirstUserMessage 返回第一条用户消息，没有则返回空串。
func (c Conversation) FirstUserMessage() string {
	for _, t := range c.Turns {
		if t.Role == RoleUser {
			return t.Content
		}
	}
	return ""
}

// ConversationSummary 是历史列表中的一项。
type ConversationSummary struct {
	Index     int       `json:"index"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	TurnCount int       `json:"turnCount"`
	CreatedAt LocalTime `json:"createdAt"`
}

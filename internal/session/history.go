// Package session 管理每个浏览器会话的对话状态。
package session

import (
	"errors"
	"fmt"
	"seekmind-go/internal/model"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultSystemPrompt 是新会话的第一条 system 消息。
const DefaultSystemPrompt = "You are a helpful assistant."

const titleMaxRunes = 40

// ErrConversationIndex 表示要恢复的历史会话不存在。
var ErrConversationIndex = errors.New("conversation index out of range")

// History 保存当前会话以及历史会话列表。它本身不加锁，由 Manager 串行化访问。
type History struct {
	systemPrompt string
	current      model.Conversation
	past         []model.Conversation
	now          func() time.Time
}

// State 是 History 的可序列化快照，供 Store 保存。
type State struct {
	SystemPrompt string               `json:"systemPrompt"`
	Current      model.Conversation   `json:"current"`
	History      []model.Conversation `json:"history"`
}

// NewHistory 创建一个只包含一条 system 消息的新会话。
func NewHistory(systemPrompt string) *History {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	h := &History{systemPrompt: systemPrompt, now: time.Now}
	h.StartNewConversation()
	return h
}

// Restore 从快照重建 History。
func Restore(st State) *History {
	h := NewHistory(st.SystemPrompt)
	if len(st.Current.Turns) > 0 {
		h.current = st.Current.Clone()
	}
	for _, c := range st.History {
		h.past = append(h.past, c.Clone())
	}
	return h
}

// Snapshot 返回当前状态的深拷贝。
func (h *History) Snapshot() State {
	return State{
		SystemPrompt: h.systemPrompt,
		Current:      h.current.Clone(),
		History:      h.Conversations(),
	}
}

// StartNewConversation 将当前会话重置为仅含 system 消息的新会话。
func (h *History) StartNewConversation() {
	h.current = model.Conversation{
		ID:        uuid.NewString(),
		CreatedAt: h.now(),
		Turns:     []model.Turn{{Role: model.RoleSystem, Content: h.systemPrompt}},
	}
}

// Append 向当前会话追加一条消息。
func (h *History) Append(turn model.Turn) {
	h.current.Turns = append(h.current.Turns, turn)
}

// Current 返回当前会话的副本。
func (h *History) Current() model.Conversation {
	return h.current.Clone()
}

// Conversations 返回按创建顺序排列的历史会话副本。
func (h *History) Conversations() []model.Conversation {
	out := make([]model.Conversation, 0, len(h.past))
	for _, c := range h.past {
		out = append(out, c.Clone())
	}
	return out
}

// CommitIfNew 在历史中记录当前会话。
// 若同一会话已存在且内容相同则不做任何事；若该会话之后又有新消息，则原地刷新这一条；
// 否则追加到末尾。返回历史是否发生变化。
func (h *History) CommitIfNew() bool {
	for i := len(h.past) - 1; i >= 0; i-- {
		if h.past[i].ID != h.current.ID {
			continue
		}
		if h.past[i].Equal(h.current) {
			return false
		}
		h.past[i] = h.current.Clone()
		return true
	}
	h.past = append(h.past, h.current.Clone())
	return true
}

// Resume 把第 index 条历史会话设为当前会话，之后的提交会刷新同一条记录。
func (h *History) Resume(index int) error {
	if index < 0 || index >= len(h.past) {
		return fmt.Errorf("%w: %d", ErrConversationIndex, index)
	}
	h.current = h.past[index].Clone()
	return nil
}

// Summaries 返回侧边栏使用的历史列表。
func (h *History) Summaries() []model.ConversationSummary {
	out := make([]model.ConversationSummary, 0, len(h.past))
	for i, c := range h.past {
		out = append(out, model.ConversationSummary{
			Index:     i,
			ID:        c.ID,
			Title:     title(c, i),
			TurnCount: len(c.Turns),
			CreatedAt: model.LocalTime(c.CreatedAt),
		})
	}
	return out
}

func title(c model.Conversation, i int) string {
	first := c.FirstUserMessage()
	if first == "" {
		return fmt.Sprintf("Chat %d", i+1)
	}
	if utf8.RuneCountInString(first) <= titleMaxRunes {
		return first
	}
	runes := []rune(first)
	return string(runes[:titleMaxRunes]) + "…"
}

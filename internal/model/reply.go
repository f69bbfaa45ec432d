package model

import "time"

// ReplyEvent 在一次助手回复结束后发布，用于离线统计。
type ReplyEvent struct {
	SessionID      string    `json:"session_id"`
	ConversationID string    `json:"conversation_id"`
	Model          string    `json:"model"`
	ThinkingChars  int       `json:"thinking_chars"`
	AnswerChars    int       `json:"answer_chars"`
	Closed         bool      `json:"closed"`
	Stopped        bool      `json:"stopped"`
	DurationMs     int64     `json:"duration_ms"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Frame 是推送给浏览器的 websocket 消息。
type Frame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	HTML      string `json:"html,omitempty"`
	Message   string `json:"message,omitempty"`
	Status    string `json:"status,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Date      string `json:"date,omitempty"`
}

// Frame 类型
const (
	FrameThinking         = "thinking"
	FrameThinkingComplete = "thinking_complete"
	FrameAnswer           = "answer"
	FrameCompletion       = "completion"
	FrameStopped          = "stopped"
	FrameError            = "error"
)

package service

import (
	"context"
	"seekmind-go/internal/model"
	"seekmind-go/internal/session"
)

// ConversationService 定义了会话列表与切换的业务逻辑接口。
type ConversationService interface {
	CreateSession(ctx context.Context) (string, error)
	List(ctx context.Context, sessionID string) ([]model.ConversationSummary, error)
	Current(ctx context.Context, sessionID string) (model.Conversation, error)
	StartNew(ctx context.Context, sessionID string) (model.Conversation, error)
	Resume(ctx context.Context, sessionID string, index int) (model.Conversation, error)
}

type conversationService struct {
	sessions *session.Manager
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(sessions *session.Manager) ConversationService {
	return &conversationService{sessions: sessions}
}

// CreateSession 新建一个浏览器会话。
func (s *conversationService) CreateSession(ctx context.Context) (string, error) {
	return s.sessions.Create(ctx)
}

// List 返回历史会话列表，按创建顺序排列。
func (s *conversationService) List(ctx context.Context, sessionID string) ([]model.ConversationSummary, error) {
	var out []model.ConversationSummary
	err := s.sessions.View(ctx, sessionID, func(h *session.History) error {
		out = h.Summaries()
		return nil
	})
	return out, err
}

// Current 返回当前会话。回复进行中也可以读取。
func (s *conversationService) Current(ctx context.Context, sessionID string) (model.Conversation, error) {
	var conv model.Conversation
	err := s.sessions.View(ctx, sessionID, func(h *session.History) error {
		conv = h.Current()
		return nil
	})
	return conv, err
}

// StartNew 开始一个只含 system 消息的新会话。已经有回复的会话在回复结束时就已提交到历史。
func (s *conversationService) StartNew(ctx context.Context, sessionID string) (model.Conversation, error) {
	var conv model.Conversation
	err := s.sessions.Update(ctx, sessionID, func(h *session.History) error {
		h.StartNewConversation()
		conv = h.Current()
		return nil
	})
	return conv, err
}

// Resume 把第 index 条历史会话设为当前会话。
func (s *conversationService) Resume(ctx context.Context, sessionID string, index int) (model.Conversation, error) {
	var conv model.Conversation
	err := s.sessions.Update(ctx, sessionID, func(h *session.History) error {
		if err := h.Resume(index); err != nil {
			return err
		}
		conv = h.Current()
		return nil
	})
	return conv, err
}

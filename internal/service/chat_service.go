// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"seekmind-go/internal/config"
	"seekmind-go/internal/model"
	"seekmind-go/internal/render"
	"seekmind-go/internal/session"
	"seekmind-go/internal/stream"
	"seekmind-go/pkg/llm"
	"seekmind-go/pkg/log"
	"strings"
	"time"
)

var (
	// ErrStopped 表示用户发送了停止指令，回复被提前结束。
	ErrStopped = errors.New("reply stopped by user")
	// ErrEmptyPrompt 表示用户输入为空。
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// FrameSink 接收推送给浏览器的消息帧，由 websocket 连接实现。
type FrameSink interface {
	Send(frame model.Frame) error
}

// ReplyPublisher 发布回复结束事件，*kafka.Producer 实现了它。
type ReplyPublisher interface {
	PublishReply(ctx context.Context, ev model.ReplyEvent) error
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	StreamReply(ctx context.Context, sessionID, input string, sink FrameSink, shouldStop func() bool) (stream.Reply, error)
}

type chatService struct {
	sessions  *session.Manager
	llmClient llm.Client
	publisher ReplyPublisher
	opts      []stream.Option
	now       func() time.Time
}

// NewChatService 创建一个新的 ChatService 实例。publisher 可以为 nil。
func NewChatService(sessions *session.Manager, llmClient llm.Client, publisher ReplyPublisher, thinking config.LLMThinkingConfig) ChatService {
	var opts []stream.Option
	if thinking.RequireOpenMarker {
		opts = append(opts, stream.WithRequireOpenMarker())
	}
	return &chatService{
		sessions:  sessions,
		llmClient: llmClient,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

// StreamReply 把用户输入追加到当前会话，流式获取模型回复并逐帧推送：
// 思考阶段推送 thinking，阶段结束推送 thinking_complete，之后推送 answer。
// 回复结束（或被用户停止）后写入助手消息并提交到历史，最后推送 completion。
// 模型调用失败时错误原样返回，由调用方负责通知浏览器。
func (s *chatService) StreamReply(ctx context.Context, sessionID, input string, sink FrameSink, shouldStop func() bool) (stream.Reply, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return stream.Reply{}, ErrEmptyPrompt
	}

	req, err := s.sessions.Begin(ctx, sessionID)
	if err != nil {
		return stream.Reply{}, err
	}
	defer req.End()

	// 1. 追加用户消息，取出完整会话（以 system 消息开头）
	var conv model.Conversation
	err = req.Update(ctx, func(h *session.History) error {
		h.Append(model.Turn{Role: model.RoleUser, Content: input})
		conv = h.Current()
		return nil
	})
	if err != nil {
		return stream.Reply{}, fmt.Errorf("failed to append user turn: %w", err)
	}

	messages := make([]llm.Message, 0, len(conv.Turns))
	for _, t := range conv.Turns {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}

	// 2. 调用模型并驱动切分器
	start := s.now()
	log.Debugf("开始请求模型, session=%s model=%s turns=%d", sessionID, s.llmClient.Model(), len(messages))
	src, err := s.llmClient.Stream(ctx, messages)
	if err != nil {
		return stream.Reply{}, err
	}
	sp := stream.NewSplitter(s.opts...)
	reply, err := stream.Run(ctx, src, sp, func(u stream.Update) error {
		if shouldStop != nil && shouldStop() {
			return ErrStopped
		}
		return emit(sink, sp, u)
	})
	stopped := errors.Is(err, ErrStopped)
	if err != nil && !stopped {
		log.Warnf("回复中断, session=%s: %v", sessionID, err)
		return reply, err
	}
	if stopped {
		if sendErr := sink.Send(model.Frame{Type: model.FrameStopped, Message: "响应已停止", Timestamp: s.now().UnixMilli()}); sendErr != nil {
			log.Warnf("发送停止通知失败: %v", sendErr)
		}
	}

	// 3. 保存助手消息。走到这里说明回复正常结束或被用户停止（请求取消已在上面返回）；
	// 停止后连接可能随即断开，保存不跟随请求取消。
	saveCtx := context.WithoutCancel(ctx)
	if content := reply.Content(); content != "" {
		err = req.Update(saveCtx, func(h *session.History) error {
			h.Append(model.Turn{Role: model.RoleAssistant, Content: content})
			h.CommitIfNew()
			conv = h.Current()
			return nil
		})
		if err != nil {
			log.Errorf("保存助手回复失败, session=%s: %v", sessionID, err)
		}
	}

	ev := model.ReplyEvent{
		SessionID:      sessionID,
		ConversationID: conv.ID,
		Model:          s.llmClient.Model(),
		ThinkingChars:  len([]rune(reply.Thinking)),
		AnswerChars:    len([]rune(reply.Answer)),
		Closed:         reply.Closed,
		Stopped:        stopped,
		DurationMs:     s.now().Sub(start).Milliseconds(),
		FinishedAt:     s.now(),
	}
	log.Infow("回复完成",
		"session", sessionID,
		"conversation", ev.ConversationID,
		"closed", ev.Closed,
		"stopped", ev.Stopped,
		"durationMs", ev.DurationMs,
	)
	s.publish(saveCtx, ev)

	if err := sink.Send(CompletionFrame(s.now())); err != nil {
		return reply, err
	}
	return reply, nil
}

func (s *chatService) publish(ctx context.Context, ev model.ReplyEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReply(ctx, ev); err != nil {
		log.Warnw("发布回复事件失败", "session", ev.SessionID, "error", err)
	}
}

// emit 把一次切分结果转换为消息帧。
func emit(sink FrameSink, sp *stream.Splitter, u stream.Update) error {
	if u.Suppressed {
		return nil
	}
	switch {
	case u.TerminatesPhase:
		if err := sink.Send(textFrame(model.FrameThinkingComplete, u.Text)); err != nil {
			return err
		}
		// 与结束标记同一个分块到达的答案文本
		if answer := sp.Answer(); answer != "" {
			return sink.Send(textFrame(model.FrameAnswer, answer))
		}
		return nil
	case u.Phase == stream.PhaseThinking:
		return sink.Send(textFrame(model.FrameThinking, u.Text))
	default:
		return sink.Send(textFrame(model.FrameAnswer, u.Text))
	}
}

func textFrame(typ, text string) model.Frame {
	return model.Frame{Type: typ, Content: text, HTML: render.Markdown(text)}
}

// CompletionFrame 是一次回复结束（无论成功与否）后发送的通知。
func CompletionFrame(now time.Time) model.Frame {
	return model.Frame{
		Type:      model.FrameCompletion,
		Status:    "finished",
		Message:   "响应已完成",
		Timestamp: now.UnixMilli(),
		Date:      now.Format("2006-01-02T15:04:05"),
	}
}

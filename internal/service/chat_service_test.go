package service

import (
	"context"
	"errors"
	"seekmind-go/internal/config"
	"seekmind-go/internal/model"
	"seekmind-go/internal/session"
	"seekmind-go/internal/stream"
	"seekmind-go/pkg/llm"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	parts     []string
	err       error
	streamErr error
	got       []llm.Message
}

func (f *fakeLLM) Stream(_ context.Context, messages []llm.Message) (stream.Source, error) {
	f.got = messages
	if f.err != nil {
		return nil, f.err
	}
	if f.streamErr != nil {
		return stream.FailingAfter(f.streamErr, f.parts...), nil
	}
	return stream.FromStrings(f.parts...), nil
}

func (f *fakeLLM) Model() string { return "fake-r1" }

type recordingSink struct {
	frames []model.Frame
}

func (s *recordingSink) Send(f model.Frame) error {
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSink) types() []string {
	out := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		out = append(out, f.Type)
	}
	return out
}

type recordingPublisher struct {
	events []model.ReplyEvent
}

func (p *recordingPublisher) PublishReply(_ context.Context, ev model.ReplyEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func setup(t *testing.T, fake *fakeLLM, thinking config.LLMThinkingConfig) (ChatService, *session.Manager, *recordingPublisher, string) {
	t.Helper()
	m := session.NewManager(session.NewMemoryStore(time.Hour), "", time.Hour)
	id, err := m.Create(context.Background())
	require.NoError(t, err)
	pub := &recordingPublisher{}
	return NewChatService(m, fake, pub, thinking), m, pub, id
}

func currentTurns(t *testing.T, m *session.Manager, id string) []model.Turn {
	t.Helper()
	var turns []model.Turn
	require.NoError(t, m.View(context.Background(), id, func(h *session.History) error {
		turns = h.Current().Turns
		return nil
	}))
	return turns
}

func TestStreamReply_ThinkingThenAnswer(t *testing.T) {
	fake := &fakeLLM{parts: []string{"<think>", "Reason", "ing</th", "ink>Fin", "al"}}
	svc, m, pub, id := setup(t, fake, config.LLMThinkingConfig{})
	sink := &recordingSink{}

	reply, err := svc.StreamReply(context.Background(), id, "  hi ", sink, nil)
	require.NoError(t, err)
	assert.Equal(t, stream.Reply{Thinking: "Reasoning", Answer: "Final", Closed: true}, reply)

	assert.Equal(t, []string{
		model.FrameThinking,
		model.FrameThinking,
		model.FrameThinkingComplete,
		model.FrameAnswer,
		model.FrameAnswer,
		model.FrameCompletion,
	}, sink.types())
	assert.Equal(t, "Reason", sink.frames[0].Content)
	assert.Equal(t, "Reasoning", sink.frames[1].Content)
	assert.Equal(t, "Reasoning", sink.frames[2].Content)
	assert.Equal(t, "Fin", sink.frames[3].Content)
	assert.Equal(t, "Final", sink.frames[4].Content)
	assert.Contains(t, sink.frames[4].HTML, "<p>Final</p>")
	assert.Equal(t, "finished", sink.frames[5].Status)

	require.Len(t, fake.got, 2)
	assert.Equal(t, llm.Message{Role: "system", Content: session.DefaultSystemPrompt}, fake.got[0])
	assert.Equal(t, llm.Message{Role: "user", Content: "hi"}, fake.got[1])

	turns := currentTurns(t, m, id)
	require.Len(t, turns, 3)
	assert.Equal(t, model.Turn{Role: model.RoleAssistant, Content: "ReasoningFinal"}, turns[2])

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, id, ev.SessionID)
	assert.Equal(t, "fake-r1", ev.Model)
	assert.Equal(t, 9, ev.ThinkingChars)
	assert.Equal(t, 5, ev.AnswerChars)
	assert.True(t, ev.Closed)
	assert.False(t, ev.Stopped)
}

func TestStreamReply_CommitsOncePerConversation(t *testing.T) {
	fake := &fakeLLM{parts: []string{"<think>r</think>a"}}
	svc, m, _, id := setup(t, fake, config.LLMThinkingConfig{})
	ctx := context.Background()

	_, err := svc.StreamReply(ctx, id, "first", &recordingSink{}, nil)
	require.NoError(t, err)
	_, err = svc.StreamReply(ctx, id, "second", &recordingSink{}, nil)
	require.NoError(t, err)

	// the second request carries the whole conversation
	require.Len(t, fake.got, 4)
	assert.Equal(t, "ra", fake.got[2].Content)

	list, err := NewConversationService(m).List(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].TurnCount)
	assert.Equal(t, "first", list[0].Title)
}

func TestStreamReply_Stop(t *testing.T) {
	fake := &fakeLLM{parts: []string{"<think>", "A", "B", "</think>C"}}
	svc, m, pub, id := setup(t, fake, config.LLMThinkingConfig{})
	sink := &recordingSink{}
	shouldStop := func() bool { return len(sink.frames) >= 1 }

	reply, err := svc.StreamReply(context.Background(), id, "q", sink, shouldStop)
	require.NoError(t, err)
	assert.Equal(t, "AB", reply.Thinking)
	assert.False(t, reply.Closed)

	assert.Equal(t, []string{model.FrameThinking, model.FrameStopped, model.FrameCompletion}, sink.types())
	turns := currentTurns(t, m, id)
	require.Len(t, turns, 3)
	assert.Equal(t, "AB", turns[2].Content)
	require.Len(t, pub.events, 1)
	assert.True(t, pub.events[0].Stopped)
}

func TestStreamReply_StopThenDisconnectStillSaves(t *testing.T) {
	fake := &fakeLLM{parts: []string{"<think>", "A", "B"}}
	svc, m, _, id := setup(t, fake, config.LLMThinkingConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{}
	shouldStop := func() bool {
		if len(sink.frames) >= 1 {
			cancel()
			return true
		}
		return false
	}

	_, err := svc.StreamReply(ctx, id, "q", sink, shouldStop)
	require.NoError(t, err)
	turns := currentTurns(t, m, id)
	require.Len(t, turns, 3)
	assert.Equal(t, "AB", turns[2].Content)
}

func TestStreamReply_CancelledStoresNothing(t *testing.T) {
	fake := &fakeLLM{parts: []string{"<think>", "A", "B"}}
	svc, m, pub, id := setup(t, fake, config.LLMThinkingConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{}
	shouldStop := func() bool {
		if len(sink.frames) >= 1 {
			cancel()
		}
		return false
	}

	_, err := svc.StreamReply(ctx, id, "q", sink, shouldStop)
	assert.ErrorIs(t, err, context.Canceled)
	turns := currentTurns(t, m, id)
	require.Len(t, turns, 2)
	assert.Equal(t, model.RoleUser, turns[1].Role)
	assert.Empty(t, pub.events)
}

func TestStreamReply_MidStreamFailure(t *testing.T) {
	fake := &fakeLLM{parts: []string{"<think>", "x"}, streamErr: llm.ErrUnavailable}
	svc, m, pub, id := setup(t, fake, config.LLMThinkingConfig{})
	sink := &recordingSink{}

	reply, err := svc.StreamReply(context.Background(), id, "q", sink, nil)
	assert.ErrorIs(t, err, llm.ErrUnavailable)
	assert.Equal(t, "x", reply.Thinking)
	assert.Equal(t, []string{model.FrameThinking}, sink.types())

	turns := currentTurns(t, m, id)
	require.Len(t, turns, 2)
	assert.Equal(t, model.RoleUser, turns[1].Role)
	assert.Empty(t, pub.events)

	// the session is released for the next request
	fake.streamErr = nil
	fake.parts = []string{"</think>ok"}
	_, err = svc.StreamReply(context.Background(), id, "again", &recordingSink{}, nil)
	require.NoError(t, err)
}

func TestStreamReply_ModelNotFound(t *testing.T) {
	fake := &fakeLLM{err: llm.ErrModelNotFound}
	svc, _, _, id := setup(t, fake, config.LLMThinkingConfig{})
	sink := &recordingSink{}

	_, err := svc.StreamReply(context.Background(), id, "q", sink, nil)
	assert.ErrorIs(t, err, llm.ErrModelNotFound)
	assert.Empty(t, sink.frames)
}

func TestStreamReply_Busy(t *testing.T) {
	svc, m, _, id := setup(t, &fakeLLM{parts: []string{"x"}}, config.LLMThinkingConfig{})
	req, err := m.Begin(context.Background(), id)
	require.NoError(t, err)
	defer req.End()

	_, err = svc.StreamReply(context.Background(), id, "q", &recordingSink{}, nil)
	assert.ErrorIs(t, err, session.ErrSessionBusy)
}

func TestStreamReply_UnknownSession(t *testing.T) {
	svc, _, _, _ := setup(t, &fakeLLM{}, config.LLMThinkingConfig{})
	_, err := svc.StreamReply(context.Background(), "nope", "q", &recordingSink{}, nil)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestStreamReply_EmptyPrompt(t *testing.T) {
	svc, _, _, id := setup(t, &fakeLLM{}, config.LLMThinkingConfig{})
	_, err := svc.StreamReply(context.Background(), id, " \n", &recordingSink{}, nil)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestStreamReply_RequireOpenMarker(t *testing.T) {
	fake := &fakeLLM{parts: []string{"Hello", " world"}}
	svc, _, _, id := setup(t, fake, config.LLMThinkingConfig{RequireOpenMarker: true})
	sink := &recordingSink{}

	reply, err := svc.StreamReply(context.Background(), id, "q", sink, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", reply.Answer)
	assert.Equal(t, []string{model.FrameAnswer, model.FrameAnswer, model.FrameCompletion}, sink.types())
	assert.Equal(t, "Hello world", sink.frames[1].Content)
}

type failingSink struct{ err error }

func (s failingSink) Send(model.Frame) error { return s.err }

func TestStreamReply_SinkErrorStopsStream(t *testing.T) {
	gone := errors.New("connection closed")
	svc, _, _, id := setup(t, &fakeLLM{parts: []string{"<think>", "a", "b"}}, config.LLMThinkingConfig{})

	_, err := svc.StreamReply(context.Background(), id, "q", failingSink{gone}, nil)
	assert.ErrorIs(t, err, gone)
}

package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CollectsUpdates(t *testing.T) {
	var got []Update
	reply, err := Run(context.Background(), FromStrings("<think>", "R", "</think>", "A"), NewSplitter(), func(u Update) error {
		got = append(got, u)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Reply{Thinking: "R", Answer: "A", Closed: true}, reply)
	require.Len(t, got, 4)
	assert.True(t, got[2].TerminatesPhase)
}

func TestRun_PropagatesSourceErrorUnchanged(t *testing.T) {
	boom := errors.New("connection reset")
	reply, err := Run(context.Background(), FailingAfter(boom, "<think>", "half"), NewSplitter(), nil)
	assert.Same(t, boom, err)
	assert.Equal(t, "half", reply.Thinking)
}

func TestRun_CallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	src := FromStrings("<think>a</think>", "b", "c")
	reply, err := Run(context.Background(), src, NewSplitter(), func(u Update) error {
		calls++
		if u.Phase == PhaseAnswer {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "b", reply.Answer)

	_, nextErr := src.Next(context.Background())
	assert.Error(t, nextErr, "source must be closed after Run")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, FromStrings("a"), NewSplitter(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

package session

import (
	"seekmind-go/internal/model"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_StartNewConversation(t *testing.T) {
	h := NewHistory("")
	h.Append(model.Turn{Role: model.RoleUser, Content: "hi"})
	oldID := h.Current().ID

	h.StartNewConversation()
	cur := h.Current()
	require.Len(t, cur.Turns, 1)
	assert.Equal(t, model.RoleSystem, cur.Turns[0].Role)
	assert.Equal(t, DefaultSystemPrompt, cur.Turns[0].Content)
	assert.NotEqual(t, oldID, cur.ID)
}

func TestHistory_CustomSystemPrompt(t *testing.T) {
	h := NewHistory("Be terse.")
	assert.Equal(t, "Be terse.", h.Current().Turns[0].Content)
}

func TestHistory_CommitIfNewTwice(t *testing.T) {
	h := NewHistory("")
	h.Append(model.Turn{Role: model.RoleUser, Content: "q"})
	h.Append(model.Turn{Role: model.RoleAssistant, Content: "a"})

	assert.True(t, h.CommitIfNew())
	assert.False(t, h.CommitIfNew())
	assert.Len(t, h.Conversations(), 1)
}

func TestHistory_CommitRefreshesGrowingConversation(t *testing.T) {
	h := NewHistory("")
	h.Append(model.Turn{Role: model.RoleUser, Content: "q1"})
	h.Append(model.Turn{Role: model.RoleAssistant, Content: "a1"})
	h.CommitIfNew()

	h.Append(model.Turn{Role: model.RoleUser, Content: "q2"})
	h.Append(model.Turn{Role: model.RoleAssistant, Content: "a2"})
	assert.True(t, h.CommitIfNew())

	convs := h.Conversations()
	require.Len(t, convs, 1)
	assert.Len(t, convs[0].Turns, 5)
}

func TestHistory_NewConversationIsSeparateEntry(t *testing.T) {
	h := NewHistory("")
	h.Append(model.Turn{Role: model.RoleUser, Content: "first"})
	h.CommitIfNew()
	h.StartNewConversation()
	h.Append(model.Turn{Role: model.RoleUser, Content: "second"})
	h.CommitIfNew()

	sums := h.Summaries()
	require.Len(t, sums, 2)
	assert.Equal(t, "first", sums[0].Title)
	assert.Equal(t, "second", sums[1].Title)
	assert.Equal(t, 1, sums[1].Index)
}

func TestHistory_Resume(t *testing.T) {
	h := NewHistory("")
	h.Append(model.Turn{Role: model.RoleUser, Content: "old"})
	h.CommitIfNew()
	first := h.Current()
	h.StartNewConversation()

	require.NoError(t, h.Resume(0))
	assert.True(t, first.Equal(h.Current()))

	h.Append(model.Turn{Role: model.RoleAssistant, Content: "more"})
	h.CommitIfNew()
	assert.Len(t, h.Conversations(), 1)

	assert.ErrorIs(t, h.Resume(3), ErrConversationIndex)
	assert.ErrorIs(t, h.Resume(-1), ErrConversationIndex)
}

func TestHistory_ReturnedValuesDoNotAlias(t *testing.T) {
	h := NewHistory("")
	h.Append(model.Turn{Role: model.RoleUser, Content: "q"})
	h.CommitIfNew()

	cur := h.Current()
	cur.Turns[0].Content = "changed"
	convs := h.Conversations()
	convs[0].Turns = append(convs[0].Turns, model.Turn{Role: model.RoleUser})

	assert.Equal(t, DefaultSystemPrompt, h.Current().Turns[0].Content)
	assert.Len(t, h.Conversations()[0].Turns, 2)
}

func TestHistory_SnapshotRestore(t *testing.T) {
	h := NewHistory("sys")
	h.Append(model.Turn{Role: model.RoleUser, Content: "q"})
	h.CommitIfNew()
	h.StartNewConversation()

	r := Restore(h.Snapshot())
	assert.True(t, h.Current().Equal(r.Current()))
	require.Len(t, r.Conversations(), 1)
	assert.Equal(t, "q", r.Conversations()[0].FirstUserMessage())
}

func TestTitleTruncation(t *testing.T) {
	h := NewHistory("")
	h.Append(model.Turn{Role: model.RoleUser, Content: strings.Repeat("长", 50)})
	h.CommitIfNew()
	got := h.Summaries()[0].Title
	assert.Equal(t, strings.Repeat("长", titleMaxRunes)+"…", got)

	empty := NewHistory("")
	empty.CommitIfNew()
	assert.Equal(t, "Chat 1", empty.Summaries()[0].Title)
}

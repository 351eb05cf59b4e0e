package ai

import (
	"context"
	"strings"
	"testing"

	"linechat/internal/server/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanned_Reply(t *testing.T) {
	reply, err := Canned{}.Reply(context.Background(), "AI Programming", []store.Message{
		{ID: 0, Author: "alice", Content: "how do I close a channel?"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "@alice"))
	assert.Contains(t, reply, "programming")
	assert.Contains(t, reply, "What have you tried")

	reply, err = Canned{}.Reply(context.Background(), "AI Study", nil)
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestConversation(t *testing.T) {
	msgs := conversation([]store.Message{
		{Author: store.AIAuthor, Content: "welcome"},
		{Author: "alice", Content: "hi"},
		{Author: store.AIAuthor, Content: "hello alice"},
		{Author: "bob", Content: "hey"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))

	assert.Empty(t, conversation([]store.Message{{Author: store.AIAuthor, Content: "only me"}}))
}

func TestNewAnthropic_RequiresKey(t *testing.T) {
	_, err := NewAnthropic("  ", "")
	assert.Error(t, err)

	a, err := NewAnthropic("sk-test", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, a.model)
}

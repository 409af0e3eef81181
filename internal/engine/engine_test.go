package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfoldindia/unfold/internal/llm"
	"github.com/unfoldindia/unfold/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestChatStoresBothTurns(t *testing.T) {
	db := testDB(t)
	mock := &llm.MockClient{Response: &llm.Response{Content: "**October to February** is ideal. **Pro Tip**: start at sunrise.", Provider: "mock"}}
	eng := New(db, mock, nil, nil, nil)
	ctx := context.Background()

	reply, err := eng.Chat(ctx, "u1", "Best time to visit Hampi?")
	require.NoError(t, err)
	assert.Equal(t, "success", reply.Status)
	assert.Contains(t, reply.Reply, "October")

	msgs, err := db.RecentMessages(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)

	req := mock.Calls[0]
	assert.Equal(t, llm.TravelGuideSystem, req.System, "chat should use the travel guide system prompt")
	assert.Equal(t, 4096, req.MaxTokens)
	assert.Equal(t, float32(0.7), req.Temperature)
	assert.Nil(t, req.Schema, "chat should not request structured output")
}

func TestChatSendsLastSixMessages(t *testing.T) {
	db := testDB(t)
	mock := &llm.MockClient{Response: &llm.Response{Content: "ok"}}
	eng := New(db, mock, nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := eng.Chat(ctx, "u1", "question "+string(rune('a'+i)))
		require.NoError(t, err, "chat %d", i)
	}

	last := mock.Calls[len(mock.Calls)-1]
	require.Len(t, last.Messages, 6)
	assert.Equal(t, llm.Message{Role: "user", Content: "question e"}, last.Messages[5])
	// u:a a:a u:b [a:b u:c a:c u:d a:d u:e]
	assert.Equal(t, "assistant", last.Messages[0].Role)
	assert.Equal(t, "question c", last.Messages[1].Content)
}

func TestChatContextIsPerOwner(t *testing.T) {
	db := testDB(t)
	mock := &llm.MockClient{Response: &llm.Response{Content: "ok"}}
	eng := New(db, mock, nil, nil, nil)
	ctx := context.Background()

	eng.Chat(ctx, "u1", "my secret plan")
	eng.Chat(ctx, "u2", "hello")

	for _, m := range mock.Calls[1].Messages {
		assert.NotContains(t, m.Content, "secret", "u2's context leaked u1's message")
	}
}

func TestChatGeneratorErrorIsReply(t *testing.T) {
	db := testDB(t)
	mock := &llm.MockClient{Err: errors.New("dial tcp: connection refused")}
	eng := New(db, mock, nil, nil, nil)
	ctx := context.Background()

	reply, err := eng.Chat(ctx, "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "error", reply.Status)
	assert.True(t, strings.HasPrefix(reply.Reply, "Connection Error: "), "reply = %q", reply.Reply)

	n, _ := db.CountMessages(ctx, "u1")
	assert.Equal(t, 1, n, "only the user turn is stored")
}

func TestChatProviderStatusIsReply(t *testing.T) {
	db := testDB(t)
	mock := &llm.MockClient{Err: &llm.StatusError{Provider: "openai", Code: 429}}
	eng := New(db, mock, nil, nil, nil)

	reply, err := eng.Chat(context.Background(), "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, &ChatReply{Reply: "API Error: 429", Status: "error"}, reply)
}

func TestChatTimeout(t *testing.T) {
	db := testDB(t)
	mock := &llm.MockClient{Response: &llm.Response{Content: "late"}, Delay: 5 * time.Second}
	eng := New(db, mock, nil, nil, nil)
	eng.SetChatTimeout(20 * time.Millisecond)

	start := time.Now()
	reply, err := eng.Chat(context.Background(), "u1", "hello")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "chat should give up after its timeout")
	assert.Equal(t, "error", reply.Status)
}

func TestChatWithoutLLM(t *testing.T) {
	db := testDB(t)
	eng := New(db, nil, nil, nil, nil)

	reply, err := eng.Chat(context.Background(), "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "error", reply.Status)
}

func TestChatRejectsEmpty(t *testing.T) {
	db := testDB(t)
	eng := New(db, &llm.MockClient{}, nil, nil, nil)

	_, err := eng.Chat(context.Background(), "u1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChatAppliesRetention(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	eng := New(db, &llm.MockClient{Response: &llm.Response{Content: "ok"}}, nil, nil, nil)

	require.NoError(t, db.EnsureUser(ctx, "u1"))
	old := time.Now().AddDate(0, -2, 0).UnixMilli()
	require.NoError(t, db.AppendMessage(ctx, &store.Message{OwnerID: "u1", Role: "user", Content: "old trip", CreatedAt: old}))
	_, err := db.SetPolicy(ctx, "u1", "1_month")
	require.NoError(t, err)

	_, err = eng.Chat(ctx, "u1", "new trip")
	require.NoError(t, err)

	msgs, _ := db.ListMessages(ctx, "u1", 10)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.NotEqual(t, "old trip", m.Content, "message older than the retention period should be gone")
	}
}

func TestSweep(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	eng := New(db, nil, nil, nil, nil)

	require.NoError(t, db.EnsureUser(ctx, "u1"))
	old := time.Now().AddDate(-2, 0, 0).UnixMilli()
	require.NoError(t, db.AppendMessage(ctx, &store.Message{OwnerID: "u1", Role: "user", Content: "ancient", CreatedAt: old}))
	// Set the policy after the append so the hook did not already purge.
	_, err := db.SetPolicy(ctx, "u1", "1_year")
	require.NoError(t, err)

	deleted, err := eng.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestRetentionSchedule(t *testing.T) {
	eng := New(testDB(t), nil, nil, nil, nil)

	assert.Error(t, eng.StartRetentionSchedule("25:99"))
	require.NoError(t, eng.StartRetentionSchedule("03:00"))
	require.NoError(t, eng.Stop())
	assert.NoError(t, eng.Stop(), "second Stop")
}

func TestBuildHistoryCapsLongReplies(t *testing.T) {
	long := strings.Repeat("day one in Jaipur ", 500)
	got := buildHistory([]store.Message{
		{Role: "user", Content: long},
		{Role: "assistant", Content: long},
	})

	assert.Equal(t, long, got[0].Content, "user turns should be sent whole")
	assert.LessOrEqual(t, len(got[1].Content), maxContextReply+3)
	assert.True(t, strings.HasSuffix(got[1].Content, "..."), "capped turn should end with ...")
}

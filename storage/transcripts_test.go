package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *TranscriptStore {
	t.Helper()
	ts, err := NewTranscriptStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { ts.Close() })
	return ts
}

func TestTranscriptStore_CreateAppendLoad(t *testing.T) {
	ts := newTestStore(t)

	tr, err := ts.Create("first")
	require.NoError(t, err)
	assert.NotEmpty(t, tr.ID)

	now := time.Now()
	require.NoError(t, ts.AppendMessage(tr.ID, Message{Index: 0, Author: "user", Text: "hello", Timestamp: now}))
	require.NoError(t, ts.AppendMessage(tr.ID, Message{Index: 1, Author: "agent", Text: "hi there", Timestamp: now}))

	loaded, err := ts.Load(tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", loaded.Name)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "hello", loaded.Messages[0].Text)
	assert.Equal(t, "agent", loaded.Messages[1].Author)
	assert.Equal(t, "none", loaded.Messages[1].Reaction)
}

func TestTranscriptStore_AppendSameMessageTwice(t *testing.T) {
	ts := newTestStore(t)
	tr, err := ts.Create("replay")
	require.NoError(t, err)

	msg := Message{Index: 0, Author: "user", Text: "hello", Timestamp: time.Now()}
	require.NoError(t, ts.AppendMessage(tr.ID, msg))
	require.NoError(t, ts.AppendMessage(tr.ID, msg))

	loaded, err := ts.Load(tr.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, "hello", loaded.Messages[0].Text)
}

func TestTranscriptStore_AppendKeepsExistingMessageAtIndex(t *testing.T) {
	ts := newTestStore(t)
	tr, err := ts.Create("two writers")
	require.NoError(t, err)

	require.NoError(t, ts.AppendMessage(tr.ID, Message{Index: 0, Author: "user", Text: "first", Timestamp: time.Now()}))
	err = ts.AppendMessage(tr.ID, Message{Index: 0, Author: "user", Text: "second", Timestamp: time.Now()})
	assert.ErrorIs(t, err, ErrMessageConflict)

	loaded, err := ts.Load(tr.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, "first", loaded.Messages[0].Text)
}

func TestTranscriptStore_AppendUnknownTranscript(t *testing.T) {
	ts := newTestStore(t)
	err := ts.AppendMessage("missing", Message{Index: 0, Author: "user", Text: "x", Timestamp: time.Now()})
	assert.Error(t, err)
}

func TestTranscriptStore_SetReaction(t *testing.T) {
	ts := newTestStore(t)
	tr, err := ts.Create("reactions")
	require.NoError(t, err)
	require.NoError(t, ts.AppendMessage(tr.ID, Message{Index: 0, Author: "agent", Text: "answer", Timestamp: time.Now()}))

	require.NoError(t, ts.SetReaction(tr.ID, 0, "liked"))
	loaded, err := ts.Load(tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "liked", loaded.Messages[0].Reaction)

	assert.ErrorIs(t, ts.SetReaction(tr.ID, 5, "liked"), ErrTranscriptNotFound)
}

func TestTranscriptStore_ListAndDelete(t *testing.T) {
	ts := newTestStore(t)
	a, err := ts.Create("a")
	require.NoError(t, err)
	b, err := ts.Create("b")
	require.NoError(t, err)
	require.NoError(t, ts.AppendMessage(b.ID, Message{Index: 0, Author: "user", Text: "q", Timestamp: time.Now()}))

	list, err := ts.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, 1, list[0].MessageCount)

	require.NoError(t, ts.Delete(a.ID))
	assert.ErrorIs(t, ts.Delete(a.ID), ErrTranscriptNotFound)

	_, err = ts.Load(a.ID)
	assert.ErrorIs(t, err, ErrTranscriptNotFound)
}

func TestTranscriptStore_CurrentID(t *testing.T) {
	ts := newTestStore(t)

	_, err := ts.LoadCurrentID()
	assert.ErrorIs(t, err, ErrTranscriptNotFound)

	require.NoError(t, ts.SaveCurrentID("one"))
	require.NoError(t, ts.SaveCurrentID("two"))
	id, err := ts.LoadCurrentID()
	require.NoError(t, err)
	assert.Equal(t, "two", id)
}

func TestSearchIndex_SearchAllTranscripts(t *testing.T) {
	ts := newTestStore(t)
	tr, err := ts.Create("printer")
	require.NoError(t, err)

	now := time.Now()
	msgs := []Message{
		{Index: 0, Author: "user", Text: "greeting printer", Timestamp: now},
		{Index: 1, Author: "agent", Text: "hello", Timestamp: now},
		{Index: 2, Author: "user", Text: "my printer is offline", Timestamp: now},
		{Index: 3, Author: "agent", Text: "restart the spooler", Timestamp: now},
	}
	for _, m := range msgs {
		require.NoError(t, ts.AppendMessage(tr.ID, m))
	}

	idx := NewSearchIndex(ts)

	matches, err := idx.SearchAllTranscripts("printer", 2)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].MessageIndex)
	assert.Equal(t, "printer", matches[0].TranscriptName)

	matches, err = idx.SearchAllTranscripts("   ", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestPreviewTruncatesRunes(t *testing.T) {
	long := ""
	for i := 0; i < 150; i++ {
		long += "ж"
	}
	p := preview(long)
	assert.Equal(t, previewLength+3, len([]rune(p)))
	assert.Equal(t, "a b", preview("a\n\n b"))
}

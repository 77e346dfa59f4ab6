package model

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/config"
	"helpdesk/storage"
)

func newAgentServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, reply+testSentinel)
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(url string) *config.Config {
	return &config.Config{
		AgentURL:       url,
		StreamPath:     config.DefaultStreamPath,
		SentinelLength: len(testSentinel),
		HistoryEnabled: true,
	}
}

func openTranscripts(t *testing.T, dir string) *storage.TranscriptStore {
	t.Helper()
	ts, err := storage.NewTranscriptStore(dir)
	require.NoError(t, err)
	return ts
}

func TestNewModel_PersistsAndResumes(t *testing.T) {
	dir := t.TempDir()
	server := newAgentServer(t, "Проверьте кабель")

	ts := openTranscripts(t, dir)
	m, err := NewModel(testConfig(server.URL), ts, "test")
	require.NoError(t, err)
	firstID := m.CurrentTranscriptID()
	require.NotEmpty(t, firstID)

	res, err := m.Ask(context.Background(), "Нет интернета")
	require.NoError(t, err)
	assert.Equal(t, "Проверьте кабель", res.Reply)

	_, err = m.ToggleReaction(res.Index, ReactionLiked)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	ts = openTranscripts(t, dir)
	m, err = NewModel(testConfig(server.URL), ts, "test")
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, firstID, m.CurrentTranscriptID())
	snap := m.Store.Snapshot()
	require.Len(t, snap.Messages, SeedTurns+2)
	assert.Equal(t, "Нет интернета", snap.Messages[2].Text)
	assert.Equal(t, ReactionLiked, snap.Messages[3].Reaction)
}

func TestModel_NewSession(t *testing.T) {
	server := newAgentServer(t, "ok")
	ts := openTranscripts(t, t.TempDir())
	m, err := NewModel(testConfig(server.URL), ts, "test")
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Ask(context.Background(), "q")
	require.NoError(t, err)
	oldID := m.CurrentTranscriptID()

	require.NoError(t, m.NewSession())
	assert.NotEqual(t, oldID, m.CurrentTranscriptID())
	assert.Equal(t, SeedTurns, m.Store.Len())

	current, err := ts.LoadCurrentID()
	require.NoError(t, err)
	assert.Equal(t, m.CurrentTranscriptID(), current)

	fresh, err := ts.Load(current)
	require.NoError(t, err)
	assert.Len(t, fresh.Messages, SeedTurns)

	old, err := ts.Load(oldID)
	require.NoError(t, err)
	assert.Len(t, old.Messages, SeedTurns+2)
}

func TestModel_SwitchTranscript(t *testing.T) {
	server := newAgentServer(t, "ok")
	ts := openTranscripts(t, t.TempDir())
	m, err := NewModel(testConfig(server.URL), ts, "test")
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Ask(context.Background(), "first")
	require.NoError(t, err)
	firstID := m.CurrentTranscriptID()

	require.NoError(t, m.NewSession())
	first, err := ts.Load(firstID)
	require.NoError(t, err)

	require.NoError(t, m.SwitchTranscript(first))
	assert.Equal(t, firstID, m.CurrentTranscriptID())
	assert.Equal(t, "first", m.Store.Snapshot().Messages[2].Text)

	// New turns continue the resumed transcript
	_, err = m.Ask(context.Background(), "second")
	require.NoError(t, err)
	first, err = ts.Load(firstID)
	require.NoError(t, err)
	assert.Len(t, first.Messages, SeedTurns+4)
}

func TestNewModel_HistoryDisabled(t *testing.T) {
	server := newAgentServer(t, "ok")
	m, err := NewModel(testConfig(server.URL), nil, "test")
	require.NoError(t, err)

	assert.Empty(t, m.CurrentTranscriptID())
	assert.Nil(t, m.FetchTranscriptList())
	assert.Nil(t, m.SearchTranscriptsCmd("x"))
	assert.ErrorIs(t, m.DeleteTranscript("x"), ErrHistoryDisabled)
	require.NoError(t, m.NewSession())
	require.NoError(t, m.Close())
}

func TestNewModel_RejectsBadURL(t *testing.T) {
	_, err := NewModel(testConfig("ftp://example.com"), nil, "test")
	assert.Error(t, err)
}

func TestPersister_OnlyIdleSnapshotsAreWritten(t *testing.T) {
	w := &recordingWriter{}
	p := NewPersister(w, "t1", SeedMessages())

	s := NewStore(SeedMessages())
	s.Subscribe(p.Observe)

	s.AppendUserMessage("q")
	require.NoError(t, s.BeginAgentReply())
	require.NoError(t, s.StartStreaming())
	require.NoError(t, s.AppendToBuffer("partial"))
	assert.Len(t, w.appended, 1, "only the user message is written before the reply commits")

	s.CommitAgentMessage("answer")
	require.Len(t, w.appended, 2)
	assert.Equal(t, 3, w.appended[1].Index)
	assert.Equal(t, "answer", w.appended[1].Text)

	_, err := s.ToggleReaction(3, ReactionDisliked)
	require.NoError(t, err)
	assert.Equal(t, []string{"disliked"}, w.reactions)
}

type recordingWriter struct {
	appended  []storage.Message
	reactions []string
}

func (w *recordingWriter) AppendMessage(_ string, msg storage.Message) error {
	w.appended = append(w.appended, msg)
	return nil
}

func (w *recordingWriter) SetReaction(_ string, _ int, reaction string) error {
	w.reactions = append(w.reactions, reaction)
	return nil
}

func TestStoreWatcher_DeliversLatestState(t *testing.T) {
	s := NewStore(SeedMessages())
	w := WatchStore(s)
	defer w.Stop()

	for i := 0; i < watchBuffer+10; i++ {
		s.AppendUserMessage("q")
	}

	var last Snapshot
	deadline := time.After(time.Second)
	for len(last.Messages) != SeedTurns+watchBuffer+10 {
		select {
		case <-deadline:
			t.Fatal("watcher did not deliver the latest snapshot")
		default:
		}
		msg := w.Wait()()
		last = msg.(StoreChangedMsg).Snapshot
	}
}

func TestStoreWatcher_StopUnblocksWait(t *testing.T) {
	w := WatchStore(NewStore(nil))
	w.Stop()
	assert.Nil(t, w.Wait()())
}

func TestModel_DeleteTranscript(t *testing.T) {
	server := newAgentServer(t, "ok")
	m, err := NewModel(testConfig(server.URL), openTranscripts(t, t.TempDir()), "test")
	require.NoError(t, err)
	defer m.Close()

	openID := m.CurrentTranscriptID()
	require.NoError(t, m.NewSession())
	assert.NotEqual(t, openID, m.CurrentTranscriptID())

	assert.ErrorIs(t, m.DeleteTranscript(m.CurrentTranscriptID()), ErrCurrentTranscript)
	require.NoError(t, m.DeleteTranscript(openID))
	assert.ErrorIs(t, m.DeleteTranscript(openID), storage.ErrTranscriptNotFound)

	list, err := m.Transcripts.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, m.CurrentTranscriptID(), list[0].ID)
}

func TestModel_SecondWriterCannotOverwriteTurns(t *testing.T) {
	dir := t.TempDir()
	server := newAgentServer(t, "ok")

	saved, err := NewModel(testConfig(server.URL), openTranscripts(t, dir), "test")
	require.NoError(t, err)
	defer saved.Close()
	stale, err := NewModel(testConfig(server.URL), openTranscripts(t, dir), "test")
	require.NoError(t, err)
	defer stale.Close()
	require.Equal(t, saved.CurrentTranscriptID(), stale.CurrentTranscriptID())

	_, err = saved.Ask(context.Background(), "вопрос из консоли")
	require.NoError(t, err)
	_, err = stale.Ask(context.Background(), "вопрос из окна")
	require.NoError(t, err)

	stored, err := saved.Transcripts.Load(saved.CurrentTranscriptID())
	require.NoError(t, err)
	require.Len(t, stored.Messages, SeedTurns+2)
	assert.Equal(t, "вопрос из консоли", stored.Messages[2].Text)
	assert.Equal(t, "ok", stored.Messages[3].Text)

	err = stale.Persister.Sync(stale.Store.Snapshot().Messages)
	assert.ErrorIs(t, err, storage.ErrMessageConflict)
}

func TestModel_SessionChangesRefusedWhileReplyPending(t *testing.T) {
	server := newAgentServer(t, "ok")
	ts := openTranscripts(t, t.TempDir())
	m, err := NewModel(testConfig(server.URL), ts, "test")
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Ask(context.Background(), "first")
	require.NoError(t, err)
	openID := m.CurrentTranscriptID()
	require.NoError(t, m.NewSession())
	other, err := ts.Load(m.CurrentTranscriptID())
	require.NoError(t, err)
	opened, err := ts.Load(openID)
	require.NoError(t, err)
	require.NoError(t, m.SwitchTranscript(opened))

	before, err := ts.List()
	require.NoError(t, err)

	// A question that started right before the switch
	m.Store.AppendUserMessage("second")
	require.NoError(t, m.Store.BeginAgentReply())

	assert.ErrorIs(t, m.NewSession(), ErrBusy)
	assert.ErrorIs(t, m.SwitchTranscript(other), ErrBusy)

	assert.Equal(t, openID, m.CurrentTranscriptID())
	current, err := ts.LoadCurrentID()
	require.NoError(t, err)
	assert.Equal(t, openID, current)
	after, err := ts.List()
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	// The reply lands in the transcript that was open all along
	m.Store.CommitAgentMessage("answer")
	stored, err := ts.Load(openID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, SeedTurns+4)
	assert.Equal(t, "second", stored.Messages[4].Text)

	fresh, err := ts.Load(other.ID)
	require.NoError(t, err)
	assert.Len(t, fresh.Messages, SeedTurns)
}

func TestPersister_SwitchRestore(t *testing.T) {
	w := &recordingWriter{}
	p := NewPersister(w, "first", SeedMessages())

	restore := p.Switch("second", nil)
	assert.Equal(t, "second", p.TranscriptID())
	restore()
	assert.Equal(t, "first", p.TranscriptID())

	require.NoError(t, p.Sync(SeedMessages()))
	assert.Empty(t, w.appended, "greeting was already stored in the first transcript")
}

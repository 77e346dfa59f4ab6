package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/config"
	appmodel "helpdesk/model"
	"helpdesk/storage"
)

func newHistoryView(t *testing.T) (AppView, *storage.TranscriptStore) {
	t.Helper()
	transcripts, err := storage.NewTranscriptStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		AgentURL:       "http://127.0.0.1:1",
		StreamPath:     config.DefaultStreamPath,
		SentinelLength: config.DefaultSentinelLength,
		HistoryEnabled: true,
	}
	m, err := appmodel.NewModel(cfg, transcripts, "test")
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	view := NewAppView(m)
	t.Cleanup(view.Close)
	updated, _ := view.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(AppView), transcripts
}

func TestTranscriptListOpenAndDelete(t *testing.T) {
	view, transcripts := newHistoryView(t)
	other, err := transcripts.Create("Старое обращение")
	require.NoError(t, err)

	updated, cmd := view.Update(altKey('o'))
	view = updated.(AppView)
	require.True(t, view.showTranscripts)
	require.NotNil(t, cmd)

	listMsg, ok := cmd().(transcriptsListMsg)
	require.True(t, ok)
	require.NoError(t, listMsg.Err)
	require.Len(t, listMsg.Transcripts, 2)

	updated, _ = view.Update(listMsg)
	view = updated.(AppView)
	assert.Contains(t, view.View(), "Старое обращение")

	// Select the transcript that is not open
	for i, meta := range view.transcripts {
		if meta.ID == other.ID {
			view.selectedTranscriptIdx = i
		}
	}

	updated, _ = view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	view = updated.(AppView)
	require.NotNil(t, view.confirmDelete)
	assert.Contains(t, view.View(), "Удалить обращение")

	updated, cmd = view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	view = updated.(AppView)
	assert.Nil(t, view.confirmDelete)
	require.NotNil(t, cmd)

	deleted, ok := cmd().(transcriptDeletedMsg)
	require.True(t, ok)
	require.NoError(t, deleted.Err)

	_, err = transcripts.Load(other.ID)
	assert.ErrorIs(t, err, storage.ErrTranscriptNotFound)
}

func TestTranscriptListRefusesToDeleteOpenConversation(t *testing.T) {
	view, transcripts := newHistoryView(t)
	list, err := transcripts.List()
	require.NoError(t, err)

	view.showTranscripts = true
	updated, _ := view.Update(transcriptsListMsg{Transcripts: list})
	view = updated.(AppView)

	updated, _ = view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	view = updated.(AppView)

	assert.Nil(t, view.confirmDelete)
	assert.Equal(t, "Нельзя удалить открытое обращение", view.flash)
}

func TestTranscriptListEscCloses(t *testing.T) {
	view, _ := newHistoryView(t)
	view.showTranscripts = true

	updated, _ := view.Update(tea.KeyMsg{Type: tea.KeyEsc})
	view = updated.(AppView)
	assert.False(t, view.showTranscripts)
}

package model

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"helpdesk/config"
)

// SubmitQuestionCmd runs a whole cycle off the UI goroutine. Progress reaches
// the UI through the StoreWatcher; the final outcome arrives as CycleDoneMsg.
func (m *Model) SubmitQuestionCmd(question string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.Ask(context.Background(), question)
		return CycleDoneMsg{Question: question, Result: res, Err: err}
	}
}

// PingCmd checks the agent server.
func (m *Model) PingCmd() tea.Cmd {
	client := m.Client
	return func() tea.Msg {
		info, err := client.Ping(context.Background())
		if err != nil && config.DebugLog != nil {
			config.DebugLog.Warn().Err(err).Str("url", client.BaseURL()).Msg("agent ping failed")
		}
		return ServerInfoMsg{Info: info, Err: err}
	}
}

// ToggleReactionCmd applies a reaction and reports the result.
func (m *Model) ToggleReactionCmd(index int, r Reaction) tea.Cmd {
	return func() tea.Msg {
		got, err := m.ToggleReaction(index, r)
		return ReactionChangedMsg{MessageIndex: index, Reaction: got, Err: err}
	}
}

// NewSessionCmd starts a fresh conversation.
func (m *Model) NewSessionCmd() tea.Cmd {
	return func() tea.Msg {
		return NewSessionMsg{Err: m.NewSession()}
	}
}

// FetchTranscriptList retrieves the list of saved transcripts
func (m *Model) FetchTranscriptList() tea.Cmd {
	if m.Transcripts == nil {
		return nil
	}
	transcripts := m.Transcripts
	return func() tea.Msg {
		list, err := transcripts.List()
		return TranscriptsListMsg{Transcripts: list, Err: err}
	}
}

// LoadTranscript loads a transcript by ID
func (m *Model) LoadTranscript(id string) tea.Cmd {
	if m.Transcripts == nil {
		return nil
	}
	transcripts := m.Transcripts
	return func() tea.Msg {
		t, err := transcripts.Load(id)
		return TranscriptLoadedMsg{Transcript: t, Err: err}
	}
}

// DeleteTranscriptCmd removes a stored conversation.
func (m *Model) DeleteTranscriptCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return TranscriptDeletedMsg{ID: id, Err: m.DeleteTranscript(id)}
	}
}

// SearchTranscriptsCmd fuzzy-searches all stored conversations, skipping the
// greeting.
func (m *Model) SearchTranscriptsCmd(query string) tea.Cmd {
	if m.SearchIndex == nil {
		return nil
	}
	index := m.SearchIndex
	return func() tea.Msg {
		matches, err := index.SearchAllTranscripts(query, SeedTurns)
		return SearchResultsMsg{Query: query, Matches: matches, Err: err}
	}
}

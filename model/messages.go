package model

import (
	"helpdesk/agent"
	"helpdesk/storage"
)

// StoreChangedMsg carries the latest store state to the UI.
type StoreChangedMsg struct {
	Snapshot Snapshot
}

// CycleDoneMsg is sent when SubmitQuestion returns.
type CycleDoneMsg struct {
	Question string
	Result   Result
	Err      error
}

type MarkdownRenderedMsg struct {
	MessageIndex int
	Rendered     string
}

type ServerInfoMsg struct {
	Info *agent.ServerInfo
	Err  error
}

type ReactionChangedMsg struct {
	MessageIndex int
	Reaction     Reaction
	Err          error
}

type TranscriptsListMsg struct {
	Transcripts []storage.TranscriptMetadata
	Err         error
}

type TranscriptDeletedMsg struct {
	ID  string
	Err error
}

type TranscriptLoadedMsg struct {
	Transcript *storage.Transcript
	Err        error
}

type NewSessionMsg struct {
	Err error
}

type SearchResultsMsg struct {
	Query   string
	Matches []storage.TranscriptMessageMatch
	Err     error
}

type ClipboardCopiedMsg struct {
	Err error
}

type FlashTickMsg struct{}

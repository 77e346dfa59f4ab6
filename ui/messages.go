package ui

import (
	"helpdesk/model"
)

// Message type aliases - these are defined in the model package
type storeChangedMsg = model.StoreChangedMsg
type cycleDoneMsg = model.CycleDoneMsg
type markdownRenderedMsg = model.MarkdownRenderedMsg
type serverInfoMsg = model.ServerInfoMsg
type reactionChangedMsg = model.ReactionChangedMsg
type transcriptLoadedMsg = model.TranscriptLoadedMsg
type transcriptsListMsg = model.TranscriptsListMsg
type transcriptDeletedMsg = model.TranscriptDeletedMsg
type newSessionMsg = model.NewSessionMsg
type searchResultsMsg = model.SearchResultsMsg
type clipboardCopiedMsg = model.ClipboardCopiedMsg
type flashTickMsg = model.FlashTickMsg

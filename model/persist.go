package model

import (
	"sync"

	"helpdesk/config"
	"helpdesk/storage"
)

// TranscriptWriter is the subset of storage.TranscriptStore the persister needs.
type TranscriptWriter interface {
	AppendMessage(transcriptID string, msg storage.Message) error
	SetReaction(transcriptID string, index int, reaction string) error
}

// Persister mirrors committed messages and reactions of a Store into a
// transcript. Only idle snapshots are written, so partial replies never
// reach the database.
type Persister struct {
	mu           sync.Mutex
	writer       TranscriptWriter
	transcriptID string
	written      []Reaction
}

// NewPersister starts from a transcript that already holds existing.
func NewPersister(writer TranscriptWriter, transcriptID string, existing []Message) *Persister {
	p := &Persister{writer: writer}
	p.Switch(transcriptID, existing)
	return p
}

// Switch points the persister at another transcript. The returned func
// points it back at the previous one.
func (p *Persister) Switch(transcriptID string, existing []Message) (restore func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prevID, prevWritten := p.transcriptID, p.written
	p.transcriptID = transcriptID
	p.written = make([]Reaction, len(existing))
	for i, msg := range existing {
		p.written[i] = msg.Reaction
	}

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.transcriptID, p.written = prevID, prevWritten
	}
}

func (p *Persister) TranscriptID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transcriptID
}

// Observe is a Store observer.
func (p *Persister) Observe(snap Snapshot) {
	if snap.Status != StatusIdle {
		return
	}
	if err := p.Sync(snap.Messages); err != nil && config.DebugLog != nil {
		config.DebugLog.Error().Err(err).Str("transcript", p.TranscriptID()).Msg("failed to persist conversation")
	}
}

// Sync writes messages not yet stored and reactions that changed.
func (p *Persister) Sync(messages []Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.transcriptID == "" {
		return nil
	}

	for i, msg := range messages {
		if i < len(p.written) {
			if p.written[i] != msg.Reaction {
				if err := p.writer.SetReaction(p.transcriptID, i, msg.Reaction.String()); err != nil {
					return err
				}
				p.written[i] = msg.Reaction
			}
			continue
		}

		err := p.writer.AppendMessage(p.transcriptID, storage.Message{
			Index:     i,
			Author:    string(msg.Author),
			Text:      msg.Text,
			Reaction:  msg.Reaction.String(),
			Timestamp: msg.Timestamp,
		})
		if err != nil {
			return err
		}
		p.written = append(p.written, msg.Reaction)
	}
	return nil
}

// MessagesFromTranscript converts stored messages back to conversation turns.
func MessagesFromTranscript(t *storage.Transcript) []Message {
	messages := make([]Message, 0, len(t.Messages))
	for _, sm := range t.Messages {
		author := AuthorUser
		if sm.Author == string(AuthorAgent) {
			author = AuthorAgent
		}
		messages = append(messages, Message{
			Author:    author,
			Text:      sm.Text,
			Reaction:  ParseReaction(sm.Reaction),
			Timestamp: sm.Timestamp,
		})
	}
	return messages
}

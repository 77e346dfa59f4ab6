package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"helpdesk/agent"
	"helpdesk/config"
	"helpdesk/storage"
)

var (
	// ErrHistoryDisabled is returned by transcript operations when history is off.
	ErrHistoryDisabled = errors.New("history is disabled")
	// ErrCurrentTranscript is returned when deleting the open conversation.
	ErrCurrentTranscript = errors.New("cannot delete the open conversation")
)

// Model holds the core application data and business logic state
type Model struct {
	// Core dependencies
	Config      *config.Config
	Client      *agent.Client
	Transcripts *storage.TranscriptStore
	SearchIndex *storage.SearchIndex

	// Application data
	Store      *Store
	Controller *Controller
	Persister  *Persister

	// Application metadata
	Version string
}

// NewModel wires the conversation store, the controller and, when history is
// enabled, transcript persistence. The last transcript is resumed if there
// is one.
func NewModel(cfg *config.Config, transcripts *storage.TranscriptStore, version string) (*Model, error) {
	client, err := agent.NewClient(agent.Options{
		BaseURL:        cfg.AgentURL,
		StreamPath:     cfg.StreamPath,
		ConnectTimeout: cfg.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}

	m := &Model{
		Config:      cfg,
		Client:      client,
		Transcripts: transcripts,
		Version:     version,
	}

	messages := SeedMessages()
	var current *storage.Transcript
	if transcripts != nil {
		m.SearchIndex = storage.NewSearchIndex(transcripts)
		current, err = m.resumeTranscript()
		if err != nil {
			return nil, err
		}
		if len(current.Messages) > 0 {
			messages = MessagesFromTranscript(current)
		}
	}

	m.Store = NewStore(messages)
	m.Controller = NewController(m.Store, client, agent.NewTerminator(cfg.Sentinel, cfg.SentinelLength))
	m.Controller.SetRequestTimeout(cfg.RequestTimeout)

	if current != nil {
		m.Persister = NewPersister(transcripts, current.ID, MessagesFromTranscript(current))
		m.Store.Subscribe(m.Persister.Observe)
		// Seed a fresh transcript with the greeting
		if err := m.Persister.Sync(m.Store.Snapshot().Messages); err != nil {
			return nil, fmt.Errorf("failed to save greeting: %w", err)
		}
	}

	return m, nil
}

// resumeTranscript loads the transcript used last time, or starts a new one.
func (m *Model) resumeTranscript() (*storage.Transcript, error) {
	id, err := m.Transcripts.LoadCurrentID()
	if err == nil {
		t, err := m.Transcripts.Load(id)
		if err == nil {
			if config.DebugLog != nil {
				config.DebugLog.Info().Str("transcript", id).Int("messages", len(t.Messages)).Msg("resuming transcript")
			}
			return t, nil
		}
		if !errors.Is(err, storage.ErrTranscriptNotFound) {
			return nil, err
		}
	} else if !errors.Is(err, storage.ErrTranscriptNotFound) {
		return nil, err
	}
	return m.createTranscript()
}

func (m *Model) createTranscript() (*storage.Transcript, error) {
	t, err := m.Transcripts.Create(TranscriptName(time.Now()))
	if err != nil {
		return nil, err
	}
	if err := m.Transcripts.SaveCurrentID(t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

// TranscriptName is the default name of a transcript started at t.
func TranscriptName(t time.Time) string {
	return "Обращение " + t.Format("2006-01-02 15:04")
}

// Ask submits a question and blocks until the cycle finishes.
func (m *Model) Ask(ctx context.Context, question string) (Result, error) {
	return m.Controller.SubmitQuestion(ctx, strings.TrimRight(question, "\n"))
}

// ToggleReaction flips the reaction on an agent message. Persistence follows
// through the store observer.
func (m *Model) ToggleReaction(index int, r Reaction) (Reaction, error) {
	return m.Store.ToggleReaction(index, r)
}

// NewSession starts a fresh conversation with the greeting. It fails with
// ErrBusy while a question is in flight.
func (m *Model) NewSession() error {
	return m.Controller.WhileIdle(func() error {
		if m.Persister == nil {
			return m.Store.Reset(SeedMessages())
		}

		t, err := m.Transcripts.Create(TranscriptName(time.Now()))
		if err != nil {
			return fmt.Errorf("failed to start transcript: %w", err)
		}
		restore := m.Persister.Switch(t.ID, nil)
		if err := m.Store.Reset(SeedMessages()); err != nil {
			restore()
			if derr := m.Transcripts.Delete(t.ID); derr != nil && config.DebugLog != nil {
				config.DebugLog.Warn().Err(derr).Str("transcript", t.ID).Msg("failed to drop unused transcript")
			}
			return err
		}
		return m.Transcripts.SaveCurrentID(t.ID)
	})
}

// SwitchTranscript replaces the conversation with a stored one and makes it
// current.
func (m *Model) SwitchTranscript(t *storage.Transcript) error {
	if m.Persister == nil {
		return ErrHistoryDisabled
	}

	stored := MessagesFromTranscript(t)
	messages := stored
	if len(messages) == 0 {
		messages = SeedMessages()
	}

	return m.Controller.WhileIdle(func() error {
		restore := m.Persister.Switch(t.ID, stored)
		if err := m.Store.Reset(messages); err != nil {
			restore()
			return err
		}
		return m.Transcripts.SaveCurrentID(t.ID)
	})
}

// DeleteTranscript removes a stored conversation other than the open one.
func (m *Model) DeleteTranscript(id string) error {
	if m.Transcripts == nil {
		return ErrHistoryDisabled
	}
	if id == m.CurrentTranscriptID() {
		return ErrCurrentTranscript
	}
	return m.Transcripts.Delete(id)
}

// CurrentTranscriptID is empty when history is disabled.
func (m *Model) CurrentTranscriptID() string {
	if m.Persister == nil {
		return ""
	}
	return m.Persister.TranscriptID()
}

func (m *Model) Close() error {
	m.Controller.Cancel()
	if m.Transcripts != nil {
		return m.Transcripts.Close()
	}
	return nil
}

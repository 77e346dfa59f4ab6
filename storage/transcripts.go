package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Message is a stored conversational turn
type Message struct {
	Index     int
	Author    string
	Text      string
	Reaction  string
	Timestamp time.Time
}

// Transcript is one stored conversation
type Transcript struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
}

// TranscriptMetadata is a lightweight version of Transcript for listing
type TranscriptMetadata struct {
	ID           string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

var (
	ErrTranscriptNotFound = errors.New("transcript not found")
	// ErrMessageConflict is returned when another writer already stored a
	// different message at the same index.
	ErrMessageConflict = errors.New("transcript already has a different message at this index")
)

// TranscriptStore persists transcripts and reactions in SQLite
type TranscriptStore struct {
	db *sql.DB
}

func NewTranscriptStore(dataDir string) (*TranscriptStore, error) {
	dbPath := filepath.Join(dataDir, "transcripts.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; the TUI and the store observer share this handle
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &TranscriptStore{db: db}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (ts *TranscriptStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		transcript_id TEXT NOT NULL REFERENCES transcripts(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		author TEXT NOT NULL,
		text TEXT NOT NULL,
		reaction TEXT NOT NULL DEFAULT 'none',
		created_at DATETIME NOT NULL,
		PRIMARY KEY (transcript_id, idx)
	);
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := ts.db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return err
	}
	_, err := ts.db.Exec(schema)
	return err
}

func (ts *TranscriptStore) Close() error {
	return ts.db.Close()
}

// Create starts an empty transcript
func (ts *TranscriptStore) Create(name string) (*Transcript, error) {
	now := time.Now().UTC()
	t := &Transcript{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := ts.db.Exec(
		`INSERT INTO transcripts (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Name, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript: %w", err)
	}
	return t, nil
}

// AppendMessage stores msg at msg.Index. Writing the same message twice is
// harmless; a different message at a taken index fails with
// ErrMessageConflict and leaves the stored one alone.
func (ts *TranscriptStore) AppendMessage(transcriptID string, msg Message) error {
	tx, err := ts.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reaction := msg.Reaction
	if reaction == "" {
		reaction = "none"
	}

	res, err := tx.Exec(
		`INSERT INTO messages (transcript_id, idx, author, text, reaction, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(transcript_id, idx) DO NOTHING`,
		transcriptID, msg.Index, msg.Author, msg.Text, reaction, msg.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		var author, text string
		err := tx.QueryRow(
			`SELECT author, text FROM messages WHERE transcript_id = ? AND idx = ?`,
			transcriptID, msg.Index,
		).Scan(&author, &text)
		if err != nil {
			return fmt.Errorf("failed to read stored message: %w", err)
		}
		if author != msg.Author || text != msg.Text {
			return fmt.Errorf("%w: message %d", ErrMessageConflict, msg.Index)
		}
		return nil
	}

	if err := touch(tx, transcriptID); err != nil {
		return err
	}
	return tx.Commit()
}

// SetReaction updates the reaction of a stored message
func (ts *TranscriptStore) SetReaction(transcriptID string, index int, reaction string) error {
	res, err := ts.db.Exec(
		`UPDATE messages SET reaction = ? WHERE transcript_id = ? AND idx = ?`,
		reaction, transcriptID, index,
	)
	if err != nil {
		return fmt.Errorf("failed to update reaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update reaction: message %d: %w", index, ErrTranscriptNotFound)
	}
	return nil
}

func touch(tx *sql.Tx, transcriptID string) error {
	res, err := tx.Exec(`UPDATE transcripts SET updated_at = ? WHERE id = ?`, time.Now().UTC(), transcriptID)
	if err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTranscriptNotFound
	}
	return nil
}

// Load reads a transcript with its messages in order
func (ts *TranscriptStore) Load(id string) (*Transcript, error) {
	t := &Transcript{ID: id}
	err := ts.db.QueryRow(
		`SELECT name, created_at, updated_at FROM transcripts WHERE id = ?`, id,
	).Scan(&t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTranscriptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	rows, err := ts.db.Query(
		`SELECT idx, author, text, reaction, created_at FROM messages WHERE transcript_id = ? ORDER BY idx`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Index, &m.Author, &m.Text, &m.Reaction, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		t.Messages = append(t.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return t, nil
}

// List returns metadata for all transcripts, newest first
func (ts *TranscriptStore) List() ([]TranscriptMetadata, error) {
	rows, err := ts.db.Query(`
		SELECT t.id, t.name, t.created_at, t.updated_at, COUNT(m.idx)
		FROM transcripts t LEFT JOIN messages m ON m.transcript_id = t.id
		GROUP BY t.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	var list []TranscriptMetadata
	for rows.Next() {
		var md TranscriptMetadata
		if err := rows.Scan(&md.ID, &md.Name, &md.CreatedAt, &md.UpdatedAt, &md.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		list = append(list, md)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcripts: %w", err)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
	return list, nil
}

// Delete removes a transcript and its messages
func (ts *TranscriptStore) Delete(id string) error {
	res, err := ts.db.Exec(`DELETE FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTranscriptNotFound
	}
	return nil
}

// SaveCurrentID remembers the transcript to resume on next start
func (ts *TranscriptStore) SaveCurrentID(id string) error {
	_, err := ts.db.Exec(
		`INSERT INTO meta (key, value) VALUES ('current_transcript', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to save current transcript: %w", err)
	}
	return nil
}

// LoadCurrentID returns the transcript saved by SaveCurrentID
func (ts *TranscriptStore) LoadCurrentID() (string, error) {
	var id string
	err := ts.db.QueryRow(`SELECT value FROM meta WHERE key = 'current_transcript'`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrTranscriptNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load current transcript: %w", err)
	}
	return id, nil
}

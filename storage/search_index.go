package storage

import (
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
)

type TranscriptMessageMatch struct {
	TranscriptID   string
	TranscriptName string
	MessageIndex   int
	Author         string
	Content        string
	Preview        string
	Timestamp      time.Time
	Score          int
}

const previewLength = 100

type SearchIndex struct {
	storage *TranscriptStore
}

func NewSearchIndex(storage *TranscriptStore) *SearchIndex {
	return &SearchIndex{storage: storage}
}

// messageSource adapts a flat message list to fuzzy.Source
type messageSource []TranscriptMessageMatch

func (s messageSource) String(i int) string { return s[i].Content }
func (s messageSource) Len() int            { return len(s) }

// SearchAllTranscripts fuzzy-matches query against every stored message.
// skipFirst leading messages of each transcript (the greeting) are ignored.
// Results are ordered best match first.
func (si *SearchIndex) SearchAllTranscripts(query string, skipFirst int) ([]TranscriptMessageMatch, error) {
	if strings.TrimSpace(query) == "" {
		return []TranscriptMessageMatch{}, nil
	}

	list, err := si.storage.List()
	if err != nil {
		return nil, err
	}

	var candidates messageSource
	for _, meta := range list {
		transcript, err := si.storage.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, msg := range transcript.Messages {
			if msg.Index < skipFirst {
				continue
			}
			candidates = append(candidates, TranscriptMessageMatch{
				TranscriptID:   transcript.ID,
				TranscriptName: transcript.Name,
				MessageIndex:   msg.Index,
				Author:         msg.Author,
				Content:        msg.Text,
				Preview:        preview(msg.Text),
				Timestamp:      msg.Timestamp,
			})
		}
	}

	found := fuzzy.FindFrom(query, candidates)
	matches := make([]TranscriptMessageMatch, 0, len(found))
	for _, f := range found {
		m := candidates[f.Index]
		m.Score = f.Score
		matches = append(matches, m)
	}

	// fuzzy already sorts by score; keep newer messages first among ties
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Timestamp.After(matches[j].Timestamp)
	})

	return matches, nil
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > previewLength {
		return string(runes[:previewLength]) + "..."
	}
	return text
}

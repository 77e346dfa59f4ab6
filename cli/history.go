package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"helpdesk/model"
	"helpdesk/storage"
)

const historyTimeFormat = "2006-01-02 15:04"

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [query]",
		Short: "List stored conversations, or fuzzy-search their messages",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.HistoryEnabled {
				return errors.New("history is disabled in config.toml")
			}

			transcripts, err := storage.NewTranscriptStore(cfg.DataDir())
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer transcripts.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return listTranscripts(out, transcripts, limit)
			}
			return searchTranscripts(out, storage.NewSearchIndex(transcripts), strings.Join(args, " "), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries to print (0 for all)")
	cmd.AddCommand(newHistoryDeleteCommand())
	return cmd
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored conversation (the ID may be shortened)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.HistoryEnabled {
				return errors.New("history is disabled in config.toml")
			}

			unlock, err := lockDataDir(cfg)
			if err != nil {
				return fmt.Errorf("cannot delete while helpdesk is open: %w", err)
			}
			defer unlock()

			transcripts, err := storage.NewTranscriptStore(cfg.DataDir())
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer transcripts.Close()

			meta, err := findTranscript(transcripts, args[0])
			if err != nil {
				return err
			}
			if err := transcripts.Delete(meta.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", meta.Name, shortID(meta.ID))
			return nil
		},
	}
}

// findTranscript resolves a full or shortened transcript ID.
func findTranscript(transcripts *storage.TranscriptStore, prefix string) (storage.TranscriptMetadata, error) {
	list, err := transcripts.List()
	if err != nil {
		return storage.TranscriptMetadata{}, fmt.Errorf("failed to list transcripts: %w", err)
	}

	var found []storage.TranscriptMetadata
	for _, meta := range list {
		if meta.ID == prefix {
			return meta, nil
		}
		if strings.HasPrefix(meta.ID, prefix) {
			found = append(found, meta)
		}
	}

	switch len(found) {
	case 0:
		return storage.TranscriptMetadata{}, fmt.Errorf("%w: %s", storage.ErrTranscriptNotFound, prefix)
	case 1:
		return found[0], nil
	default:
		return storage.TranscriptMetadata{}, fmt.Errorf("ID %q matches %d conversations", prefix, len(found))
	}
}

func listTranscripts(out io.Writer, transcripts *storage.TranscriptStore, limit int) error {
	list, err := transcripts.List()
	if err != nil {
		return fmt.Errorf("failed to list transcripts: %w", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No conversations yet.")
		return nil
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	currentID, err := transcripts.LoadCurrentID()
	if err != nil && !errors.Is(err, storage.ErrTranscriptNotFound) {
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "ID", "NAME", "MESSAGES", "UPDATED")
	for _, meta := range list {
		marker := ""
		if meta.ID == currentID {
			marker = "*"
		}
		t.Row(marker, shortID(meta.ID), meta.Name, strconv.Itoa(meta.MessageCount),
			meta.UpdatedAt.Local().Format(historyTimeFormat))
	}
	fmt.Fprintln(out, t.String())
	return nil
}

func searchTranscripts(out io.Writer, index *storage.SearchIndex, query string, limit int) error {
	matches, err := index.SearchAllTranscripts(query, model.SeedTurns)
	if err != nil {
		return fmt.Errorf("failed to search transcripts: %w", err)
	}
	if len(matches) == 0 {
		fmt.Fprintf(out, "No messages match %q.\n", query)
		return nil
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	for _, match := range matches {
		fmt.Fprintf(out, "%s  %s  [%s] %s\n  %s\n",
			shortID(match.TranscriptID),
			match.TranscriptName,
			match.Timestamp.Local().Format(historyTimeFormat),
			match.Author,
			match.Preview,
		)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"helpdesk/config"
	"helpdesk/model"
)

func newAskCommand() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the reply as it streams",
		Long: `Ask sends a single question and writes the reply to stdout while it is
being generated. With --save the question continues the current conversation
and both turns are stored in the history.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if save && cfg.HistoryEnabled {
				unlock, err := lockDataDir(cfg)
				if err != nil {
					return fmt.Errorf("cannot save the question: %w", err)
				}
				defer unlock()
			}

			m, err := newModel(cfg, save, cmd.Root().Version)
			if err != nil {
				return err
			}
			defer m.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return runAsk(ctx, m, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "continue the current conversation and store the reply")
	return cmd
}

func runAsk(ctx context.Context, m *model.Model, question string, out io.Writer) error {
	printer := newStreamPrinter(out, sentinelRunes(m.Config))
	unsubscribe := m.Store.Subscribe(printer.observe)
	defer unsubscribe()

	result, err := m.Ask(ctx, question)
	if err != nil {
		return err
	}
	printer.finish(result.Reply)

	switch result.Outcome {
	case model.OutcomeFailed:
		return fmt.Errorf("agent request failed: %w", result.Cause)
	case model.OutcomeCancelled:
		return fmt.Errorf("question interrupted: %w", result.Cause)
	}
	return nil
}

func sentinelRunes(cfg *config.Config) int {
	if cfg.Sentinel != "" {
		return utf8.RuneCountInString(cfg.Sentinel)
	}
	return cfg.SentinelLength
}

// streamPrinter writes a streaming reply to out while holding back the last
// holdback runes, which may turn out to be the end-of-reply marker.
type streamPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	holdback int
	shown    strings.Builder
	runes    int
}

func newStreamPrinter(out io.Writer, holdback int) *streamPrinter {
	return &streamPrinter{out: out, holdback: holdback}
}

func (p *streamPrinter) observe(snap model.Snapshot) {
	if !snap.HasBuffer() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	buffer := []rune(snap.Buffer)
	safe := len(buffer) - p.holdback
	if safe <= p.runes {
		return
	}
	chunk := string(buffer[p.runes:safe])
	fmt.Fprint(p.out, chunk)
	p.shown.WriteString(chunk)
	p.runes = safe
}

// finish prints whatever part of the committed reply has not been shown. If
// the reply does not continue what was shown (the fallback after a failed
// stream), it starts on a new line.
func (p *streamPrinter) finish(reply string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	shown := p.shown.String()
	switch {
	case strings.HasPrefix(reply, shown):
		fmt.Fprint(p.out, reply[len(shown):])
	case shown != "":
		fmt.Fprint(p.out, "\n"+reply)
	default:
		fmt.Fprint(p.out, reply)
	}
	if reply != "" || shown != "" {
		fmt.Fprintln(p.out)
	}
}

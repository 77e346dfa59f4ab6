package cli

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"helpdesk/config"
	"helpdesk/model"
	"helpdesk/storage"
	"helpdesk/ui"
)

type rootOptions struct {
	agentURL string
	dataDir  string
}

// Execute runs the helpdesk command line.
func Execute(version string) error {
	return NewRootCommand(version).Execute()
}

// NewRootCommand builds the command tree. Without a subcommand it starts the
// terminal chat.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "helpdesk",
		Short: "Terminal chat with the tech-support agent",
		Long: `helpdesk is a terminal client for the tech-support agent.
It streams replies as they are generated, keeps a history of conversations
and lets you rate the agent's answers.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.apply()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(version)
		},
	}

	root.PersistentFlags().StringVar(&opts.agentURL, "agent-url", "",
		"agent server base URL (overrides "+config.EnvAgentURL+")")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "",
		"directory for config, history and logs (overrides "+config.EnvDataDir+")")

	root.AddCommand(
		newAskCommand(),
		newStatusCommand(),
		newHistoryCommand(),
	)
	return root
}

// apply loads .env and then lets flags win over it and the config files.
func (o *rootOptions) apply() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	if o.agentURL != "" {
		if err := os.Setenv(config.EnvAgentURL, o.agentURL); err != nil {
			return err
		}
	}
	if o.dataDir != "" {
		if err := os.Setenv(config.EnvDataDir, o.dataDir); err != nil {
			return err
		}
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.InitDebugLog(cfg.DataDir())
	return cfg, nil
}

// openTranscripts returns nil when history is disabled.
func openTranscripts(cfg *config.Config) (*storage.TranscriptStore, error) {
	if !cfg.HistoryEnabled {
		return nil, nil
	}
	transcripts, err := storage.NewTranscriptStore(cfg.DataDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return transcripts, nil
}

// newModel builds the conversation. Without history the conversation starts
// from the greeting and is not stored.
func newModel(cfg *config.Config, withHistory bool, version string) (*model.Model, error) {
	if !withHistory {
		return model.NewModel(cfg, nil, version)
	}
	transcripts, err := openTranscripts(cfg)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModel(cfg, transcripts, version)
	if err != nil {
		if transcripts != nil {
			transcripts.Close()
		}
		return nil, err
	}
	return m, nil
}

// lockDataDir takes the instance lock for every command that writes history,
// so only one of them appends to the current transcript at a time.
func lockDataDir(cfg *config.Config) (func(), error) {
	lock, err := storage.AcquireInstanceLock(cfg.DataDir())
	if err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Release(); err != nil && config.DebugLog != nil {
			config.DebugLog.Warn().Err(err).Msg("failed to release instance lock")
		}
	}, nil
}

func runTUI(version string) error {
	cfg, err := loadConfig()
	if err != nil {
		showStartupError(err)
		return err
	}

	unlock, err := lockDataDir(cfg)
	if err != nil {
		showStartupError(err)
		return err
	}
	defer unlock()

	m, err := newModel(cfg, true, version)
	if err != nil {
		showStartupError(err)
		return err
	}
	defer func() {
		if err := m.Close(); err != nil && config.DebugLog != nil {
			config.DebugLog.Warn().Err(err).Msg("failed to close history")
		}
	}()

	view := ui.NewAppView(m)
	defer view.Close()

	p := tea.NewProgram(view, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run helpdesk: %w", err)
	}
	return nil
}

func showStartupError(err error) {
	hint := "Проверьте config.toml в каталоге данных или запустите с " + config.EnvDebug + "=1"
	if errors.Is(err, storage.ErrInstanceLocked) {
		hint = "Закройте другое окно helpdesk и повторите запуск"
	}
	modal := ui.NewStartupErrorModal("Не удалось запустить helpdesk", err, hint)
	if _, runErr := tea.NewProgram(modal, tea.WithAltScreen()).Run(); runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
	}
}

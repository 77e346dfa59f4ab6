package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"helpdesk/agent"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the agent server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client, err := agent.NewClient(agent.Options{
				BaseURL:        cfg.AgentURL,
				StreamPath:     cfg.StreamPath,
				ConnectTimeout: cfg.ConnectTimeout,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server:  %s\n", client.BaseURL())
			fmt.Fprintf(out, "Stream:  %s\n", client.StreamURL())

			info, err := client.Ping(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, "Status:  unreachable")
				return err
			}

			fmt.Fprintln(out, "Status:  online")
			if info.Message != "" {
				fmt.Fprintf(out, "Message: %s\n", info.Message)
			}
			if info.Version != "" {
				fmt.Fprintf(out, "Version: %s\n", info.Version)
			}
			return nil
		},
	}
}

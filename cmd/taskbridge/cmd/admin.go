package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"taskbridge/internal/credentials"
	"taskbridge/internal/tui"
	"taskbridge/internal/utils"
)

// newTUICmd creates the 'tui' subcommand
func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive terminal UI",
		Long:  "Browse backends and edit tasks interactively. Logs go to a file while the UI runs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(a.stdout) {
				return utils.WrapWithSuggestion(errors.New("tui requires an interactive terminal"),
					"Use 'taskbridge list' for non-interactive output")
			}

			s, err := a.newSession(cmd)
			if err != nil {
				return err
			}

			bl, err := utils.NewBackgroundLoggerWithEnabled(s.conf.IsBackgroundLoggingEnabled())
			if err != nil {
				utils.Warnf("background log unavailable: %v", err)
			}
			utils.SetOutput(bl)
			a.shutdown.RegisterCleanup("background log", func(context.Context) error {
				utils.SetOutput(a.stderr)
				bl.Close()
				return nil
			})
			if bl.IsEnabled() {
				utils.Debugf("tui logging to %s", bl.GetLogPath())
			}

			ctx := cmd.Context()
			p := tea.NewProgram(
				tui.New(s.facade, s.kind, tui.WithContext(ctx)),
				tea.WithAltScreen(),
				tea.WithContext(ctx),
				tea.WithInput(a.stdin()),
				tea.WithOutput(a.stdout),
			)
			_, err = p.Run()
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newCredentialsCmd creates the 'credentials' subcommand for credential management
func newCredentialsCmd(a *app) *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage backend credentials",
		Long:  "Store, inspect and remove API tokens kept in the system keyring.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	handler := func() *credentials.CLIHandler {
		return credentials.NewCLIHandler(a.credentials(), a.stdin(), a.stdout, a.stderr)
	}

	credentialsCmd.AddCommand(&cobra.Command{
		Use:   "set BACKEND [ACCOUNT]",
		Short: "Store an API token in the system keyring",
		Long:  "Prompt for an API token and store it in the system keyring. Input is hidden on a terminal.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := handler().Set(cmd.Context(), args[0], accountArg(args)); err != nil {
				return err
			}
			a.completed()
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	credentialsCmd.AddCommand(&cobra.Command{
		Use:   "get BACKEND [ACCOUNT]",
		Short: "Show where an API token comes from",
		Long:  "Report whether a token is found in the keyring or the environment. The token itself is never printed.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			if err := handler().Get(cmd.Context(), args[0], accountArg(args), jsonOutput); err != nil {
				return err
			}
			if !jsonOutput {
				a.infoOnly()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	credentialsCmd.AddCommand(&cobra.Command{
		Use:   "delete BACKEND [ACCOUNT]",
		Short: "Remove an API token from the system keyring",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := handler().Delete(cmd.Context(), args[0], accountArg(args)); err != nil {
				return err
			}
			a.completed()
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return credentialsCmd
}

func accountArg(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}

// newConfigCmd creates the 'config' subcommand
func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprintln(a.stdout, a.configPath(cmd))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults, environment overrides and flags are applied. Creates the file from the sample when missing.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := conf.Marshal()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(a.stdout, string(out))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return configCmd
}

// newVersionCmd creates the 'version' subcommand
func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _ = fmt.Fprintf(a.stdout, "taskbridge %s\n", Version)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

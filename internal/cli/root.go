// Package cli holds the cobra command tree of the todopro binary.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/todopro/internal/model"
)

var (
	configPath string
	serverURL  string
	cfg        *model.AppConfig
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "todopro",
		Short: "To-Do Pro - a terminal task manager with an account-backed sync",
		Long: `To-Do Pro keeps a personal task list in the terminal and stores it on a
remote server under your account.

Run without arguments to open the interactive client.`,
		PersistentPreRunE: loadConfig,
		RunE:              runTUI,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides client.server_url)")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(registerCmd, verifyCmd)
	rootCmd.AddCommand(forgotCmd, resetCmd)
	rootCmd.AddCommand(renameCmd, passwdCmd)
	rootCmd.AddCommand(exportCmd, importCmd)
	rootCmd.AddCommand(newVersionCmd(version))

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func loadConfig(_ *cobra.Command, _ []string) error {
	c, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if serverURL != "" {
		c.Client.ServerURL = serverURL
	}
	cfg = c
	return nil
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "todopro %s\n", version)
		},
	}
}

package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/todopro/internal/app"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive client (default)",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func runTUI(_ *cobra.Command, _ []string) (err error) {
	env, err := openClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := env.close(); err == nil {
			err = cerr
		}
	}()

	m := app.New(app.Options{
		Session: env.manager,
		Tasks:   env.tasks,
		Logger:  env.logger,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

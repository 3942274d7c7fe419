package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/todopro/internal/api"
	"github.com/nhle/todopro/internal/model"
	"github.com/nhle/todopro/internal/session"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the task collection as JSON",
	Long:  `Write the task collection of the signed-in user as JSON to file, or to stdout.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, env *clientEnv, args []string) error {
		if _, err := env.requireSession(ctx); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("creating %s: %w", args[0], err)
			}
			defer f.Close()
			w = f
		}
		return encodeTasks(w, env.tasks.Tasks())
	}),
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the task collection with a JSON file",
	Long: `Replace the task collection of the signed-in user with the tasks in a
JSON file written by export. The new collection is pushed to the server.`,
	Args: cobra.ExactArgs(1),
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, env *clientEnv, args []string) error {
		if _, err := env.requireSession(ctx); err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		tasks, err := decodeTasks(f, time.Now())
		if err != nil {
			return err
		}
		env.tasks.ReplaceTasks(tasks)
		if err := env.manager.Pusher().Flush(ctx); err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tasks\n", len(tasks))
		return nil
	}),
}

// encodeTasks writes tasks in the wire format of tasks/save.
func encodeTasks(w io.Writer, tasks []model.Task) error {
	out := make([]api.RemoteTask, len(tasks))
	for i, t := range tasks {
		out[i] = api.FromTask(t)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding tasks: %w", err)
	}
	return nil
}

// decodeTasks reads an exported collection. It accepts both the client
// and the database spelling of task fields and rejects invalid texts.
func decodeTasks(r io.Reader, now time.Time) ([]model.Task, error) {
	var remote []api.RemoteTask
	if err := json.NewDecoder(r).Decode(&remote); err != nil {
		return nil, fmt.Errorf("decoding tasks: %w", err)
	}

	tasks := session.NormalizeTasks(remote, now)
	for i, t := range tasks {
		if err := model.ValidateTaskText(t.Text); err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}
	}
	return tasks, nil
}

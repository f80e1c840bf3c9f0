package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewTasksCmd создаёт команду просмотра взведённых единиц планировщика.
func NewTasksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List scheduled, pending retry and running workflow tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := clientFn().ListTasks()
			if err != nil {
				return err
			}

			headers := []string{"WORKFLOW_ID", "KIND", "STATE", "DUE_AT", "ATTEMPT"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.ID, t.Kind, t.State, t.DueAt, strconv.Itoa(t.Attempt)}
			}

			outputFn().Print(headers, rows, tasks)
			return nil
		},
	}
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jzempel/continuity/internal/tracker"
)

// newTasksCmd builds the tasks command. JIRA sub-tasks know an in-between
// state, so only that tracker grows the --indeterminate flag.
func newTasksCmd(kind string) *cobra.Command {
	var (
		check         string
		uncheck       string
		indeterminate string
	)

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "list and manage the current item's tasks",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := newWorkflow()
			runGuarded("", func() error {
				return runTasks(w, check, uncheck, indeterminate)
			})
		},
	}

	cmd.Flags().StringVarP(&check, "check", "x", "", "mark task <number> complete")
	cmd.Flags().StringVarP(&uncheck, "uncheck", "o", "", "mark task <number> incomplete")
	if kind == "jira" {
		cmd.Flags().StringVarP(&indeterminate, "indeterminate", "i", "", "mark task <number> in progress")
	}

	return cmd
}

func runTasks(w *workflow, check, uncheck, indeterminate string) error {
	item, err := w.currentItem(w.branch)
	if err != nil {
		return err
	}
	tasks, err := w.adapter.ListTasks(w.ctx, item)
	if err != nil {
		return err
	}

	argument := check
	if argument == "" {
		argument = uncheck
	}
	if argument == "" {
		argument = indeterminate
	}
	if argument != "" {
		number, err := strconv.Atoi(argument)
		if err != nil || number < 1 || number > len(tasks) {
			fatal("Task number out of range.")
		}
		task := &tasks[number-1]

		if tt, ok := w.adapter.(tracker.TaskTransitioner); ok && indeterminate != "" {
			err = tt.SetTaskPhase(w.ctx, item, task, tracker.PhaseInProgress)
		} else {
			err = w.adapter.SetTask(w.ctx, item, task, check != "")
		}
		if err != nil {
			return err
		}
	}

	for _, task := range tasks {
		checkmark := ' '
		switch {
		case task.InProgress:
			checkmark = '-'
		case task.Checked:
			checkmark = 'x'
		}
		fmt.Printf("[%c] %d. %s\n", checkmark, task.Number, task.Description)
	}
	return nil
}

/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/josephgoksu/TaskPace/internal/app"
	"github.com/josephgoksu/TaskPace/internal/memory"
	"github.com/josephgoksu/TaskPace/internal/task"
	"github.com/josephgoksu/TaskPace/internal/util"
	"github.com/spf13/viper"
)

// PrintError prints a user-friendly message, or the full technical error
// when --verbose is set.
func PrintError(userMsg string, technicalErr error) {
	printError(os.Stderr, userMsg, technicalErr)
}

func printError(w io.Writer, userMsg string, technicalErr error) {
	if viper.GetBool("verbose") && technicalErr != nil {
		fmt.Fprintf(w, "Error: %v\n", technicalErr)
		return
	}
	fmt.Fprintln(w, userMsg)
}

// friendlyMessage turns a domain error into a short message for the terminal.
func friendlyMessage(err error) string {
	switch {
	case errors.Is(err, memory.ErrTaskNotFound), errors.Is(err, util.ErrNotFound):
		return "Task not found. Run 'taskpace task list' to see task ids."
	case errors.Is(err, util.ErrAmbiguousID):
		return err.Error()
	case errors.Is(err, task.ErrTaskCompleted):
		return "That task is already completed."
	case errors.Is(err, app.ErrForbidden):
		return "That task belongs to another user."
	case errors.Is(err, memory.ErrVersionConflict):
		return "The task was modified concurrently. Please retry."
	case errors.Is(err, task.ErrInvalidTask):
		return err.Error()
	case errors.Is(err, task.ErrInvalidActualMinutes):
		return "--minutes must be greater than 0."
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

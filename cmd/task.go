/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/josephgoksu/TaskPace/internal/app"
	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/memory"
	"github.com/josephgoksu/TaskPace/internal/task"
	"github.com/josephgoksu/TaskPace/internal/ui"
	"github.com/spf13/cobra"
)

var taskUserID string

// taskCmd represents the task command
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create and time tasks",
	Long: `Create tasks, track time spent on them, and complete them.

Completing a task teaches the model how long tasks like it take.

Examples:
  taskpace task add "Write report" --category "Work Related" --subtasks 3
  taskpace task start task-1a2b
  taskpace task pause task-1a2b
  taskpace task complete task-1a2b --minutes 45
  taskpace task watch task-1a2b
  taskpace task delete task-1a2b --yes`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task and estimate its duration",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  requireNoArgs,
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTasks(cmd, "task show", func(ctx context.Context, tasks *app.TaskApp) error {
			t, err := resolveAndGet(ctx, tasks, args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), t)
			}
			renderTask(cmd.OutOrStdout(), t, time.Now())
			return nil
		})
	},
}

var taskStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Start the task timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTimerTransition(cmd, "task start", args[0], (*app.TaskApp).Start)
	},
}

var taskPauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause the task timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTimerTransition(cmd, "task pause", args[0], (*app.TaskApp).Pause)
	},
}

var taskResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused task timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTimerTransition(cmd, "task resume", args[0], (*app.TaskApp).Resume)
	},
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Complete a task and learn from its duration",
	Long: `Complete a task. The duration learned is --minutes when given,
otherwise the time accumulated by the timer.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskComplete,
}

var taskWatchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Show a live timer for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskWatch,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task",
	Long: `Delete a task and its training events. The model keeps what it already
learned from the task.

A confirmation prompt is shown unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskDelete,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskStartCmd, taskPauseCmd, taskResumeCmd, taskCompleteCmd, taskWatchCmd, taskDeleteCmd)

	taskCmd.PersistentFlags().StringVar(&taskUserID, "user", "", "user id that owns the tasks")

	taskAddCmd.Flags().String("category", "", "task category ("+strings.Join(estimate.Categories(), ", ")+")")
	taskAddCmd.Flags().Int("hour", 0, "hour of day, 0-23 (default: now)")
	taskAddCmd.Flags().Int("day", 0, "day of week, 0 = Monday (default: today)")
	taskAddCmd.Flags().Int("subtasks", 1, "estimated number of subtasks")
	taskAddCmd.Flags().Bool("vague", false, "the task is loosely defined")
	taskAddCmd.Flags().Bool("deps", false, "the task depends on other work")

	taskListCmd.Flags().BoolP("all", "a", false, "include completed tasks")

	taskCompleteCmd.Flags().Float64("minutes", 0, "actual minutes spent, > 0 (overrides the timer)")

	taskDeleteCmd.Flags().BoolP("yes", "y", false, "delete without asking for confirmation")
}

// withTasks opens the runtime, runs fn, and closes everything afterwards.
func withTasks(cmd *cobra.Command, name string, fn func(ctx context.Context, tasks *app.TaskApp) error) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer closeRuntime(cmd.Context(), rt)
	rt.track(name)
	return fn(cmd.Context(), app.NewTaskApp(rt.appCtx))
}

func resolveAndGet(ctx context.Context, tasks *app.TaskApp, idOrPrefix string) (*task.Task, error) {
	id, err := tasks.Resolve(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}
	return tasks.Get(ctx, id, taskUserID)
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	title := strings.TrimSpace(strings.Join(args, " "))
	return withTasks(cmd, "task add", func(ctx context.Context, tasks *app.TaskApp) error {
		res, err := tasks.Create(ctx, app.CreateTaskOptions{
			UserID:  taskUserID,
			Title:   title,
			Context: contextFromFlags(cmd),
		})
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd.OutOrStdout(), res)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s Created %s\n", ui.Icon("✓", ui.StyleSuccess), res.Task.ID)
		fmt.Fprintf(out, "  %s %s\n", ui.StyleSubtle.Render("Estimate:"), ui.FormatEstimate(res.Task.Estimate))
		fmt.Fprintf(out, "  Start it with: taskpace task start %s\n", res.Task.ID)
		return nil
	})
}

func runTaskList(cmd *cobra.Command, _ []string) error {
	all, _ := cmd.Flags().GetBool("all")
	return withTasks(cmd, "task list", func(ctx context.Context, tasks *app.TaskApp) error {
		list, err := tasks.List(ctx, memory.TaskFilter{UserID: taskUserID, IncludeCompleted: all})
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd.OutOrStdout(), list)
		}
		if len(list) == 0 {
			cmd.Println("No tasks found.")
			cmd.Println(`Create one with: taskpace task add "Your task"`)
			return nil
		}
		cmd.Println(ui.TaskTable(list).Render())
		return nil
	})
}

type timerFunc func(a *app.TaskApp, ctx context.Context, id, userID string) (*app.TimerResult, error)

func runTimerTransition(cmd *cobra.Command, name, idOrPrefix string, fn timerFunc) error {
	return withTasks(cmd, name, func(ctx context.Context, tasks *app.TaskApp) error {
		id, err := tasks.Resolve(ctx, idOrPrefix)
		if err != nil {
			return err
		}
		res, err := fn(tasks, ctx, id, taskUserID)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd.OutOrStdout(), res)
		}
		line := fmt.Sprintf("%s %s %s · %s spent", ui.PhaseIcon(res.Phase), res.TaskID, ui.PhaseStyle(res.Phase).Render(string(res.Phase)), ui.FormatMinutes(res.TimeSpentMinutes))
		if res.ElapsedMinutesAdded != nil {
			line += fmt.Sprintf(" (+%s)", ui.FormatMinutes(*res.ElapsedMinutesAdded))
		}
		cmd.Println(line)
		return nil
	})
}

func runTaskComplete(cmd *cobra.Command, args []string) error {
	opts := app.CompleteOptions{UserID: taskUserID}
	if cmd.Flags().Changed("minutes") {
		m, _ := cmd.Flags().GetFloat64("minutes")
		opts.ActualMinutes = &m
	}
	if err := task.ValidateActualMinutes(opts.ActualMinutes); err != nil {
		return err
	}
	return withTasks(cmd, "task complete", func(ctx context.Context, tasks *app.TaskApp) error {
		id, err := tasks.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		opts.TaskID = id
		res, err := tasks.Complete(ctx, opts)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd.OutOrStdout(), res)
		}
		renderCompletion(cmd.OutOrStdout(), res)
		return nil
	})
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && !ui.IsInteractive() {
		return fmt.Errorf("refusing to delete %s without confirmation; pass --yes", args[0])
	}
	return withTasks(cmd, "task delete", func(ctx context.Context, tasks *app.TaskApp) error {
		t, err := resolveAndGet(ctx, tasks, args[0])
		if err != nil {
			return err
		}
		if !yes && !confirm(cmd, fmt.Sprintf("Delete task '%s' (%s)?", ui.Truncate(t.Title, 40), t.ID)) {
			cmd.Println("Deletion cancelled.")
			return nil
		}
		if err := tasks.Delete(ctx, t.ID, taskUserID); err != nil {
			return err
		}
		if isJSON() {
			return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": t.ID})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", ui.Icon("✓", ui.StyleSuccess), t.ID)
		return nil
	})
}

// confirm asks a yes/no question on the command's input. Anything but y/yes is no.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func renderCompletion(w io.Writer, res *app.CompleteResult) {
	if res.AlreadyCompleted {
		fmt.Fprintf(w, "%s %s was already completed (%s)\n", ui.PhaseIcon(task.PhaseCompleted), res.Task.ID, ui.FormatMinutes(res.ActualMinutes))
		return
	}
	fmt.Fprintf(w, "%s Completed %s in %s\n", ui.Icon("✓", ui.StyleSuccess), res.Task.ID, ui.FormatMinutes(res.ActualMinutes))
	switch res.LearnStatus {
	case estimate.LearnApplied:
		fmt.Fprintf(w, "  Model updated (%d samples)\n", res.SampleCount)
	case "":
	default:
		fmt.Fprintf(w, "  %s model not updated: %s\n", ui.StyleWarning.Render("!"), res.LearnStatus)
	}
	if res.ModelSaveError != "" {
		fmt.Fprintf(w, "  %s model not saved: %s\n", ui.StyleError.Render("!"), res.ModelSaveError)
	}
}

func renderTask(w io.Writer, t *task.Task, now time.Time) {
	phase := t.Timer.Phase()
	rows := [][2]string{
		{"ID", t.ID},
		{"Category", t.Category()},
		{"Status", ui.PhaseStyle(phase).Render(ui.PhaseIcon(phase) + " " + string(phase))},
		{"Spent", ui.FormatClock(time.Duration(t.Timer.TotalSeconds(now)) * time.Second)},
		{"Estimate", ui.FormatEstimate(t.Estimate)},
		{"Created", t.CreatedAt.Local().Format("2006-01-02 15:04")},
	}
	if t.UserID != "" {
		rows = append(rows, [2]string{"User", t.UserID})
	}
	if t.Timer.ActualMinutes != nil {
		rows = append(rows, [2]string{"Actual", ui.FormatMinutes(*t.Timer.ActualMinutes)})
	}

	var sb strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&sb, "%s %s\n", ui.StyleSubtle.Render(fmt.Sprintf("%-9s", r[0])), r[1])
	}
	fmt.Fprintln(w, ui.RenderPanel(ui.Truncate(t.Title, 60), strings.TrimRight(sb.String(), "\n")))
}

func runTaskWatch(cmd *cobra.Command, args []string) error {
	if !ui.IsInteractive() {
		return fmt.Errorf("watch needs an interactive terminal; use 'taskpace task show %s' instead", args[0])
	}
	return withTasks(cmd, "task watch", func(ctx context.Context, tasks *app.TaskApp) error {
		t, err := resolveAndGet(ctx, tasks, args[0])
		if err != nil {
			return err
		}
		model := ui.NewWatchModel(ctx, tasks, t, taskUserID, time.Now)
		final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		if m, ok := final.(ui.WatchModel); ok && m.Task() != nil {
			renderTask(cmd.OutOrStdout(), m.Task(), time.Now())
		}
		return nil
	})
}

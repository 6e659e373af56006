/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/TaskPace/internal/app"
	"github.com/josephgoksu/TaskPace/internal/estimate"
	"github.com/josephgoksu/TaskPace/internal/ui"
	"github.com/spf13/cobra"
)

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Estimate how long a task will take",
	Long: `Estimate a task's duration from its context without creating it.

Only the flags you pass are used as context. Hour and day default to now.
No estimate is shown until the model has enough history and is confident.

Examples:
  taskpace predict --category "Work Related" --subtasks 3 --deps
  taskpace predict --category Social --hour 20 --day 4 --output json`,
	Args: requireNoArgs,
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().String("category", "", "task category ("+strings.Join(estimate.Categories(), ", ")+")")
	predictCmd.Flags().Int("hour", 0, "hour of day, 0-23 (default: now)")
	predictCmd.Flags().Int("day", 0, "day of week, 0 = Monday (default: today)")
	predictCmd.Flags().Int("subtasks", 1, "estimated number of subtasks")
	predictCmd.Flags().Bool("vague", false, "the task is loosely defined")
	predictCmd.Flags().Bool("deps", false, "the task depends on other work")
	predictCmd.Flags().StringP("output", "o", "text", "output format (text|json)")
}

// contextFromFlags builds the raw creation context from the flags that were set.
func contextFromFlags(cmd *cobra.Command) map[string]any {
	raw := map[string]any{}
	flags := cmd.Flags()
	set := func(flag, key string, get func(string) (any, error)) {
		if !flags.Changed(flag) {
			return
		}
		if v, err := get(flag); err == nil {
			raw[key] = v
		}
	}
	str := func(n string) (any, error) { return flags.GetString(n) }
	num := func(n string) (any, error) { return flags.GetInt(n) }
	flag := func(n string) (any, error) { return flags.GetBool(n) }

	set("category", estimate.KeyCategory, str)
	set("hour", estimate.KeyHourOfDay, num)
	set("day", estimate.KeyDayOfWeek, num)
	set("subtasks", estimate.KeyEstimatedSubtasks, num)
	set("vague", estimate.KeyIsVague, flag)
	set("deps", estimate.KeyHasDependencies, flag)
	return raw
}

func runPredict(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	format, err := outputFormat(output, "text", "json")
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer closeRuntime(cmd.Context(), rt)
	rt.track("predict")

	raw := app.CreationContext(contextFromFlags(cmd), time.Now())
	fv, res := rt.estimator.PredictRaw(cmd.Context(), raw)

	if format == "json" {
		return printJSON(cmd.OutOrStdout(), struct {
			estimate.PredictionResult
			Features estimate.FeatureVector `json:"features"`
		}{res, fv})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s · %s %02d:00 · %d subtask(s)\n",
		ui.StyleSubtle.Render("Context:"), fv.CategoryID, time.Weekday((fv.DayOfWeek+1)%7), fv.HourOfDay, fv.EstimatedSubtasks)
	if res.PredictedMinutes == nil {
		fmt.Fprintf(out, "%s %s (confidence %.0f%%)\n", ui.StyleWarning.Render("No estimate:"), ui.ReasonStyle(res.Reason).Render(string(res.Reason)), res.Confidence*100)
		return nil
	}
	fmt.Fprintf(out, "%s %s (confidence %.0f%%)\n", ui.StyleSuccess.Render("Estimate:"), ui.FormatMinutes(*res.PredictedMinutes), res.Confidence*100)
	return nil
}

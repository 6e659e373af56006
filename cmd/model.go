/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/josephgoksu/TaskPace/internal/eval"
	"github.com/josephgoksu/TaskPace/internal/snapshot"
	"github.com/josephgoksu/TaskPace/internal/ui"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// modelCmd represents the model command
var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect and evaluate the duration model",
}

var modelShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the model status and confidence gate",
	Args:  requireNoArgs,
	RunE:  runModelShow,
}

var modelEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Replay completions through a fresh model",
	Long: `Replay recorded completions through a fresh model to measure the
offline error and how often the confidence gate would have answered.

The live model is never modified. Without --dataset the stored training
events are replayed, oldest first.

Examples:
  taskpace model evaluate
  taskpace model evaluate --dataset samples.yaml --output json`,
	Args: requireNoArgs,
	RunE: runModelEvaluate,
}

var modelExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the model snapshot to stdout",
	Args:  requireNoArgs,
	RunE:  runModelExport,
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelCmd.AddCommand(modelShowCmd, modelEvaluateCmd, modelExportCmd)

	modelShowCmd.Flags().StringP("output", "o", "table", "output format (table|json|yaml)")

	modelEvaluateCmd.Flags().String("dataset", "", "YAML or JSON dataset to replay instead of stored events")
	modelEvaluateCmd.Flags().Int("limit", 0, "replay at most this many stored events (0 = all)")
	modelEvaluateCmd.Flags().StringP("output", "o", "table", "output format (table|json|yaml)")

	modelExportCmd.Flags().String("format", "json", "snapshot format (json|yaml)")
}

func runModelShow(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	format, err := outputFormat(output, "table", "json", "yaml")
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer closeRuntime(cmd.Context(), rt)
	rt.track("model show")

	status := rt.estimator.Status()
	switch format {
	case "json":
		return printJSON(cmd.OutOrStdout(), status)
	case "yaml":
		return printYAML(cmd.OutOrStdout(), status)
	}

	cmd.Println(ui.RenderModelStatus(status))
	if count, err := rt.store.CountTrainingEvents(cmd.Context()); err == nil {
		cmd.Printf("%d training events recorded. Run 'taskpace model evaluate' to replay them.\n", count)
	}
	return nil
}

func runModelEvaluate(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	format, err := outputFormat(output, "table", "json", "yaml")
	if err != nil {
		return err
	}
	datasetPath, _ := cmd.Flags().GetString("dataset")
	limit, _ := cmd.Flags().GetInt("limit")

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer closeRuntime(cmd.Context(), rt)
	rt.track("model evaluate")

	var (
		samples []eval.Sample
		label   string
	)
	if datasetPath != "" {
		ds, err := eval.LoadDataset(datasetPath)
		if err != nil {
			return err
		}
		samples, label = ds.Samples, ds.Label
		if label == "" {
			label = datasetPath
		}
	} else {
		events, err := rt.store.ListTrainingEvents(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("load training events: %w", err)
		}
		samples, label = eval.FromTrainingEvents(events), "training events"
	}
	if len(samples) == 0 {
		cmd.Println("Nothing to evaluate. Complete a few tasks first, or pass --dataset.")
		return nil
	}

	var progress func(int)
	if format == "table" && ui.IsInteractive() {
		bar := progressbar.NewOptions(len(samples),
			progressbar.OptionSetDescription("Replaying"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		progress = func(done int) { _ = bar.Set(done) }
		defer func() { _ = bar.Finish() }()
	}

	res, err := eval.Replay(samples, rt.estimator.Gate(), progress)
	if err != nil {
		return err
	}
	res.Label = label

	switch format {
	case "json":
		return printJSON(cmd.OutOrStdout(), res)
	case "yaml":
		return printYAML(cmd.OutOrStdout(), res)
	}
	renderEvaluation(cmd.OutOrStdout(), res)
	return nil
}

func renderEvaluation(w io.Writer, res *eval.Results) {
	fmt.Fprintf(w, "%s %s\n\n", ui.StyleTitle.Render("Replay of"), res.Label)

	t := &ui.Table{Headers: []string{"Category", "Samples", "Answered", "Answer rate", "Answered MAE", "Model MAE"}}
	addRow := func(name string, s eval.Summary) {
		t.Rows = append(t.Rows, []string{
			name,
			fmt.Sprintf("%d", s.Samples),
			fmt.Sprintf("%d", s.Answered),
			fmt.Sprintf("%.0f%%", s.AnswerRate*100),
			ui.FormatMinutes(s.AnsweredMAE),
			ui.FormatMinutes(s.ModelMAE),
		})
	}
	cats := make([]string, 0, len(res.ByCategory))
	for c := range res.ByCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		addRow(c, res.ByCategory[c])
	}
	addRow("All", res.Overall)
	fmt.Fprintln(w, t.Render())

	fmt.Fprintf(w, "\nFinal model: %d samples, running MAE %s\n", res.FinalModel.SampleCount, ui.FormatMinutes(res.FinalModel.RunningMAE))
	for reason, n := range res.Reasons {
		fmt.Fprintf(w, "  %s %d\n", ui.ReasonStyle(reason).Render(fmt.Sprintf("%-30s", reason)), n)
	}
}

func runModelExport(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("format")
	format, err := snapshot.ParseFormat(name)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer closeRuntime(cmd.Context(), rt)

	data, err := snapshot.Encode(rt.estimator.Snapshot(), format)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

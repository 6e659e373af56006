/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/josephgoksu/TaskPace/internal/estimate"
	mcppresenter "github.com/josephgoksu/TaskPace/internal/mcp"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI tool integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio so AI assistants
can estimate task durations and drive task timers.

Tools:
  predict_task_time  estimate a task's duration from its context
  task_timer         create, start, pause, resume, complete, show and list tasks

The server will run until the client disconnects.`,
	Args: requireNoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// mcpMarkdownResponse wraps Markdown content in an MCP tool result.
func mcpMarkdownResponse(markdown string) (*mcpsdk.CallToolResultFor[any], error) {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: markdown}},
	}, nil
}

// mcpErrorResponse wraps pre-formatted error text with IsError=true so the
// client model sees it and can correct the call.
func mcpErrorResponse(formattedError string) (*mcpsdk.CallToolResultFor[any], error) {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: formattedError}},
		IsError: true,
	}, nil
}

func mcpToolResponse(result *mcppresenter.ToolResult) (*mcpsdk.CallToolResultFor[any], error) {
	if result.Error != "" {
		return mcpErrorResponse(mcppresenter.FormatError(result.Error))
	}
	return mcpMarkdownResponse(result.Content)
}

func runMCPServer(ctx context.Context) error {
	// NOTE: MCP uses stdio transport. stdout MUST be pure JSON-RPC.
	fmt.Fprintln(os.Stderr, "TaskPace MCP Server starting...")

	rt, err := openRuntime(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer closeRuntime(ctx, rt)
	rt.track("mcp")
	watchGate(rt.estimator)

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "[DEBUG] Using data path: %s\n", rt.dataDir)
	}

	impl := &mcpsdk.Implementation{
		Name:    "taskpace-mcp",
		Version: version,
	}
	serverOpts := &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			fmt.Fprintf(os.Stderr, "✓ MCP connection established\n")
		},
	}
	server := mcpsdk.NewServer(impl, serverOpts)
	handler := mcppresenter.NewHandler(rt.appCtx)

	predictTool := &mcpsdk.Tool{
		Name: "predict_task_time",
		Description: `Estimate how many minutes a task will take.
Arguments (all optional): category (one of: ` + strings.Join(estimate.Categories(), ", ") + `),
hour_of_day (0-23), day_of_week (0 = Monday), estimated_subtasks (>= 1), is_vague,
has_dependencies. Set use_clock=true to fill a missing hour and day from the current time.
Returns JSON {predicted_minutes, confidence, reason, features}; predicted_minutes is null
until the model is confident.`,
	}
	mcpsdk.AddTool(server, predictTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcppresenter.PredictParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return mcpToolResponse(handler.HandlePredict(ctx, params.Arguments))
	})

	actions := make([]string, 0, len(mcppresenter.ValidTimerActions))
	for _, a := range mcppresenter.ValidTimerActions {
		actions = append(actions, string(a))
	}
	timerTool := &mcpsdk.Tool{
		Name: "task_timer",
		Description: `Unified task timer tool. Use action parameter to select operation: ` + strings.Join(actions, ", ") + `.

REQUIRED FIELDS BY ACTION:
- create: title (required), context (optional)
- start, pause, resume, show: task_id (id or unique prefix)
- complete: task_id, actual_minutes (optional, overrides the timer)
- list: none (include_completed optional)
user_id is optional everywhere; when set, tasks of other users are rejected.`,
	}
	mcpsdk.AddTool(server, timerTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcppresenter.TimerToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return mcpToolResponse(handler.HandleTimerTool(ctx, params.Arguments))
	})

	if err := server.Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

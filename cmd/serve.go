/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/josephgoksu/TaskPace/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the TaskPace HTTP API.

Endpoints:
  GET  /api/health
  POST /api/predict
  GET  /api/model
  GET  /api/tasks            POST /api/tasks
  GET  /api/tasks/{id}
  POST /api/tasks/{id}/start|pause|resume|complete

The model is saved on shutdown (Ctrl+C).`,
	Args: requireNoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (default: server.port)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeRuntime(ctx, rt)
	rt.track("serve")

	port := appConfig.Server.Port
	if p, _ := cmd.Flags().GetInt("port"); p > 0 {
		port = p
	}

	watchGate(rt.estimator)

	fmt.Fprintf(os.Stderr, "TaskPace API on http://localhost:%d (data: %s)\n", port, rt.dataDir)
	srv := server.New(rt.appCtx, server.Options{
		Port:           port,
		AllowedOrigins: appConfig.Server.AllowedOrigins,
		RateLimit:      appConfig.Server.RateLimit,
		RateBurst:      appConfig.Server.RateBurst,
	})
	return srv.Run(ctx)
}

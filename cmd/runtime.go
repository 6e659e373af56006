/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/josephgoksu/TaskPace/internal/app"
	"github.com/josephgoksu/TaskPace/internal/config"
	"github.com/josephgoksu/TaskPace/internal/memory"
	"github.com/josephgoksu/TaskPace/internal/snapshot"
	"github.com/josephgoksu/TaskPace/internal/telemetry"
	"github.com/spf13/afero"
)

// runtime bundles the opened stores and services for one command.
type runtime struct {
	dataDir   string
	store     *memory.SQLiteStore
	estimator *app.Estimator
	telemetry telemetry.Client
	appCtx    *app.Context
}

// openRuntime opens the database, the model snapshot store and the estimator.
func openRuntime(ctx context.Context) (*runtime, error) {
	dir, err := config.EnsureDataPath()
	if err != nil {
		return nil, err
	}

	store, err := memory.NewSQLiteStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open database in %s: %w", dir, err)
	}

	snapshots, err := snapshotStore(store, dir)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	tc := telemetry.New(dir, telemetryEnabled(dir), appConfig.Telemetry.APIKey, appConfig.Telemetry.Endpoint, version)

	est, err := app.OpenEstimator(ctx, snapshots, appConfig.Model.Gate, app.WithTelemetry(tc))
	if err != nil {
		_ = tc.Close()
		_ = store.Close()
		return nil, fmt.Errorf("load model: %w", err)
	}

	appCtx := app.NewContext(store, est)
	appCtx.Telemetry = tc

	slog.Debug("runtime opened", "data_dir", dir, "model", snapshots.Location())
	return &runtime{dataDir: dir, store: store, estimator: est, telemetry: tc, appCtx: appCtx}, nil
}

// snapshotStore picks the model store configured under model.store.
func snapshotStore(store *memory.SQLiteStore, dir string) (app.SnapshotStore, error) {
	switch appConfig.Model.Store {
	case config.StoreFile:
		format, err := snapshot.ParseFormat(appConfig.Model.File.Format)
		if err != nil {
			return nil, err
		}
		return snapshot.NewFileStore(afero.NewOsFs(), filepath.Join(dir, "model"), format), nil
	default:
		return store.Snapshots(), nil
	}
}

// telemetryEnabled is true when config or the stored consent enables it.
func telemetryEnabled(dir string) bool {
	if appConfig.Telemetry.Enabled {
		return true
	}
	cfg, err := telemetry.Load(dir)
	return err == nil && cfg.IsEnabled()
}

// Close flushes the model and releases the stores.
func (r *runtime) Close(ctx context.Context) error {
	var errs []error
	if err := r.estimator.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := r.telemetry.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// closeRuntime closes r and logs any failure.
func closeRuntime(ctx context.Context, r *runtime) {
	if err := r.Close(context.WithoutCancel(ctx)); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

// track records a command_executed event.
func (r *runtime) track(command string) {
	r.telemetry.Track(telemetry.EventCommandExecuted, telemetry.Properties{"command": command})
}

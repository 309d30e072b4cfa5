// Package cli provides the ehsctl operator commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ehscore/internal/blob"
	"ehscore/internal/config"
	"ehscore/internal/core"
	"ehscore/pkg/domain"
)

// globalOptions carries the persistent flags shared by every command.
type globalOptions struct {
	actor      string
	storage    string
	sqlitePath string
}

// app is one opened service plus the resources backing it.
type app struct {
	svc     *core.Service
	store   core.ClosableStore
	flush   func() error
	startup core.Startup
}

func (a *app) Close() error {
	return errors.Join(a.flush(), a.store.Close())
}

// openApp loads configuration, applies flag overrides, opens the backends and
// brings the store up to date.
func openApp(ctx context.Context, cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("storage") {
		cfg.Storage.Driver = core.StorageDriver(opts.storage)
	}
	if cmd.Flags().Changed("sqlite-path") {
		cfg.Storage.SQLitePath = opts.sqlitePath
	}

	store, err := core.OpenKeyedStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open attachments: %w", err)
	}

	obsOpts, flush, err := observability(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
	svcOpts := append([]core.ServiceOption{
		core.WithLogger(logger),
		core.WithCorrectiveActionPolicy(cfg.CorrectiveActionPolicy),
		core.WithAttachments(blob.NewAttachments(blobs)),
	}, obsOpts...)
	a := &app{svc: core.NewService(store, svcOpts...), store: store, flush: flush}
	if a.startup, err = a.svc.Open(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open service: %w", err)
	}
	return a, nil
}

// withService opens the app for the duration of fn.
func withService(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, svc *core.Service) error) error {
	return withApp(cmd, opts, func(ctx context.Context, a *app) error { return fn(ctx, a.svc) })
}

// withApp is withService for commands that report on startup.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close storage: %w", cerr)
		}
	}()
	return fn(ctx, a)
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	badColor  = color.New(color.FgRed)
	dimColor  = color.New(color.Faint)
)

// statusLabel colours a lifecycle or standing label for terminal output.
// Permit and delivery approval share the "Aprobado" label.
func statusLabel(status string) string {
	switch status {
	case string(domain.ApprovalApproved), string(domain.PermitClosed), string(domain.FindingClosed),
		string(domain.EquipmentCompliant), string(domain.ActivityCompleted):
		return okColor.Sprint(status)
	case string(domain.ApprovalPending), string(domain.PermitRequested),
		string(domain.PermitInProgress), string(domain.EquipmentDueSoon), string(domain.FindingOpen):
		return warnColor.Sprint(status)
	case string(domain.PermitRejected), string(domain.EquipmentOverdue):
		return badColor.Sprint(status)
	default:
		return dimColor.Sprint(status)
	}
}

func printOK(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", okColor.Sprint("✓"), fmt.Sprintf(format, args...))
}

// describeError adds a short category prefix for the well-known domain errors.
func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden: " + err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "not found: " + err.Error()
	case errors.Is(err, domain.ErrDeleteGuard):
		return "in use: " + err.Error()
	case errors.Is(err, domain.ErrVersionConflict):
		return "conflict: " + err.Error() + " (retry the command)"
	default:
		return err.Error()
	}
}

// PrintError writes err to w in the CLI's error style.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, badColor.Sprint("error:"), describeError(err))
}

func familyNames() string {
	names := make([]string, 0, len(core.FolioFamilies()))
	for _, f := range core.FolioFamilies() {
		names = append(names, f.Name)
	}
	return strings.Join(names, ", ")
}

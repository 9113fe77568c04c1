package main

import (
	"context"
	"fmt"

	"albumsync/internal/materialize"
	"albumsync/internal/repositories"
	"albumsync/internal/services"
	"albumsync/internal/shared"
	"albumsync/internal/tasks"

	"github.com/charmbracelet/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

// SyncRun uploads pending assets album by album.
//
// The run holds an exclusive lock on the state database for its duration;
// a second invocation against the same database fails fast with ErrStateLocked.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	if lib := cmd.String("library"); lib != "" {
		config.Catalog.LibraryPath = lib
	}

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	num := int(cmd.Int("num"))
	all := cmd.Bool("all")
	dryRun := cmd.Bool("dry-run")

	if all && num > 0 {
		return fmt.Errorf("%w: --num and --all are mutually exclusive", shared.ErrInvalidArgument)
	}
	if !all && num <= 0 {
		return fmt.Errorf("%w: specify --num N or --all", shared.ErrMissingArgument)
	}

	lock := shared.NewRunLock(config.Database.Path)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var remote services.Remote
	if !dryRun {
		if remote, err = r.remoteFor(ctx, config); err != nil {
			return err
		}
	}

	materializer, err := materialize.NewMaterializer(r.fetcherFor(config), config.Sync.WorkDir)
	if err != nil {
		return err
	}
	defer materializer.Close()

	engine := tasks.NewAlbumSyncEngine(tasks.EngineOpts{
		Catalog:      r.catalogFor(config),
		Remote:       remote,
		Syncs:        repositories.NewSyncRepository(db),
		Mappings:     repositories.NewAlbumMappingRepository(db),
		Materializer: materializer,
		Logger:       r.logger,
	})

	pending, err := engine.Pending(ctx)
	if err != nil {
		return err
	}

	albumsWithWork, assetsPending := 0, 0
	for _, p := range pending {
		if p.Pending > 0 {
			albumsWithWork++
			assetsPending += p.Pending
		}
	}
	if albumsWithWork == 0 {
		r.writePlain("Everything is in sync: %d albums, nothing pending\n", len(pending))
		return nil
	}

	target := albumsWithWork
	if !all && num < target {
		target = num
	}

	r.writePlain("%d of %d albums have pending assets (%d assets total)\n",
		albumsWithWork, len(pending), assetsPending)

	if !dryRun && !cmd.Bool("force") {
		if !r.confirm(fmt.Sprintf("Sync %d album(s) to Google Photos?", target)) {
			r.writePlain("Aborted\n")
			return nil
		}
	}

	opts := tasks.RunOpts{
		MaxAlbums:   0,
		DryRun:      dryRun,
		Workers:     config.Sync.Workers,
		RateLimit:   config.Sync.RateLimit,
		MaxAttempts: config.Sync.MaxAttempts,
	}
	if !all {
		opts.MaxAlbums = num
	}
	if w := int(cmd.Int("workers")); w > 0 {
		opts.Workers = w
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.renderProgress(update, dryRun)
		}
	}()

	result, err := engine.Run(ctx, progressCh, opts)
	close(progressCh)
	<-done

	if result != nil {
		r.renderSummary(result)
	}
	return err
}

// renderProgress prints one progress update as a log-style line.
func (r *Runner) renderProgress(update tasks.ProgressUpdate, dryRun bool) {
	switch update.Phase {
	case tasks.PhaseResolve:
		r.writePlain("\n📁 %s: %s\n", update.Album, update.Message)
	case tasks.PhaseMaterialize:
		r.writePlain("  [%d/%d] preparing %s\n", update.Index, update.Total, update.Filename)
	case tasks.PhaseUpload:
		if dryRun {
			r.writePlain("  [%d/%d] would upload %s\n", update.Index, update.Total, update.Filename)
		} else {
			r.writePlain("  [%d/%d] uploading %s\n", update.Index, update.Total, update.Filename)
		}
	case tasks.PhaseCommit:
		r.writePlain("  [%d/%d] ✓ %s\n", update.Index, update.Total, update.Filename)
	case tasks.PhaseSkip:
		r.writePlain("  [%d/%d] already synced %s\n", update.Index, update.Total, update.Filename)
	case tasks.PhaseFailed:
		r.writePlain("  [%d/%d] ✗ %s: %s\n", update.Index, update.Total, update.Filename, update.Message)
	}
}

// renderSummary prints the end-of-run table and failure details.
func (r *Runner) renderSummary(result *tasks.RunResult) {
	title := "Sync Complete"
	if result.DryRun {
		title = "Dry Run Complete"
	}
	r.writePlain("\n")
	r.writePlainHeader(title)

	t := table.NewWriter()
	t.SetOutputMirror(r.output)
	t.AppendHeader(table.Row{"Album", "Committed", "Skipped", "Failed"})
	for _, album := range result.Albums {
		status := fmt.Sprintf("%d", album.Committed)
		if album.Err != nil {
			status = "album failed"
		}
		t.AppendRow(table.Row{album.Title, status, album.Skipped, album.Failed})
	}
	t.AppendFooter(table.Row{"Total", result.Committed, result.Skipped, result.Failed})
	t.Render()

	for _, album := range result.Albums {
		if album.Err != nil {
			r.writePlain("\n%s: %v\n", album.Title, album.Err)
		}
		for _, failure := range album.Failures {
			r.writePlain("  ✗ %s (%s): %v\n", failure.Filename, failure.AssetUUID, failure.Err)
		}
	}
}

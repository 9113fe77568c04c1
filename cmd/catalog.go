package main

import (
	"context"
	"fmt"

	"albumsync/internal/repositories"
	"albumsync/internal/shared"
	"albumsync/internal/tasks"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

// CatalogAlbums lists local albums with total and pending asset counts.
func (r *Runner) CatalogAlbums(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	if lib := cmd.String("library"); lib != "" {
		config.Catalog.LibraryPath = lib
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	engine := tasks.NewAlbumSyncEngine(tasks.EngineOpts{
		Catalog:  r.catalogFor(config),
		Syncs:    repositories.NewSyncRepository(db),
		Mappings: repositories.NewAlbumMappingRepository(db),
		Logger:   r.logger,
	})

	pending, err := engine.Pending(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type albumRow struct {
			Title   string `json:"title"`
			Total   int    `json:"total"`
			Pending int    `json:"pending"`
		}
		rows := make([]albumRow, 0, len(pending))
		for _, p := range pending {
			rows = append(rows, albumRow{Title: p.Album.Title, Total: p.Total, Pending: p.Pending})
		}
		return r.writeJSON(rows, true)
	}

	if len(pending) == 0 {
		r.writePlain("No albums found\n")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.output)
	t.AppendHeader(table.Row{"Album", "Assets", "Pending"})
	totalAssets, totalPending := 0, 0
	for _, p := range pending {
		t.AppendRow(table.Row{p.Album.Title, p.Total, p.Pending})
		totalAssets += p.Total
		totalPending += p.Pending
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d albums", len(pending)), totalAssets, totalPending})
	t.Render()

	return nil
}

// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the sync state database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Create a config file from the bundled template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles Google Photos authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Google Photos authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with Google Photos using OAuth2",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Check current authentication state",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// catalogCommand handles local Photos library inspection
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Inspect the local Photos library",
		Commands: []*cli.Command{
			{
				Name:  "albums",
				Usage: "List albums with total and pending asset counts",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "library",
						Usage: "Photos library path (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CatalogAlbums,
			},
		},
	}
}

// syncCommand handles album synchronization operations
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Synchronize albums to Google Photos",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Upload pending assets album by album",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "library",
						Usage: "Photos library path (overrides config)",
					},
					&cli.IntFlag{
						Name:    "num",
						Aliases: []string{"n"},
						Usage:   "Number of albums to sync",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Sync every album with pending assets",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report what would be synced without uploading",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip the confirmation prompt",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent upload workers (overrides config)",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Enable debug logging",
					},
				},
				Action: r.SyncRun,
			},
		},
	}
}

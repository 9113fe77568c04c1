package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"albumsync/internal/catalog"
	"albumsync/internal/services"
	"albumsync/internal/shared"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Catalog, fetcher, and remote construction go through factory fields so tests
// can substitute fakes without touching osxphotos or the Google Photos API.
type Runner struct {
	logger *log.Logger
	output io.Writer
	input  io.Reader

	catalogFor func(cfg *shared.Config) catalog.Catalog
	fetcherFor func(cfg *shared.Config) catalog.Fetcher
	remoteFor  func(ctx context.Context, cfg *shared.Config) (services.Remote, error)
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	CatalogFor func(cfg *shared.Config) catalog.Catalog
	FetcherFor func(cfg *shared.Config) catalog.Fetcher
	RemoteFor  func(ctx context.Context, cfg *shared.Config) (services.Remote, error)
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	r := &Runner{
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		catalogFor: opts.CatalogFor,
		fetcherFor: opts.FetcherFor,
		remoteFor:  opts.RemoteFor,
	}

	if r.catalogFor == nil {
		r.catalogFor = func(cfg *shared.Config) catalog.Catalog {
			return catalog.NewPhotosCatalog(catalog.PhotosCatalogOpts{
				BinPath:     cfg.Catalog.OSXPhotosPath,
				LibraryPath: cfg.Catalog.LibraryPath,
				SharedOnly:  cfg.Catalog.SharedOnly,
			})
		}
	}
	if r.fetcherFor == nil {
		r.fetcherFor = func(cfg *shared.Config) catalog.Fetcher {
			return catalog.NewPhotosFetcher(cfg.Catalog.OSXPhotosPath, cfg.Catalog.LibraryPath)
		}
	}
	if r.remoteFor == nil {
		r.remoteFor = authenticatedRemote
	}

	return r
}

// authenticatedRemote builds a Google Photos client with the cached token
// installed. A missing token cache means auth login has not been run.
func authenticatedRemote(ctx context.Context, cfg *shared.Config) (services.Remote, error) {
	svc, err := services.NewGooglePhotosService(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURI)
	if err != nil {
		return nil, err
	}

	tokenPath, err := cfg.TokenPath()
	if err != nil {
		return nil, err
	}

	token, err := services.LoadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("%w: no cached token at %s, run 'albumsync auth login' first", shared.ErrNotAuthenticated, tokenPath)
	}

	svc.SetToken(ctx, token)
	return svc, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, catalogCommand, syncCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig loads configuration from the command's --config flag, falling
// back to defaults when the file is absent or unreadable.
func (r *Runner) loadConfig(cmd *cli.Command) *shared.Config {
	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", configPath)
		return shared.DefaultConfig()
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		return shared.DefaultConfig()
	}
	return config
}

// confirm prompts the user and returns true on a y/yes answer.
func (r *Runner) confirm(prompt string) bool {
	r.writePlain("%s [y/N]: ", prompt)

	scanner := bufio.NewScanner(r.input)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// Command multimesh converts, inspects and catalogs mesh files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"multimesh/internal/codec"
	"multimesh/internal/config"
	"multimesh/internal/repository/sqlite"
	"multimesh/internal/service"
)

// errUsage marks errors already reported together with usage text
var errUsage = errors.New("usage error")

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"convert": {"convert a mesh file to another format", runConvert},
	"info":    {"print the metadata of a mesh file", runInfo},
	"formats": {"list supported formats", runFormats},
	"import":  {"store a mesh file in the catalog", runImport},
	"export":  {"write a cataloged mesh in any format", runExport},
	"list":    {"list cataloged meshes", runList},
	"delete":  {"remove meshes from the catalog", runDelete},
	"batch":   {"run the conversions of a manifest", runBatch},
	"watch":   {"re-convert files whenever they change", runWatch},
	"serve":   {"start the HTTP API", runServe},
}

// app carries the state shared by every command
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *codec.Registry
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer

	repo *sqlite.Repository
}

// catalog opens the mesh catalog on first use
func (a *app) catalog(opts ...service.Option) (*service.MeshService, error) {
	if a.repo == nil {
		repo, err := sqlite.New(a.cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.logger.Debug("database opened", "path", a.cfg.Database.Path)
		a.repo = repo
	}
	return a.service(opts...), nil
}

func (a *app) service(opts ...service.Option) *service.MeshService {
	opts = append([]service.Option{
		service.WithLogger(a.logger),
		service.WithWorkers(a.cfg.Batch.Workers),
	}, opts...)
	if a.repo == nil {
		return service.NewMeshService(nil, a.registry, opts...)
	}
	return service.NewMeshService(a.repo, a.registry, opts...)
}

func (a *app) close() {
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("multimesh", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file (default: search $MULTIMESH_CONFIG, ./multimesh.yaml, ...)")
	dbPath := fs.String("db", "", "catalog database path (overrides config)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, err := config.NewLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: codec.DefaultRegistry(),
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
	}
	defer a.close()

	if err := cmd.run(ctx, a, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(stderr, "multimesh %s: %v\n", name, err)
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, _, err := config.LoadFromPath(path)
		return cfg, err
	}
	cfg, _, err := config.Load()
	return cfg, err
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: multimesh [flags] <command> [command flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags:")
	fs.PrintDefaults()
}

// newFlags returns a flag set for a subcommand that reports to a.stderr
func (a *app) newFlags(name, argsUsage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "usage: multimesh %s [flags] %s\n", name, argsUsage)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses args, mapping flag failures to errUsage. The flag
// package has already reported them.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

// usageError prints msg with the subcommand usage
func usageError(fs *flag.FlagSet, msg string) error {
	fmt.Fprintln(fs.Output(), msg)
	fs.Usage()
	return errUsage
}

// extensionFor returns the preferred file extension of format
func extensionFor(reg *codec.Registry, format string) string {
	for _, e := range reg.Formats() {
		if e.Format == format && len(e.Extensions) > 0 {
			return e.Extensions[0]
		}
	}
	return "." + strings.ToLower(format)
}

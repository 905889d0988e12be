// Package main is the entry point for the scriptstorm demo shell.
//
// It loads a script, applies a command batch the way the AI-edit
// collaborator would, paginates the result, and writes it back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/natefinch/atomic"

	"github.com/dshills/scriptstorm/internal/config"
	"github.com/dshills/scriptstorm/internal/engine"
	"github.com/dshills/scriptstorm/internal/engine/command"
	"github.com/dshills/scriptstorm/internal/engine/queue"
	"github.com/dshills/scriptstorm/internal/logging"
	"github.com/dshills/scriptstorm/internal/notify"
	"github.com/dshills/scriptstorm/internal/persist"
	"github.com/dshills/scriptstorm/internal/renderer/surface"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	ConfigPath   string
	ScriptPath   string
	CommandsPath string
	OutputPath   string
	DBPath       string
	LogLevel     string
	Width        float64
	Surface      string
	Watch        bool

	// newScreen creates the tcell screen for the terminal surface.
	newScreen func() (tcell.Screen, error)
}

// Surface names accepted by -surface.
const (
	surfaceMemory   = "memory"
	surfaceTerminal = "terminal"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitRejected = 2
)

func main() {
	os.Exit(run(parseFlags(), os.Stdout))
}

func run(opts options, out io.Writer) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return exitError
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.DBPath != "" {
		cfg.Storage.Path = opts.DBPath
	}
	if opts.Width > 0 {
		cfg.Surface.Width = opts.Width
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.Logging.Level)
	logCfg.Output = os.Stderr
	logger := logging.New(logCfg)

	if opts.Watch && opts.Surface == surfaceTerminal {
		fmt.Fprintf(os.Stderr, "Error: -watch cannot be combined with the terminal surface\n")
		return exitError
	}
	surf, closeSurface, err := openSurface(opts, cfg.Surface.Width)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	defer closeSurface()

	ctx := context.Background()
	engineOpts := []engine.Option{
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
		engine.WithSurface(surf),
	}

	if cfg.Storage.Path != "" {
		store, err := persist.OpenSQLite(ctx, cfg.Storage.Path, persist.WithLogger(logger))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
			return exitError
		}
		defer store.Close()
		engineOpts = append(engineOpts, engine.WithPersistence(store, cfg.Storage.DocumentID))
	}

	ctl := engine.New(engineOpts...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ctl.Close(closeCtx)
	}()

	raw, err := readOptional(opts.ScriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	if err := ctl.Open(ctx, raw); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open script: %v\n", err)
		return exitError
	}

	if opts.CommandsPath != "" {
		if err := applyCommands(ctx, ctl, opts.CommandsPath, cfg.Storage.Path != "", out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if command.IsValidationError(err) {
				return exitRejected
			}
			return exitError
		}
	}

	// The terminal is released before the summary is printed.
	closeSurface()
	printPages(out, ctl)

	if target := outputPath(opts); target != "" && ctl.Dirty() {
		content, err := ctl.Content()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to serialize: %v\n", err)
			return exitError
		}
		if err := atomic.WriteFile(target, strings.NewReader(content)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to write %s: %v\n", target, err)
			return exitError
		}
		fmt.Fprintf(out, "wrote %s (revision %d)\n", target, ctl.Snapshot().Revision)
	}

	if opts.Watch && opts.ConfigPath != "" {
		return watch(opts.ConfigPath, ctl, logger, out)
	}
	return exitOK
}

// applyCommands decodes a command batch file and applies it as an AI
// batch, through persistence when a database is configured.
func applyCommands(ctx context.Context, ctl *engine.Controller, path string, persisted bool, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading commands: %w", err)
	}
	batch, err := command.DecodeBatch(data)
	if err != nil {
		return err
	}

	var res engine.ApplyResult
	if persisted {
		res, err = ctl.SubmitEdits(ctx, batch.Commands)
	} else {
		res, err = ctl.ApplyBatch(ctx, queue.SourceAI, batch)
	}
	if err != nil {
		var verr *command.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("batch rejected: %w", verr)
		}
		return err
	}

	for i, r := range res.Results {
		status := "ok"
		if !r.Changed {
			status = "unchanged"
		}
		fmt.Fprintf(out, "%3d  %-20s %s\n", i+1, r.Command, status)
	}
	if persisted {
		fmt.Fprintf(out, "stored version %d\n", res.Version)
	}
	return nil
}

// openSurface builds the surface named by opts.Surface. The returned close
// func may be called more than once.
func openSurface(opts options, width float64) (surface.Surface, func(), error) {
	switch opts.Surface {
	case "", surfaceMemory:
		return surface.NewMemory(surface.WithWidth(width)), func() {}, nil
	case surfaceTerminal:
		newScreen := opts.newScreen
		if newScreen == nil {
			newScreen = tcell.NewScreen
		}
		screen, err := newScreen()
		if err != nil {
			return nil, nil, fmt.Errorf("creating screen: %w", err)
		}
		if err := screen.Init(); err != nil {
			return nil, nil, fmt.Errorf("initializing screen: %w", err)
		}
		var once sync.Once
		return surface.NewTerminal(screen, surface.RowHeight), func() { once.Do(screen.Fini) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown surface %q (must be memory or terminal)", opts.Surface)
	}
}

func printPages(out io.Writer, ctl *engine.Controller) {
	pages := ctl.Pages()
	fmt.Fprintf(out, "%d lines on %d pages\n", ctl.Snapshot().Len(), len(pages))
	for _, p := range pages {
		fmt.Fprintf(out, "  page %-3d %3d lines  %6.0f high\n", p.Number, len(p.Lines), p.Height)
	}
}

// watch reloads the config file on change and reprints the layout until
// interrupted.
func watch(path string, ctl *engine.Controller, logger *logging.Logger, out io.Writer) int {
	reloader, err := config.NewReloader(path, config.Options{}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to watch config: %v\n", err)
		return exitError
	}
	defer reloader.Close()

	reloader.OnReload(func(cfg *config.Config) {
		logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
		ctl.ApplyConfig(cfg)
	})
	sub := ctl.SubscribeKind(notify.KindPaginated, func(notify.Change) { printPages(out, ctl) })
	defer sub.Unsubscribe()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	fmt.Fprintf(out, "watching %s, press Ctrl-C to stop\n", path)
	<-signals
	return exitOK
}

func outputPath(opts options) string {
	if opts.OutputPath != "" {
		return opts.OutputPath
	}
	return opts.ScriptPath
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading script: %w", err)
	}
	return string(data), nil
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (.toml or .yaml)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.ScriptPath, "script", "", "Script file to load")
	flag.StringVar(&opts.CommandsPath, "commands", "", "Command batch file to apply")
	flag.StringVar(&opts.OutputPath, "out", "", "Output file (defaults to -script)")
	flag.StringVar(&opts.DBPath, "db", "", "SQLite database for versioned persistence")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.Float64Var(&opts.Width, "width", 0, "Surface width used for pagination")
	flag.StringVar(&opts.Surface, "surface", surfaceMemory, "Rendering surface used for measurement (memory, terminal)")
	flag.BoolVar(&opts.Watch, "watch", false, "Keep running and re-paginate when the config file changes")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "scriptstorm - screenplay document engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: scriptstorm [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  scriptstorm -script pilot.json                      Paginate a script\n")
		fmt.Fprintf(os.Stderr, "  scriptstorm -script pilot.json -commands edits.json Apply an edit batch\n")
		fmt.Fprintf(os.Stderr, "  scriptstorm -script pilot.json -commands edits.json -db scripts.db\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("scriptstorm %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}
	if opts.Width < 0 {
		fmt.Fprintf(os.Stderr, "Error: width must be positive\n")
		os.Exit(1)
	}

	return opts
}

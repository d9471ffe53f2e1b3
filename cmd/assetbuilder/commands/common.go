package commands

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/eventstore"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
)

// Global is bound into every command's Run method.
type Global struct {
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"assetbuilder.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
	Build    BuildCmd    `cmd:"" help:"Build the dist tree and fingerprint it"`
	Clean    CleanCmd    `cmd:"" help:"Remove generated files from the dist tree"`
	Hash     HashCmd     `cmd:"" help:"Fingerprint an existing dist tree"`
	Watch    WatchCmd    `cmd:"" help:"Rebuild on source changes"`
	Serve    ServeCmd    `cmd:"" help:"Rebuild on source changes and serve with live reload"`
	Manifest ManifestCmd `cmd:"" help:"Show the asset manifest"`
	History  HistoryCmd  `cmd:"" help:"Show recent builds"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// logLevel honours -v first, then ASSETBUILDER_LOG_LEVEL.
func logLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(os.Getenv("ASSETBUILDER_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// historyStore opens the build history database, or returns nil when the
// configuration disables history.
func historyStore(cfg *config.Config) (*eventstore.SQLiteStore, error) {
	path := cfg.HistoryPath()
	if path == "" {
		return nil, nil
	}
	return eventstore.NewSQLiteStore(path)
}

func closeStore(store *eventstore.SQLiteStore) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		slog.Warn("Failed to close history store", logfields.Error(err))
	}
}

// recorderFor returns the Prometheus recorder and its handler when metrics
// are enabled.
func recorderFor(cfg *config.Config) (metrics.Recorder, http.Handler) {
	if !cfg.Metrics.Enabled {
		return metrics.NoopRecorder{}, nil
	}
	rec := metrics.NewPrometheusRecorder(nil)
	return rec, rec.HTTPHandler()
}

// runPlan executes plan once with history recording when configured.
func runPlan(ctx context.Context, g *Global, cfg *config.Config, plan pipeline.Plan) error {
	store, err := historyStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	opts := []pipeline.Option{pipeline.WithLogger(slog.Default())}
	if store != nil {
		opts = append(opts, pipeline.WithHistory(store))
	}
	report, err := pipeline.NewRunner(cfg, opts...).Run(ctx, plan)
	if report != nil {
		printReport(g.out(), report)
	}
	return err
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

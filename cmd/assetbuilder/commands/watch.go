package commands

import (
	"log/slog"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/daemon"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct{}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	return runDaemon(cfg, false)
}

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Listen string `short:"l" help:"Override dev.listen"`
	Proxy  string `short:"p" help:"Override dev.proxy (application URL to proxy)"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if s.Listen != "" {
		cfg.Dev.Listen = s.Listen
	}
	if s.Proxy != "" {
		cfg.Dev.Proxy = s.Proxy
	}
	return runDaemon(cfg, true)
}

func runDaemon(cfg *config.Config, serve bool) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, err := historyStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	rec, handler := recorderFor(cfg)
	opts := []daemon.Option{
		daemon.WithServer(serve),
		daemon.WithRecorder(rec, handler),
		daemon.WithLogger(slog.Default()),
	}
	if store != nil {
		opts = append(opts, daemon.WithRunnerOptions(pipeline.WithHistory(store)))
	}

	slog.Info("Starting watch mode", slog.Bool("serve", serve), slog.String("source", cfg.SourceRoot()))
	if err := daemon.New(cfg, opts...).Run(ctx); err != nil {
		return err
	}
	slog.Info("Watch mode stopped")
	return nil
}

package commands

import (
	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/pipeline"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Plan string `help:"Plan to run (build, dev, hash)" default:"build" enum:"build,dev,hash"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	plan, err := pipeline.PlanByName(b.Plan, cfg)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return runPlan(ctx, g, cfg, plan)
}

// CleanCmd implements the 'clean' command.
type CleanCmd struct{}

func (c *CleanCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return runPlan(ctx, g, cfg, pipeline.CleanPlan())
}

// HashCmd implements the 'hash' command.
type HashCmd struct{}

func (h *HashCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return runPlan(ctx, g, cfg, pipeline.HashPlan())
}

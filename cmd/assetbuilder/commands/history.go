package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of builds to show" default:"20"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	store, err := historyStore(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return ferrors.ConfigError("build history is disabled (set history.path)").Build()
	}
	defer closeStore(store)

	projection := eventstore.NewBuildHistoryProjection(store, h.Limit)
	if err := projection.Rebuild(context.Background()); err != nil {
		return err
	}
	builds := projection.Recent(h.Limit)

	out := g.out()
	if len(builds) == 0 {
		_, _ = fmt.Fprintln(out, "No builds recorded")
		return nil
	}
	_, _ = fmt.Fprintln(out, renderTable(
		[]string{"Started", "Build", "Plan", "Trigger", "Status", "Duration", "Assets", "Manifest", "Error"},
		historyRows(builds),
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	return nil
}

func historyRows(builds []eventstore.BuildSummary) [][]string {
	rows := make([][]string, 0, len(builds))
	for _, b := range builds {
		id := b.BuildID
		if len(id) > 8 {
			id = id[:8]
		}
		errCol := b.ErrorMessage
		if b.ErrorStage != "" {
			errCol = b.ErrorStage + ": " + errCol
		}
		rows = append(rows, []string{
			b.StartedAt.Local().Format(time.DateTime),
			id,
			b.Plan,
			b.Trigger,
			b.Status,
			b.Duration.Round(time.Millisecond).String(),
			strconv.Itoa(b.AssetCount),
			strconv.Itoa(b.ManifestEntries),
			errCol,
		})
	}
	return rows
}

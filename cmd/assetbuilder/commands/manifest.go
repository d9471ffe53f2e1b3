package commands

import (
	"fmt"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	"git.home.luguber.info/inful/assetbuilder/internal/manifest"
)

// ManifestCmd implements the 'manifest' command.
type ManifestCmd struct {
	JSON bool `help:"Print the raw manifest JSON"`
}

func (m *ManifestCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	path := manifest.Path(cfg.ManifestDir(), cfg.Manifest.Name)
	mf, err := manifest.Read(path)
	if err != nil {
		return err
	}

	out := g.out()
	if m.JSON {
		data, err := manifest.Encode(mf)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	if len(mf) == 0 {
		_, _ = fmt.Fprintf(out, "No manifest entries in %s\n", path)
		return nil
	}
	rows := make([][]string, 0, len(mf))
	for _, k := range mf.Keys() {
		rows = append(rows, []string{k, mf[k]})
	}
	_, _ = fmt.Fprintln(out, renderTable([]string{"Asset", "Fingerprinted"}, rows, nil))
	_, _ = fmt.Fprintf(out, "%d entries in %s\n", len(mf), path)
	return nil
}

package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/careradius/internal/store"
)

// MigrateCmd applies pending schema migrations without starting anything else.
type MigrateCmd struct{}

func (c *MigrateCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	v, err := st.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.Out, "database %s at schema version %d\n", cfg.Database.Path, v)
	return nil
}

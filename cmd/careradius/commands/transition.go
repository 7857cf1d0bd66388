package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/careradius/internal/app"
	"git.home.luguber.info/inful/careradius/internal/geofence"
)

// TransitionCmd delivers a transition by hand, the same path a monitor callback takes.
type TransitionCmd struct {
	Kind   string `arg:"" help:"enter or exit"`
	ZoneID int64  `arg:"" help:"Zone id"`
}

func (c *TransitionCmd) Run(g *Global, root *CLI) error {
	kind, err := geofence.ParseTransitionKind(c.Kind)
	if err != nil {
		return err
	}
	return root.withApp(func(ctx context.Context, a *app.App) error {
		outcome, err := a.Handler.Deliver(ctx, c.ZoneID, kind)
		if err != nil {
			return err
		}
		fmt.Fprintf(g.Out, "%s zone %d: %s\n", kind, c.ZoneID, outcome)
		return nil
	})
}

package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/careradius/internal/app"
)

// ReregisterCmd runs one re-registration pass against the configured monitor.
type ReregisterCmd struct{}

func (c *ReregisterCmd) Run(g *Global, root *CLI) error {
	return root.withApp(func(ctx context.Context, a *app.App) error {
		s, err := a.Coordinator.ReregisterAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(g.Out, "%d zones: %d monitored, %d need background location, %d failed (%s)\n",
			s.Zones, s.Monitored, s.PermissionDenied, s.Failed, s.Duration)
		return nil
	})
}

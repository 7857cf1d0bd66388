package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/careradius/internal/app"
	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/server/responses"
)

// VisitCmd groups the visit history subcommands.
type VisitCmd struct {
	List   VisitListCmd   `cmd:"" help:"List visits, newest first"`
	Delete VisitDeleteCmd `cmd:"" help:"Delete one visit"`
	Clear  VisitClearCmd  `cmd:"" help:"Delete the whole visit history"`
}

type VisitListCmd struct {
	OutputFlag
}

func (c *VisitListCmd) Run(g *Global, root *CLI) error {
	return root.withApp(func(ctx context.Context, a *app.App) error {
		list, err := a.Zones.ListVisits(ctx)
		if err != nil {
			return err
		}
		if c.asJSON() {
			return printJSON(g.Out, responses.NewVisitResponses(list))
		}
		return printVisits(g.Out, list)
	})
}

type VisitDeleteCmd struct {
	ID int64 `arg:"" help:"Visit id"`
}

func (c *VisitDeleteCmd) Run(g *Global, root *CLI) error {
	return root.withApp(func(ctx context.Context, a *app.App) error {
		if err := a.Zones.DeleteVisit(ctx, c.ID); err != nil {
			return err
		}
		fmt.Fprintf(g.Out, "deleted visit %d\n", c.ID)
		return nil
	})
}

type VisitClearCmd struct {
	Yes bool `short:"y" help:"Confirm deleting every visit"`
}

func (c *VisitClearCmd) Run(g *Global, root *CLI) error {
	if !c.Yes {
		return ferrors.ValidationError("refusing to clear the visit history without --yes").Build()
	}
	return root.withApp(func(ctx context.Context, a *app.App) error {
		n, err := a.Zones.ClearVisits(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(g.Out, "deleted %d visits\n", n)
		return nil
	})
}

package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/careradius/internal/app"
	"git.home.luguber.info/inful/careradius/internal/geo"
	"git.home.luguber.info/inful/careradius/internal/geofence"
)

// ZoneCmd groups the zone subcommands.
type ZoneCmd struct {
	Add    ZoneAddCmd    `cmd:"" help:"Create a zone and start monitoring it"`
	List   ZoneListCmd   `cmd:"" help:"List zones, newest first"`
	Update ZoneUpdateCmd `cmd:"" help:"Edit a zone; shrinking it closes the open visit when the device is outside"`
	Move   ZoneMoveCmd   `cmd:"" help:"Move a zone's center"`
	Delete ZoneDeleteCmd `cmd:"" help:"Delete a zone and keep its visit history"`
	Check  ZoneCheckCmd  `cmd:"" help:"Close the zone's open visit if the device is outside it"`
}

type ZoneAddCmd struct {
	Name         string  `arg:"" help:"Zone name"`
	Lat          float64 `required:"" help:"Center latitude"`
	Lng          float64 `required:"" help:"Center longitude"`
	Radius       float64 `default:"30" help:"Radius in meters (10-50)"`
	Icon         string  `help:"Display icon"`
	EntryMessage string  `help:"Notification text on arrival"`
	ExitMessage  string  `help:"Notification text on departure"`
}

func (c *ZoneAddCmd) Run(g *Global, root *CLI) error {
	return root.withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Zones.Create(ctx, geofence.Zone{
			Name:         c.Name,
			Center:       geo.Position{Latitude: c.Lat, Longitude: c.Lng},
			RadiusMeters: c.Radius,
			Icon:         c.Icon,
			EntryMessage: c.EntryMessage,
			ExitMessage:  c.ExitMessage,
		})
		if err != nil {
			return err
		}
		printResult(g.Out, "created", res)
		return nil
	})
}

type ZoneListCmd struct {
	OutputFlag
}

func (c *ZoneListCmd) Run(g *Global, root *CLI) error {
	return root.withApp(func(ctx context.Context, a *app.App) error {
		list, err := a.Zones.List(ctx)
		if err != nil {
			return err
		}
		if c.asJSON() {
			return printJSON(g.Out, list)
		}
		return printZones(g.Out, list)
	})
}

// ZoneUpdateCmd replaces only the fields that were given.
type ZoneUpdateCmd struct {
	ID           int64    `arg:"" help:"Zone id"`
	Name         *string  `help:"New name"`
	Radius       *float64 `help:"New radius in meters (10-50)"`
	Icon         *string  `help:"New icon"`
	EntryMessage *string  `help:"New arrival text"`
	ExitMessage  *string  `help:"New departure text"`
}

func (c *ZoneUpdateCmd) Run(g *Global, root *CLI) error {
	return root.withApp(func(ctx context.Context, a *app.App) error {
		z, err := a.Zones.Get(ctx, c.ID)
		if err != nil {
			return err
		}
		c.apply(&z)
		res, err := a.Zones.Update(ctx, z)
		if err != nil {
			return err
		}
		printResult(g.Out, "updated", res)
		return nil
	})
}

func (c *ZoneUpdateCmd) apply(z *geofence.Zone) {
	if c.Name != nil {
		z.Name = *c.Name
	}
	if c.Radius != nil {
		z.RadiusMeters = *c.Radius
	}
	if c.Icon != nil {
		z.Icon = *c.Icon
	}
	if c.EntryMessage != nil {
		z.EntryMessage = *c.EntryMessage
	}
	if c.ExitMessage != nil {
		z.ExitMessage = *c.ExitMessage
	}
}

type ZoneMoveCmd struct {
	ID  int64   `arg:"" help:"Zone id"`
	Lat float64 `required:"" help:"New center latitude"`
	Lng float64 `required:"" help:"New center longitude"`
}

func (c *ZoneMoveCmd) Run(g *Global, root *CLI) error {
	return root.withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Zones.Move(ctx, c.ID, geo.Position{Latitude: c.Lat, Longitude: c.Lng})
		if err != nil {
			return err
		}
		printResult(g.Out, "moved", res)
		return nil
	})
}

type ZoneDeleteCmd struct {
	ID int64 `arg:"" help:"Zone id"`
}

func (c *ZoneDeleteCmd) Run(g *Global, root *CLI) error {
	return root.withApp(func(ctx context.Context, a *app.App) error {
		if err := a.Zones.Delete(ctx, c.ID); err != nil {
			return err
		}
		fmt.Fprintf(g.Out, "deleted zone %d; its visits are kept\n", c.ID)
		return nil
	})
}

type ZoneCheckCmd struct {
	ID int64 `arg:"" help:"Zone id"`
}

func (c *ZoneCheckCmd) Run(g *Global, root *CLI) error {
	return root.withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Zones.Check(ctx, c.ID)
		if err != nil {
			return err
		}
		printReconcile(g.Out, res)
		return nil
	})
}

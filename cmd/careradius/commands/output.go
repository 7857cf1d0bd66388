package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/reconcile"
	"git.home.luguber.info/inful/careradius/internal/zones"
)

const timeLayout = "2006-01-02 15:04:05"

// OutputFlag selects table or JSON output for listing commands.
type OutputFlag struct {
	Output string `short:"o" enum:"table,json" default:"table" help:"Output format (table, json)"`
}

func (o OutputFlag) asJSON() bool { return o.Output == "json" }

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printZones(w io.Writer, list []geofence.Zone) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tICON\tNAME\tCENTER\tRADIUS\tCREATED")
	for _, z := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.0fm\t%s\n",
			z.ID, z.Icon, z.Name, z.Center, z.RadiusMeters, z.CreatedAt.Local().Format(timeLayout))
	}
	return tw.Flush()
}

func printVisits(w io.Writer, list []geofence.VisitWithZone) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tZONE\tENTERED\tEXITED\tDURATION")
	for _, v := range list {
		name := v.ZoneName
		if v.Zone == nil {
			name += " (deleted)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			v.ID, name, v.EntryTime.Local().Format(timeLayout), formatExit(v.ExitTime), v.FormattedDuration())
	}
	return tw.Flush()
}

func formatExit(t *time.Time) string {
	if t == nil {
		return "--"
	}
	return t.Local().Format(timeLayout)
}

func printResult(w io.Writer, verb string, res zones.Result) {
	fmt.Fprintf(w, "%s zone %d (%s)\n", verb, res.Zone.ID, res.Zone.Name)
	if res.Registration.Monitored {
		fmt.Fprintln(w, "monitoring: active")
	}
	if res.Warning != "" {
		fmt.Fprintf(w, "warning: %s\n", res.Warning)
	}
	if res.Reconcile != nil {
		printReconcile(w, *res.Reconcile)
	}
}

func printReconcile(w io.Writer, r reconcile.Result) {
	switch {
	case r.Closed != nil:
		fmt.Fprintf(w, "closed visit %d (%s)\n", r.Closed.ID, r.Closed.FormattedDuration())
	case r.Skipped != "":
		fmt.Fprintf(w, "open visit kept: %s\n", r.Skipped)
	}
}

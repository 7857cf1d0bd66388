package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/careradius/cmd/careradius/commands"
	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("careradius"),
		kong.Description("Geofence zones, region monitoring and a visit ledger."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := ctx.Run(&commands.Global{Logger: slog.Default(), Out: os.Stdout}, &cli)
	ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}

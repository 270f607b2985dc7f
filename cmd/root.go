package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "vigil",
		Usage: "A status page change monitor",
		Description: `Vigil continuously polls the status feeds of configured
		providers, detects new and updated incidents, and fans the resulting
		change events out to consumers: the console, an SQLite archive, and
		browser clients via server-sent events.

		Fetches are conditional (ETag / Last-Modified) so unchanged feeds cost
		next to nothing, and failing providers back off exponentially without
		affecting the rest.

		Flags can generally be set via environment variables, e.g.:

		--config => VIGIL_CONFIG=config/providers.toml
		--port => VIGIL_PORT=8085
		`,
		Commands: []*cli.Command{
			serveCmd(),
			watchCmd(),
			checkCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
			initCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

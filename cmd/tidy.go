package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"vigil/db"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the event archive",
		Description: `Tidy up the event archive by removing events that are old.

		Remove events that are older than 90 days from the archive.
		This is to keep the database size down and to keep the dashboard fresh.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "vigil.db",
				Usage:   "SQLite database file location",
				EnvVars: []string{"VIGIL_DATABASE"},
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")
			fmt.Println("Database configured: ", database)
			return db.Tidy(database)
		},
	}
}

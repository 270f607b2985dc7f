package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"vigil/config"
	"vigil/events"
	"vigil/feed"
	"vigil/fetcher"
	"vigil/models"
	"vigil/monitor"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Log all status change events to the command line",
		Description: `Polls the configured providers and prints every detected
change event to stdout, without the HTTP server or the archive.

Returns each event as a JSON object on a single line. Use a tool like jq
to process the output.

Prints all other log messages to stderr.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/providers.toml",
				Usage:   "Path to the provider registry",
				EnvVars: []string{"VIGIL_CONFIG"},
			},
		},
		Action: func(ctx *cli.Context) error {
			// Keep stdout clean for the event stream
			log.SetOutput(os.Stderr)

			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			bus := events.New(events.DefaultBuffer)
			fetch := fetcher.New(time.Duration(cfg.Fetch.Timeout)*time.Second, cfg.Fetch.UserAgent)
			mon := monitor.New(cfg, bus, fetch, feed.Extract)

			sub := bus.Subscribe()
			go func() {
				defer sub.Unsubscribe()
				for {
					select {
					case <-runCtx.Done():
						return
					case event := <-sub.C:
						printStdout(&event)
					}
				}
			}()

			mon.Run(runCtx)
			return nil
		},
	}
}

func printStdout(event *models.StatusEvent) {
	// Print as single JSON string on a single line
	eventJson, err := json.Marshal(event)
	if err == nil {
		fmt.Println(string(eventJson))
	}
}

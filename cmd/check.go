package cmd

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"vigil/config"
	"vigil/consumers"
	"vigil/events"
	"vigil/feed"
	"vigil/fetcher"
	"vigil/monitor"
)

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Poll every provider once and exit",
		Description: `Runs a single poll cycle against every configured provider
and prints the detected events. Since there is no prior state, every entry
currently in a feed is reported as new.

Useful for verifying a registry before running serve.`,
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
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return err
			}

			bus := events.New(events.DefaultBuffer)
			fetch := fetcher.New(time.Duration(cfg.Fetch.Timeout)*time.Second, cfg.Fetch.UserAgent)
			mon := monitor.New(cfg, bus, fetch, feed.Extract)

			sub := bus.Subscribe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				for {
					select {
					case <-sub.Done():
						// Drain anything still buffered before exiting
						for {
							select {
							case event := <-sub.C:
								fmt.Println(consumers.FormatEvent(event))
							default:
								return
							}
						}
					case event := <-sub.C:
						fmt.Println(consumers.FormatEvent(event))
					}
				}
			}()

			failed := 0
			for _, poller := range mon.Pollers() {
				if err := poller.PollOnce(ctx.Context); err != nil {
					failed++
					log.WithFields(log.Fields{
						"provider": poller.Provider().Name,
					}).WithError(err).Error("Check failed")
				}
			}

			sub.Unsubscribe()
			<-done

			fmt.Printf("Checked %d provider(s), %d failed\n", len(cfg.Providers), failed)
			if failed > 0 {
				return fmt.Errorf("%d provider(s) failed", failed)
			}
			return nil
		},
	}
}

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"vigil/config"
	"vigil/consumers"
	"vigil/db"
	"vigil/events"
	"vigil/feed"
	"vigil/fetcher"
	"vigil/monitor"
	"vigil/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the monitor and the dashboard server",
		Description: `Starts the full pipeline: one poll loop per configured
provider, the console and archive consumers, and the HTTP server with the
SSE event stream, dashboard endpoints and prometheus metrics.

Runs until interrupted, then shuts down gracefully.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/providers.toml",
				Usage:   "Path to the provider registry",
				EnvVars: []string{"VIGIL_CONFIG"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the HTTP server, overrides the config file",
				EnvVars: []string{"VIGIL_PORT"},
			},
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Usage:   "SQLite event archive location, overrides the config file",
				EnvVars: []string{"VIGIL_DATABASE"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return err
			}
			if ctx.IsSet("port") {
				cfg.Server.Port = ctx.Int("port")
			}
			if ctx.IsSet("database") {
				cfg.Archive.Database = ctx.String("database")
			}

			log.WithFields(log.Fields{
				"providers": len(cfg.Providers),
			}).Info("Starting vigil...")

			runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			bus := events.New(events.DefaultBuffer)
			fetch := fetcher.New(time.Duration(cfg.Fetch.Timeout)*time.Second, cfg.Fetch.UserAgent)
			mon := monitor.New(cfg, bus, fetch, feed.Extract)

			var wg sync.WaitGroup

			wg.Add(1)
			go func() {
				defer wg.Done()
				consumers.NewConsole(bus).Run(runCtx)
			}()

			var reader *db.Reader
			if cfg.Archive.Enabled {
				if err := db.Migrate(cfg.Archive.Database); err != nil {
					return fmt.Errorf("migrating archive: %w", err)
				}
				writer, err := db.NewWriter(cfg.Archive.Database)
				if err != nil {
					return fmt.Errorf("opening archive for writing: %w", err)
				}
				defer writer.Close()

				reader, err = db.NewReader(cfg.Archive.Database)
				if err != nil {
					return fmt.Errorf("opening archive for reading: %w", err)
				}
				defer reader.Close()

				wg.Add(1)
				go func() {
					defer wg.Done()
					consumers.NewArchive(bus, writer).Run(runCtx)
				}()
			}

			app := server.Server(&server.ServerConfig{
				Hostname:  cfg.Server.Hostname,
				Providers: cfg.Providers,
				Reader:    reader,
				Bus:       bus,
			})

			go func() {
				log.WithFields(log.Fields{
					"port": cfg.Server.Port,
				}).Info("Starting server...")
				if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
					log.WithError(err).Error("Server stopped")
				}
			}()

			wg.Add(1)
			go func() {
				defer wg.Done()
				mon.Run(runCtx)
			}()

			<-runCtx.Done()
			log.Info("Gracefully shutting down...")
			if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
				log.WithError(err).Warn("Server shutdown failed")
			}
			wg.Wait()

			log.Info("Goodbye")
			return nil
		},
	}
}

package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"vigil/config"
	"vigil/db"
	"vigil/events"
)

type ServerConfig struct {

	// The hostname to use for the server
	Hostname string

	// The provider registry, exposed read-only
	Providers []config.Provider

	// The reader for archived events, nil when the archive is disabled
	Reader *db.Reader

	// The bus to subscribe SSE clients to
	Bus *events.Bus
}

// Returns a fiber.App instance serving the dashboard endpoints, the SSE
// event stream and prometheus metrics.
func Server(config *ServerConfig) *fiber.App {

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Cache-Control",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"subscribers": config.Bus.Size(),
		})
	})

	// The registry as consumed at startup; no hot reload
	app.Get("/providers", func(c *fiber.Ctx) error {
		return c.JSON(config.Providers)
	})

	app.Get("/dashboard/events", func(c *fiber.Ctx) error {
		if config.Reader == nil {
			return c.Status(404).SendString("Event archive is disabled")
		}

		provider := c.Query("provider", "")
		limit := c.QueryInt("limit", 50)

		archived, err := config.Reader.RecentEvents(provider, limit)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error getting archived events")
			return c.Status(500).SendString("Error getting archived events")
		}

		return c.JSON(archived)
	})

	app.Get("/dashboard/events-per-time", func(c *fiber.Ctx) error {
		if config.Reader == nil {
			return c.Status(404).SendString("Event archive is disabled")
		}

		provider := c.Query("provider", "")
		timeAgg := c.Query("time", "hour")

		// check if time is hour, day or week
		if timeAgg != "hour" && timeAgg != "day" && timeAgg != "week" {
			return c.Status(400).SendString("Invalid time")
		}

		counts, err := config.Reader.GetEventCountPerTime(provider, timeAgg)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error getting events per time")
			return c.Status(500).SendString("Error getting events per time")
		}

		return c.Status(200).JSON(counts)
	})

	app.Get("/events/sse", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		// Unique client key
		key := uuid.New().String()
		sub := config.Bus.Subscribe()
		keepAlive := time.NewTicker(5 * time.Second)

		log.WithFields(log.Fields{
			"key": key,
		}).Info("SSE client connected")

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer keepAlive.Stop()
			defer sub.Unsubscribe()
			defer log.Infof("Cleaning up SSE stream for client: %s", key)

			// Send initial event with client key
			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-keepAlive.C:
					// Send keep-alive pings
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						log.Warnf("Failed to send ping to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush ping for client %s: %v", key, err)
						return
					}

				case event := <-sub.C:
					jsonEvent, err := json.Marshal(event)
					if err != nil {
						log.Errorf("Error marshalling event for client %s: %v", key, err)
						continue
					}
					if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", jsonEvent); err != nil {
						log.Warnf("Failed to send status event to client %s: %v", key, err)
						return
					}
					if err := w.Flush(); err != nil {
						log.Warnf("Failed to flush status event for client %s: %v", key, err)
						return
					}
				}
			}
		}))

		return nil
	})

	return app
}

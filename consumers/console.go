// Package consumers contains the event bus subscribers shipped with the
// binary. Each consumer drains its own subscription; a slow consumer
// backpressures publishers rather than losing events, so consumers
// should stay prompt.
package consumers

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/gommon/color"
	log "github.com/sirupsen/logrus"

	"vigil/events"
	"vigil/models"
)

const separator = "----------------------------------------"

// Console prints each status event as a human-readable block on stdout.
type Console struct {
	bus *events.Bus
}

func NewConsole(bus *events.Bus) *Console {
	return &Console{bus: bus}
}

// Run consumes events until ctx is cancelled.
func (c *Console) Run(ctx context.Context) {
	sub := c.bus.Subscribe()
	defer sub.Unsubscribe()

	log.Info("Console consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info("Console consumer stopped")
			return
		case event := <-sub.C:
			fmt.Println(FormatEvent(event))
		}
	}
}

// FormatEvent renders event as the block the console consumer prints.
func FormatEvent(event models.StatusEvent) string {
	tag := color.Green("[NEW]")
	if event.EventType == models.EventTypeUpdated {
		tag = color.Yellow("[UPDATED]")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s Provider: %s\n", event.Timestamp.Format("2006-01-02 15:04:05"), tag, event.Provider)
	fmt.Fprintf(&b, "Product: %s\n", event.Product)
	fmt.Fprintf(&b, "Status: %s", event.Status)
	if event.Message != "" {
		fmt.Fprintf(&b, " %s", event.Message)
	}
	b.WriteString("\n" + separator)
	return b.String()
}

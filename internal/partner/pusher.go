package partner

import (
	"context"
	"log/slog"
	"time"

	"github.com/tour-availability/backend/internal/availability"
)

// OccupancyPusher translates the merged occupied view into availability
// slots for one partner product. Every occupied range becomes a slot with
// zero vacancies; the partner infers open slots from its own product grid.
type OccupancyPusher struct {
	client    *Client
	productID string
	log       *slog.Logger
}

// NewOccupancyPusher builds a pusher for the given product. Returns nil when
// the client is not configured or no product is set, so callers can wire it
// straight into the sync service (which treats a nil pusher as disabled).
func NewOccupancyPusher(client *Client, productID string, logger *slog.Logger) *OccupancyPusher {
	if client == nil || !client.Configured() || productID == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OccupancyPusher{client: client, productID: productID, log: logger}
}

// PushOccupied pushes the occupied ranges as zero-vacancy slots.
func (p *OccupancyPusher) PushOccupied(ctx context.Context, occupied []availability.OccupiedRange) error {
	slots := make([]AvailabilitySlot, 0, len(occupied))
	for _, rng := range occupied {
		slots = append(slots, AvailabilitySlot{
			DateTime:  rng.Start.UTC(),
			Vacancies: 0,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := p.client.PushAvailability(ctx, p.productID, slots); err != nil {
		p.log.Error("partner availability push failed",
			"product_id", p.productID,
			"slots", len(slots),
			"error", err,
		)
		return err
	}

	p.log.Info("partner availability pushed",
		"product_id", p.productID,
		"slots", len(slots),
	)
	return nil
}

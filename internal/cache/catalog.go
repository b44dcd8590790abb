package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anjeev1098/reservation-system/internal/registration"
)

// Catalog is a read-through Redis cache in front of a registration.Catalog.
// Redis failures are logged and the request falls through to the source.
type Catalog struct {
	rdb    redis.UniversalClient
	source registration.Catalog
	ttl    time.Duration
	logger *slog.Logger
}

var _ registration.Catalog = (*Catalog)(nil)

// NewCatalog wraps source. A nil logger discards cache warnings.
func NewCatalog(rdb redis.UniversalClient, source registration.Catalog, ttl time.Duration, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Catalog{rdb: rdb, source: source, ttl: ttl, logger: logger}
}

func eventKey(eventID string) string   { return fmt.Sprintf("catalog:event:%s", eventID) }
func ticketsKey(eventID string) string { return fmt.Sprintf("catalog:tickets:%s", eventID) }

func (c *Catalog) GetEvent(ctx context.Context, eventID string) (registration.Event, error) {
	var ev registration.Event
	if c.load(ctx, eventKey(eventID), &ev) {
		return ev, nil
	}

	ev, err := c.source.GetEvent(ctx, eventID)
	if err != nil {
		return registration.Event{}, err
	}
	c.store(ctx, eventKey(eventID), ev)
	return ev, nil
}

func (c *Catalog) GetTicketTypes(ctx context.Context, eventID string) ([]registration.TicketType, error) {
	var types []registration.TicketType
	if c.load(ctx, ticketsKey(eventID), &types) {
		return types, nil
	}

	types, err := c.source.GetTicketTypes(ctx, eventID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, ticketsKey(eventID), types)
	return types, nil
}

// Invalidate drops both cached entries of an event.
func (c *Catalog) Invalidate(ctx context.Context, eventID string) error {
	return c.rdb.Del(ctx, eventKey(eventID), ticketsKey(eventID)).Err()
}

func (c *Catalog) load(ctx context.Context, key string, dst any) bool {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("catalog cache read", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		c.logger.Warn("catalog cache decode", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Catalog) store(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("catalog cache encode", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write", "key", key, "error", err)
	}
}

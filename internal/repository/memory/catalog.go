package memory

import (
	"context"
	"sync"

	"seatline/internal/models"
)

// Catalog is a read-only trip catalog backed by a map
type Catalog struct {
	mu    sync.RWMutex
	trips map[int64]*models.Trip
}

func NewCatalog(trips ...*models.Trip) *Catalog {
	c := &Catalog{trips: make(map[int64]*models.Trip)}
	for _, t := range trips {
		c.Put(t)
	}
	return c
}

func (c *Catalog) Put(trip *models.Trip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trips[trip.ID] = trip
}

func (c *Catalog) GetTrip(ctx context.Context, id int64) (*models.Trip, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.trips[id]
	if !ok {
		return nil, nil
	}
	out := *t
	return &out, nil
}

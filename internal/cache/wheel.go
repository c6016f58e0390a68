package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bxdofficial/Nawi/internal/models"
)

type ActiveWheelLoader func(context.Context) (*models.Wheel, error)

// ActiveWheelCache keeps the currently active wheel hot so spins do not
// hit the database for configuration. Admin edits call Invalidate.
type ActiveWheelCache struct {
	mu       sync.RWMutex
	value    *models.Wheel
	expires  time.Time
	ttl      time.Duration
	loadFunc ActiveWheelLoader
}

func NewActiveWheelCache(ttl time.Duration, loader ActiveWheelLoader) *ActiveWheelCache {
	return &ActiveWheelCache{
		ttl:      ttl,
		loadFunc: loader,
	}
}

func (c *ActiveWheelCache) Get(ctx context.Context) (*models.Wheel, error) {
	c.mu.RLock()
	if time.Now().Before(c.expires) && c.value != nil {
		defer c.mu.RUnlock()
		return c.value, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().Before(c.expires) && c.value != nil {
		return c.value, nil
	}
	wheel, err := c.loadFunc(ctx)
	if err != nil {
		return nil, err
	}
	c.value = wheel
	c.expires = time.Now().Add(c.ttl)
	return wheel, nil
}

func (c *ActiveWheelCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
	c.expires = time.Time{}
}

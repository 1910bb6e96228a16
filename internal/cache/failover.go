package cache

import (
	"context"
	"sync/atomic"
	"time"

	"renthub/internal/domain"
	"renthub/internal/dto"

	"github.com/rs/zerolog"
)

// FailoverListCache serves from the primary cache until it fails, then
// degrades to the fallback. The primary is probed again a minute after
// the last failure.
type FailoverListCache struct {
	primary   domain.ListCache
	fallback  domain.ListCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverListCache(primary, fallback domain.ListCache, logger *zerolog.Logger) *FailoverListCache {
	return &FailoverListCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FailoverListCache) markDown(err error) {
	c.logger.Error().Err(err).Msg("primary list cache failed, falling back to memory")
	c.isDown.Store(true)
	c.lastCheck.Store(time.Now().UnixNano())
}

func (c *FailoverListCache) shouldProbe() bool {
	return c.isDown.Load() && time.Since(time.Unix(0, c.lastCheck.Load())) > time.Minute
}

func (c *FailoverListCache) GetList(ctx context.Context, role domain.Role, userID int64, state string) ([]dto.BookingView, bool, error) {
	if !c.isDown.Load() {
		views, found, err := c.primary.GetList(ctx, role, userID, state)
		if err == nil {
			return views, found, nil
		}
		c.markDown(err)
	} else if c.shouldProbe() {
		views, found, err := c.primary.GetList(ctx, role, userID, state)
		if err == nil {
			c.isDown.Store(false)
			return views, found, nil
		}
		c.lastCheck.Store(time.Now().UnixNano())
	}

	return c.fallback.GetList(ctx, role, userID, state)
}

func (c *FailoverListCache) SetList(ctx context.Context, role domain.Role, userID int64, state string, views []dto.BookingView) error {
	if !c.isDown.Load() {
		err := c.primary.SetList(ctx, role, userID, state, views)
		if err == nil {
			return nil
		}
		c.markDown(err)
	}

	return c.fallback.SetList(ctx, role, userID, state, views)
}

// Invalidate clears both layers. Leaving stale entries in the idle layer
// would serve outdated lists after a failover flip.
func (c *FailoverListCache) Invalidate(ctx context.Context, bookerID, ownerID int64) error {
	if !c.isDown.Load() {
		if err := c.primary.Invalidate(ctx, bookerID, ownerID); err != nil {
			c.markDown(err)
		}
	}

	return c.fallback.Invalidate(ctx, bookerID, ownerID)
}

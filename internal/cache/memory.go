package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"renthub/internal/domain"
	"renthub/internal/dto"
)

type memoryEntry struct {
	views     []dto.BookingView
	expiresAt time.Time
}

// MemoryListCache is the in-process fallback behind the Redis cache.
type MemoryListCache struct {
	entries sync.Map
	ttl     time.Duration
}

func NewMemoryListCache(ttl time.Duration) *MemoryListCache {
	return &MemoryListCache{ttl: ttl}
}

func (c *MemoryListCache) GetList(ctx context.Context, role domain.Role, userID int64, state string) ([]dto.BookingView, bool, error) {
	val, ok := c.entries.Load(listKey(role, userID, state))
	if !ok {
		return nil, false, nil
	}
	entry := val.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		c.entries.Delete(listKey(role, userID, state))
		return nil, false, nil
	}
	return entry.views, true, nil
}

func (c *MemoryListCache) SetList(ctx context.Context, role domain.Role, userID int64, state string, views []dto.BookingView) error {
	c.entries.Store(listKey(role, userID, state), &memoryEntry{
		views:     views,
		expiresAt: time.Now().Add(c.ttl),
	})
	return nil
}

func (c *MemoryListCache) Invalidate(ctx context.Context, bookerID, ownerID int64) error {
	prefixes := []string{
		listKey(domain.RoleBooker, bookerID, ""),
		listKey(domain.RoleOwner, ownerID, ""),
	}
	c.entries.Range(func(key, _ any) bool {
		k := key.(string)
		for _, prefix := range prefixes {
			if strings.HasPrefix(k, prefix) {
				c.entries.Delete(key)
				break
			}
		}
		return true
	})
	return nil
}

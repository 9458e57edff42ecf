package cache

import (
	"context"
	"time"

	"splitledger/internal/core"
)

// rosterTTL bounds staleness when an invalidation is missed (for example a
// join handled by another process). Rosters change rarely, so a short TTL
// costs little.
const rosterTTL = 30 * time.Second

// RosterCache caches group member rosters for request-path lookups such as
// caller identity checks. Writers must Invalidate after membership changes.
type RosterCache struct {
	lru    *LRUCache[[]core.Member]
	loader func(ctx context.Context, groupID string) ([]core.Member, error)
}

func NewRosterCache(size int, loader func(ctx context.Context, groupID string) ([]core.Member, error)) *RosterCache {
	return &RosterCache{
		lru:    NewLRUCache[[]core.Member](size, rosterTTL),
		loader: loader,
	}
}

// Members returns the group roster, loading it on a miss.
func (c *RosterCache) Members(ctx context.Context, groupID string) ([]core.Member, error) {
	if members, ok := c.lru.Get(groupID); ok {
		return members, nil
	}

	members, err := c.loader(ctx, groupID)
	if err != nil {
		return nil, err
	}
	c.lru.Set(groupID, members)
	return members, nil
}

// Member returns one member of the group, or core.ErrMemberNotFound.
func (c *RosterCache) Member(ctx context.Context, groupID, memberID string) (core.Member, error) {
	members, err := c.Members(ctx, groupID)
	if err != nil {
		return core.Member{}, err
	}
	for _, m := range members {
		if m.ID == memberID {
			return m, nil
		}
	}
	return core.Member{}, core.ErrMemberNotFound
}

// Invalidate drops the cached roster after a membership change.
func (c *RosterCache) Invalidate(groupID string) {
	c.lru.Delete(groupID)
}

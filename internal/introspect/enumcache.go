package introspect

import (
	"context"
	"fmt"
	"sync"
)

// EnumLoader fetches the enum definition behind a type OID, returning nil
// when the OID is not an enum type.
type EnumLoader func(ctx context.Context, oid uint32) (*EnumTypeInfo, error)

// EnumCache memoizes enum lookups for the duration of a generation run. A
// miss performs exactly one catalog round trip; negative results are cached
// too, so a non-enum OID is probed only once. Entries are never invalidated
// within a run.
type EnumCache struct {
	mu      sync.Mutex
	load    EnumLoader
	entries map[uint32]*EnumTypeInfo
}

func NewEnumCache(load EnumLoader) *EnumCache {
	return &EnumCache{
		load:    load,
		entries: make(map[uint32]*EnumTypeInfo),
	}
}

// LoadOrQuery returns the cached entry for oid, loading it on first use.
// The lock is held across the load so concurrent analyses never issue
// duplicate round trips for the same OID.
func (c *EnumCache) LoadOrQuery(ctx context.Context, oid uint32) (*EnumTypeInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if info, ok := c.entries[oid]; ok {
		return info, nil
	}

	info, err := c.load(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("failed to look up enum type for oid %d: %w", oid, err)
	}
	c.entries[oid] = info
	return info, nil
}

// Size returns the number of cached entries, counting negatives.
func (c *EnumCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

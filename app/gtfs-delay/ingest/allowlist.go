package ingest

import (
	"context"
	"fmt"

	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfs"
)

// RouteAllowlistCache holds the route_ids operated by the monitored agencies.
// Loaded once on first use and never refreshed, the schedule does not change during a run.
// Owned by a single worker, not safe for concurrent use
type RouteAllowlistCache struct {
	store     gtfs.ScheduleStore
	agencyIds []int64
	routeIds  map[int64]bool
}

// NewRouteAllowlistCache creates an empty RouteAllowlistCache for routes of agencyIds
func NewRouteAllowlistCache(store gtfs.ScheduleStore, agencyIds []int64) *RouteAllowlistCache {
	return &RouteAllowlistCache{
		store:     store,
		agencyIds: agencyIds,
		routeIds:  make(map[int64]bool),
	}
}

// EnsureLoaded populates the cache from the ScheduleStore if it is empty
func (c *RouteAllowlistCache) EnsureLoaded(ctx context.Context) error {
	if len(c.routeIds) > 0 {
		return nil
	}
	routeIds, err := c.store.ListAllowedRouteIds(ctx, c.agencyIds)
	if err != nil {
		return fmt.Errorf("unable to load allowed routes: %w", err)
	}
	for _, routeId := range routeIds {
		c.routeIds[routeId] = true
	}
	return nil
}

// IsAllowed returns true if routeId belongs to one of the monitored agencies
func (c *RouteAllowlistCache) IsAllowed(routeId int64) bool {
	return c.routeIds[routeId]
}

// Len returns the number of allowed routes
func (c *RouteAllowlistCache) Len() int {
	return len(c.routeIds)
}

package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/OpenTransitTools/gtfsdelay/business/data/delay"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfs"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfsrt"
)

// RouteFilter decides which routes observations are recorded for
type RouteFilter interface {
	IsAllowed(routeId int64) bool
}

// ExtractStats counts what happened to the entities of one or more snapshots
type ExtractStats struct {
	Entities         int
	Observations     int
	Deleted          int
	MalformedIds     int
	DisallowedRoutes int
	BadStartTimes    int
	NotScheduled     int
}

// Add accumulates other into s
func (s *ExtractStats) Add(other ExtractStats) {
	s.Entities += other.Entities
	s.Observations += other.Observations
	s.Deleted += other.Deleted
	s.MalformedIds += other.MalformedIds
	s.DisallowedRoutes += other.DisallowedRoutes
	s.BadStartTimes += other.BadStartTimes
	s.NotScheduled += other.NotScheduled
}

// Dropped returns the number of entities that produced no observations because they could not or should not be used
func (s ExtractStats) Dropped() int {
	return s.Deleted + s.MalformedIds + s.DisallowedRoutes + s.BadStartTimes
}

// ExtractDelays builds an Observation for every scheduled stop time update of allowed routes in feed.
// Service dates and trip starts are resolved in location
func ExtractDelays(feed *gtfsrt.FeedMessage,
	routes RouteFilter,
	location *time.Location) ([]*delay.Observation, ExtractStats) {

	var stats ExtractStats
	var results []*delay.Observation
	timestamp := feed.Header.Time()

	for _, entity := range feed.Entity {
		stats.Entities++
		if entity.IsDeleted || entity.TripUpdate == nil {
			stats.Deleted++
			continue
		}
		trip := entity.TripUpdate.Trip
		tripId := parseId(trip.TripId)
		routeId := parseId(trip.RouteId)
		if tripId == 0 || routeId == 0 {
			stats.MalformedIds++
			continue
		}
		if !routes.IsAllowed(routeId) {
			stats.DisallowedRoutes++
			continue
		}
		serviceDate, err := gtfs.ParseGTFSDate(trip.StartDate, location)
		if err != nil {
			stats.BadStartTimes++
			continue
		}
		startTime, err := gtfs.ParseGTFSTime(trip.StartTime)
		if err != nil {
			stats.BadStartTimes++
			continue
		}
		tripStart := gtfs.MakeScheduleTime(serviceDate, startTime)
		serviceDateKey := gtfs.ServiceDateKey(serviceDate)

		for _, update := range entity.TripUpdate.StopTimeUpdate {
			if update.ScheduleRelationship != gtfsrt.Scheduled {
				stats.NotScheduled++
				continue
			}
			results = append(results, &delay.Observation{
				ServiceDate:    serviceDateKey,
				Timestamp:      timestamp,
				TripId:         tripId,
				RouteId:        routeId,
				StopId:         update.StopId,
				StopSequence:   int(update.GetStopSequence()),
				StartTime:      startTime,
				TripStart:      tripStart,
				ArrivalDelay:   eventDelay(update.Arrival),
				DepartureDelay: eventDelay(update.Departure),
			})
		}
	}
	stats.Observations = len(results)
	return results, stats
}

// parseId returns the positive integer held by id, or 0 if there is none
func parseId(id string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func eventDelay(event gtfsrt.StopTimeEvent) *int {
	seconds, ok := event.DelaySeconds()
	if !ok {
		return nil
	}
	return &seconds
}

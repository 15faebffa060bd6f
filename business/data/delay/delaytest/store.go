// Package delaytest provides an in memory implementation of the schedule and observation stores for tests
package delaytest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/OpenTransitTools/gtfsdelay/business/data/delay"
	"github.com/OpenTransitTools/gtfsdelay/business/data/gtfs"
)

// Store implements gtfs.ScheduleStore and delay.ObservationStore in memory.
// Routes and StopTimes make up the schedule, and may be set directly before use
type Store struct {
	Routes    []gtfs.Route
	StopTimes []*gtfs.StopTime

	// InsertErr, when set, is returned by every call to InsertObservations
	InsertErr error

	mu           sync.Mutex
	observations []*delay.Observation
	nextId       int64
	insertSizes  []int
	routeLoads   int
}

// NewStore creates Store with schedule
func NewStore(routes []gtfs.Route, stopTimes []*gtfs.StopTime) *Store {
	return &Store{
		Routes:    routes,
		StopTimes: stopTimes,
		nextId:    1,
	}
}

// ListAllowedRouteIds implements gtfs.ScheduleStore
func (s *Store) ListAllowedRouteIds(_ context.Context, agencyIds []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routeLoads++
	agencies := make(map[int64]bool)
	for _, agencyId := range agencyIds {
		agencies[agencyId] = true
	}
	var results []int64
	for _, route := range s.Routes {
		if agencies[route.AgencyId] {
			results = append(results, route.RouteId)
		}
	}
	return results, nil
}

// ListScheduledStopsForTrips implements gtfs.ScheduleStore
func (s *Store) ListScheduledStopsForTrips(_ context.Context, tripIds []int64) ([]*gtfs.StopTime, error) {
	wanted := make(map[int64]bool)
	for _, tripId := range tripIds {
		wanted[tripId] = true
	}
	results := make([]*gtfs.StopTime, 0)
	for _, stopTime := range s.StopTimes {
		if wanted[stopTime.TripId] {
			results = append(results, stopTime)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].TripId != results[j].TripId {
			return results[i].TripId < results[j].TripId
		}
		return results[i].StopSequence < results[j].StopSequence
	})
	return results, nil
}

// InsertObservations implements delay.ObservationStore
func (s *Store) InsertObservations(_ context.Context, observations []*delay.Observation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return 0, s.InsertErr
	}
	s.insertSizes = append(s.insertSizes, len(observations))
	for _, observation := range observations {
		stored := *observation
		stored.Id = s.nextId
		s.nextId++
		s.observations = append(s.observations, &stored)
	}
	return int64(len(observations)), nil
}

// ListDistinctTripIds implements delay.ObservationStore
func (s *Store) ListDistinctTripIds(_ context.Context, serviceDate time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int64]bool)
	var results []int64
	for _, o := range s.observations {
		if o.ServiceDate.Equal(serviceDate) && !seen[o.TripId] {
			seen[o.TripId] = true
			results = append(results, o.TripId)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	return results, nil
}

// ListObservations implements delay.ObservationStore
func (s *Store) ListObservations(_ context.Context, serviceDate time.Time, tripId int64) ([]*delay.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var results []*delay.Observation
	for _, o := range s.observations {
		if o.ServiceDate.Equal(serviceDate) && o.TripId == tripId {
			c := *o
			results = append(results, &c)
		}
	}
	sortObservations(results)
	return results, nil
}

// DeleteObservations implements delay.ObservationStore
func (s *Store) DeleteObservations(_ context.Context,
	serviceDate time.Time,
	tripId int64,
	excludeIds []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exclude := make(map[int64]bool)
	for _, id := range excludeIds {
		exclude[id] = true
	}
	var deleted int64
	remaining := make([]*delay.Observation, 0, len(s.observations))
	for _, o := range s.observations {
		if o.ServiceDate.Equal(serviceDate) && o.TripId == tripId && !exclude[o.Id] {
			deleted++
			continue
		}
		remaining = append(remaining, o)
	}
	s.observations = remaining
	return deleted, nil
}

// ListDistinctServiceDates implements delay.ObservationStore
func (s *Store) ListDistinctServiceDates(_ context.Context) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var results []time.Time
	for _, o := range s.observations {
		present := false
		for _, d := range results {
			if d.Equal(o.ServiceDate) {
				present = true
				break
			}
		}
		if !present {
			results = append(results, o.ServiceDate)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Before(results[j]) })
	return results, nil
}

// Truncate implements delay.ObservationStore
func (s *Store) Truncate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations = nil
	s.nextId = 1
	return nil
}

// Observations returns a copy of every stored Observation ordered by timestamp then id
func (s *Store) Observations() []*delay.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]*delay.Observation, 0, len(s.observations))
	for _, o := range s.observations {
		c := *o
		results = append(results, &c)
	}
	sortObservations(results)
	return results
}

// InsertSizes returns the number of rows passed to each InsertObservations call
func (s *Store) InsertSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.insertSizes...)
}

// RouteLoads returns the number of times ListAllowedRouteIds was called
func (s *Store) RouteLoads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.routeLoads
}

func sortObservations(observations []*delay.Observation) {
	sort.SliceStable(observations, func(i, j int) bool {
		if !observations[i].Timestamp.Equal(observations[j].Timestamp) {
			return observations[i].Timestamp.Before(observations[j].Timestamp)
		}
		return observations[i].Id < observations[j].Id
	})
}

package delay

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/OpenTransitTools/gtfsdelay/foundation/database"
	"github.com/jmoiron/sqlx"
)

// DBStore implements ObservationStore with the delay_observation table
type DBStore struct {
	log *log.Logger
	db  *sqlx.DB
}

// NewDBStore creates DBStore using db
func NewDBStore(log *log.Logger, db *sqlx.DB) *DBStore {
	return &DBStore{log: log, db: db}
}

// InsertObservations saves observations into database in batch
func (s *DBStore) InsertObservations(ctx context.Context, observations []*Observation) (int64, error) {
	if len(observations) == 0 {
		return 0, nil
	}
	statementString := "insert into delay_observation ( " +
		"service_date, " +
		"timestamp, " +
		"trip_id, " +
		"route_id, " +
		"stop_id, " +
		"stop_sequence, " +
		"start_time, " +
		"trip_start, " +
		"arrival_delay, " +
		"departure_delay) " +
		"values (" +
		":service_date, " +
		":timestamp, " +
		":trip_id, " +
		":route_id, " +
		":stop_id, " +
		":stop_sequence, " +
		":start_time, " +
		":trip_start, " +
		":arrival_delay, " +
		":departure_delay)"
	statementString = s.db.Rebind(statementString)
	result, err := s.db.NamedExecContext(ctx, statementString, observations)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListDistinctTripIds implements ObservationStore
func (s *DBStore) ListDistinctTripIds(ctx context.Context, serviceDate time.Time) ([]int64, error) {
	query := s.db.Rebind("select distinct trip_id from delay_observation where service_date = ? order by trip_id")
	var tripIds []int64
	err := s.db.SelectContext(ctx, &tripIds, query, serviceDate)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve trip_ids for %s. error: %w", serviceDate.Format("2006-01-02"), err)
	}
	return tripIds, nil
}

// ListObservations implements ObservationStore
func (s *DBStore) ListObservations(ctx context.Context, serviceDate time.Time, tripId int64) ([]*Observation, error) {
	query := s.db.Rebind("select * from delay_observation where service_date = ? and trip_id = ? " +
		"order by timestamp, id")
	var results []*Observation
	err := s.db.SelectContext(ctx, &results, query, serviceDate, tripId)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve observations for trip %d on %s. error: %w",
			tripId, serviceDate.Format("2006-01-02"), err)
	}
	return results, nil
}

// DeleteObservations implements ObservationStore
func (s *DBStore) DeleteObservations(ctx context.Context,
	serviceDate time.Time,
	tripId int64,
	excludeIds []int64) (int64, error) {

	statementString := "delete from delay_observation where service_date = :service_date and trip_id = :trip_id"
	args := map[string]interface{}{
		"service_date": serviceDate,
		"trip_id":      tripId,
	}
	// "not in ()" is not valid sql, an empty exclusion list removes everything for the trip
	if len(excludeIds) > 0 {
		statementString += " and id not in (:exclude_ids)"
		args["exclude_ids"] = excludeIds
	}
	query, queryArgs, err := database.PrepareNamedQueryFromMap(statementString, s.db, args)
	if err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, query, queryArgs...)
	if err != nil {
		return 0, fmt.Errorf("unable to delete observations for trip %d on %s. error: %w",
			tripId, serviceDate.Format("2006-01-02"), err)
	}
	return result.RowsAffected()
}

// ListDistinctServiceDates implements ObservationStore
func (s *DBStore) ListDistinctServiceDates(ctx context.Context) ([]time.Time, error) {
	var dates []time.Time
	err := s.db.SelectContext(ctx, &dates,
		"select distinct service_date from delay_observation order by service_date")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve service dates. error: %w", err)
	}
	return dates, nil
}

// Truncate removes all observations and restarts the id sequence
func (s *DBStore) Truncate(ctx context.Context) error {
	return database.Transact(s.log, s.db, func(tx *sqlx.Tx) error {
		statements := []string{
			"truncate table delay_observation",
			"alter sequence delay_observation_id_seq restart with 1",
		}
		for _, statement := range statements {
			if _, err := tx.ExecContext(ctx, statement); err != nil {
				return fmt.Errorf("error running '%s' error:%w", statement, err)
			}
		}
		s.log.Printf("Truncated delay_observation")
		return nil
	})
}

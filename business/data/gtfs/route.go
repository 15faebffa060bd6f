package gtfs

import (
	"context"
	"fmt"

	"github.com/OpenTransitTools/gtfsdelay/foundation/database"
	"github.com/jmoiron/sqlx"
)

// Route contains a record from a gtfs routes.txt file
type Route struct {
	RouteId        int64  `db:"route_id" json:"route_id"`
	AgencyId       int64  `db:"agency_id" json:"agency_id"`
	RouteShortName string `db:"route_short_name" json:"route_short_name"`
	RouteType      int    `db:"route_type" json:"route_type"`
}

// GetRouteIdsForAgencies retrieves the distinct route_ids of all routes belonging to agencyIds
func GetRouteIdsForAgencies(ctx context.Context, db *sqlx.DB, agencyIds []int64) ([]int64, error) {
	if len(agencyIds) == 0 {
		return nil, nil
	}
	statementString := "select distinct route_id from route where agency_id in (:agency_ids)"
	query, args, err := database.PrepareNamedQueryFromMap(statementString, db, map[string]interface{}{
		"agency_ids": agencyIds,
	})
	if err != nil {
		return nil, err
	}
	var routeIds []int64
	err = db.SelectContext(ctx, &routeIds, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve route_ids for agencies %v. error: %w", agencyIds, err)
	}
	return routeIds, nil
}

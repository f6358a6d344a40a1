package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

// RouteRepository handles route lookups
type RouteRepository struct {
	db *sqlx.DB
}

// NewRouteRepository creates a new RouteRepository
func NewRouteRepository(db *sqlx.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

const routeColumns = `id, from_name, from_code, to_name, to_code, distance_km, created_at`

// FindRoute resolves a journey by location code or (partial) name.
// Codes match exactly after uppercasing, names match case-insensitively.
func (r *RouteRepository) FindRoute(from, to string) (*models.Route, error) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)

	var route models.Route
	query := `
		SELECT ` + routeColumns + `
		FROM routes
		WHERE (from_code = $1 AND to_code = $2)
		   OR (from_name ILIKE '%' || $3 || '%' AND to_name ILIKE '%' || $4 || '%')
		LIMIT 1`

	err := r.db.Get(&route, query, strings.ToUpper(from), strings.ToUpper(to), from, to)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find route: %w", err)
	}
	return &route, nil
}

// ListRoutes returns all routes ordered by origin name
func (r *RouteRepository) ListRoutes() ([]models.Route, error) {
	var routes []models.Route
	query := `SELECT ` + routeColumns + ` FROM routes ORDER BY from_name, to_name`
	if err := r.db.Select(&routes, query); err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	return routes, nil
}

// ListLocations returns the unique locations served by any route, sorted by name
func (r *RouteRepository) ListLocations() ([]models.Location, error) {
	var locations []models.Location
	query := `
		SELECT name, code FROM (
			SELECT from_name AS name, from_code AS code FROM routes
			UNION
			SELECT to_name AS name, to_code AS code FROM routes
		) locations
		ORDER BY name`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.Name, &loc.Code); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

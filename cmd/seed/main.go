package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/config"
	"github.com/smartbus-tz/booking-backend/internal/database"
	"github.com/smartbus-tz/booking-backend/internal/models"
	"github.com/smartbus-tz/booking-backend/migrations"
)

// Loads sample operators, buses, routes and a week of trips so the API can
// be exercised locally. Safe to re-run: reference data upserts and trips
// are only created when the table is empty.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(context.Background(), db); err != nil {
		logger.Fatalf("Failed to apply migrations: %v", err)
	}

	if err := seed(db, logger); err != nil {
		logger.Fatalf("Seeding failed: %v", err)
	}
	logger.Info("Database seeded")
}

type seedBus struct {
	id        uuid.UUID
	plate     string
	seatCount int
	layout    models.BusLayout
}

type seedRoute struct {
	id         uuid.UUID
	from, fcode string
	to, tcode   string
	distanceKm float64
}

func seed(db *sqlx.DB, logger *logrus.Logger) error {
	operators := []struct {
		id            uuid.UUID
		name, email, phone string
	}{
		{uuid.New(), "ABC Coach", "ops@abccoach.co.tz", "+255712345678"},
		{uuid.New(), "Kilimanjaro Express", "info@kiliexpress.co.tz", "+255723456789"},
		{uuid.New(), "Dar Express", "support@darexpress.co.tz", "+255734567890"},
	}
	for i, op := range operators {
		err := db.QueryRow(`
			INSERT INTO operators (id, company_name, contact_email, contact_phone, approved)
			VALUES ($1, $2, $3, $4, true)
			ON CONFLICT (company_name) DO UPDATE SET contact_email = EXCLUDED.contact_email
			RETURNING id`,
			op.id, op.name, op.email, op.phone).Scan(&operators[i].id)
		if err != nil {
			return err
		}
	}

	buses := []seedBus{
		{uuid.New(), "T123ABC", 45, models.Layout2x2},
		{uuid.New(), "T456DEF", 50, models.Layout2x2},
		{uuid.New(), "T789GHI", 40, models.Layout2x3},
		{uuid.New(), "T321JKL", 45, models.Layout2x2},
	}
	busOperators := []int{0, 0, 1, 2}
	for i, bus := range buses {
		err := db.QueryRow(`
			INSERT INTO buses (id, operator_id, plate_number, seat_count, layout)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (plate_number) DO UPDATE SET seat_count = EXCLUDED.seat_count
			RETURNING id`,
			bus.id, operators[busOperators[i]].id, bus.plate, bus.seatCount, bus.layout).Scan(&buses[i].id)
		if err != nil {
			return err
		}
	}

	routes := []seedRoute{
		{uuid.New(), "Dar Es Salaam", "DSM", "Morogoro", "MRO", 200},
		{uuid.New(), "Dar Es Salaam", "DSM", "Moshi", "MSH", 560},
		{uuid.New(), "Dar Es Salaam", "DSM", "Arusha", "ARK", 650},
		{uuid.New(), "Dar Es Salaam", "DSM", "Dodoma", "DOD", 450},
		{uuid.New(), "Morogoro", "MRO", "Arusha", "ARK", 500},
		{uuid.New(), "Turiani", "TUR", "Dar Es Salaam", "DSM", 150},
	}
	for i, rt := range routes {
		err := db.QueryRow(`
			INSERT INTO routes (id, from_name, from_code, to_name, to_code, distance_km)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (from_code, to_code) DO UPDATE SET distance_km = EXCLUDED.distance_km
			RETURNING id`,
			rt.id, rt.from, rt.fcode, rt.to, rt.tcode, rt.distanceKm).Scan(&routes[i].id)
		if err != nil {
			return err
		}
	}

	var tripCount int
	if err := db.Get(&tripCount, `SELECT COUNT(*) FROM trips`); err != nil {
		return err
	}
	if tripCount > 0 {
		logger.Infof("Trips already present (%d), skipping trip seed", tripCount)
		return nil
	}

	tripRepo := database.NewTripRepository(db)
	seatRepo := database.NewTripSeatRepository(db)

	schedule := []struct {
		bus   int
		route int
		hour  int
		min   int
		price float64
	}{
		{0, 0, 6, 0, 15000},
		{1, 0, 14, 0, 15000},
		{2, 1, 7, 30, 32000},
		{0, 2, 8, 0, 35000},
		{3, 2, 15, 0, 35000},
		{1, 3, 9, 0, 25000},
		{2, 4, 10, 0, 28000},
		{3, 5, 11, 30, 12000},
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	created := 0
	for day := 0; day < 7; day++ {
		date := today.AddDate(0, 0, day)
		for _, s := range schedule {
			trip := &models.Trip{
				ID:            uuid.New(),
				BusID:         buses[s.bus].id,
				RouteID:       routes[s.route].id,
				DepartureTime: date.Add(time.Duration(s.hour)*time.Hour + time.Duration(s.min)*time.Minute),
				Price:         s.price,
				Status:        models.TripStatusActive,
			}
			if err := tripRepo.CreateTrip(trip); err != nil {
				return err
			}
			if err := seatRepo.CreateSeatsForTrip(trip.ID, buses[s.bus].seatCount); err != nil {
				return err
			}
			created++
		}
	}
	logger.Infof("Created %d trips across 7 days", created)
	return nil
}

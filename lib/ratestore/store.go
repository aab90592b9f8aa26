// Package ratestore persists scraped rate observations in sqlite so
// runs accumulate into a queryable history instead of a pile of json
// files. One scrape of a (hotel, check-in) pair on a given day replaces
// any earlier scrape of the same pair from that day.
package ratestore

import (
	"context"
	"database/sql"
	"time"

	"pitchprice-backend/lib/timezone"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// Open opens (creating if necessary) the sqlite database at path and
// applies the schema.
func Open(path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = database.Exec(Schema)
	if err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Observation is one scraped (hotel, check-in) data point.
type Observation struct {
	HotelSlug   string
	HotelName   string
	City        string
	CheckIn     time.Time
	Rate        int
	Currency    string
	Status      string
	Discrepancy bool
	Error       string
}

type PushRequest struct {
	Time         time.Time
	Observations []Observation
}

func (s Store) Push(ctx context.Context, req PushRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	startOfToday := time.Date(req.Time.Year(), req.Time.Month(), req.Time.Day(), 0, 0, 0, 0, timezone.Location).Unix()
	startOfTomorrow := time.Date(req.Time.Year(), req.Time.Month(), req.Time.Day()+1, 0, 0, 0, 0, timezone.Location).Unix()

	for _, obs := range req.Observations {
		_, err = tx.ExecContext(ctx, `
INSERT INTO hotel (slug, name, city) VALUES (?, ?, ?)
ON CONFLICT (slug, city) DO UPDATE SET name = excluded.name`,
			obs.HotelSlug, obs.HotelName, obs.City,
		)
		if err != nil {
			return err
		}

		var hotelID int64
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM hotel WHERE slug = ? AND city = ?`,
			obs.HotelSlug, obs.City,
		).Scan(&hotelID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
DELETE FROM rate_observation
WHERE hotel_id = ? AND check_in = ? AND scraped_at >= ? AND scraped_at < ?`,
			hotelID, startOfDay(obs.CheckIn), startOfToday, startOfTomorrow,
		)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
INSERT INTO rate_observation
(hotel_id, check_in, scraped_at, rate, currency, status, discrepancy, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			hotelID, startOfDay(obs.CheckIn), req.Time.Unix(),
			obs.Rate, obs.Currency, obs.Status, obs.Discrepancy, obs.Error,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func startOfDay(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, timezone.Location).Unix()
}

// RatePoint is one historical observation of a hotel's rate for a
// check-in date.
type RatePoint struct {
	CheckIn     time.Time
	ScrapedAt   time.Time
	Rate        int
	Currency    string
	Status      string
	Discrepancy bool
}

type HotelSeries struct {
	HotelSlug string
	HotelName string
	City      string
	Points    []RatePoint
}

// Pull returns every observation recorded for the hotel, ordered by
// check-in date then scrape time.
func (s Store) Pull(ctx context.Context, hotelSlug, city string) (HotelSeries, error) {
	series := HotelSeries{HotelSlug: hotelSlug, City: city}

	var hotelID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM hotel WHERE slug = ? AND city = ?`,
		hotelSlug, city,
	).Scan(&hotelID, &series.HotelName)
	if err == sql.ErrNoRows {
		return series, nil
	}
	if err != nil {
		return HotelSeries{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT check_in, scraped_at, rate, currency, status, discrepancy
FROM rate_observation
WHERE hotel_id = ?
ORDER BY check_in, scraped_at`,
		hotelID,
	)
	if err != nil {
		return HotelSeries{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var point RatePoint
		var checkIn, scrapedAt int64
		err = rows.Scan(&checkIn, &scrapedAt,
			&point.Rate, &point.Currency, &point.Status, &point.Discrepancy)
		if err != nil {
			return HotelSeries{}, err
		}
		point.CheckIn = time.Unix(checkIn, 0).In(timezone.Location)
		point.ScrapedAt = time.Unix(scrapedAt, 0).In(timezone.Location)
		series.Points = append(series.Points, point)
	}
	return series, rows.Err()
}

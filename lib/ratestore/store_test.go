package ratestore

import (
	"context"
	"testing"
	"time"

	"pitchprice-backend/lib/telemetry"
	"pitchprice-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:ratestore")
	defer cleanup()

	database, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	store := NewStore(database)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	checkIn := time.Date(2026, 9, 12, 0, 0, 0, 0, timezone.Location)

	{
		series, err := store.Pull(ctx, "unknown-hotel", "Toronto")
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, series.Points, 0)
	}
	{
		now := timezone.Now()
		err := store.Push(ctx, PushRequest{
			Time: now,
			Observations: []Observation{
				{
					HotelSlug: "grand-harbour",
					HotelName: "Grand Harbour Hotel",
					City:      "Toronto",
					CheckIn:   checkIn,
					Rate:      412,
					Currency:  "CAD",
					Status:    "available",
				},
				{
					HotelSlug: "lakeside-inn",
					HotelName: "Lakeside Motor Inn",
					City:      "Toronto",
					CheckIn:   checkIn,
					Rate:      0,
					Currency:  "CAD",
					Status:    "sold_out",
				},
			},
		})
		if err != nil {
			t.Fatal(err)
		}

		// re-scraping the same pair on the same day replaces the
		// earlier observation instead of stacking a duplicate
		err = store.Push(ctx, PushRequest{
			Time: now.Add(time.Hour),
			Observations: []Observation{
				{
					HotelSlug:   "grand-harbour",
					HotelName:   "Grand Harbour Hotel",
					City:        "Toronto",
					CheckIn:     checkIn,
					Rate:        630,
					Currency:    "CAD",
					Status:      "available_calculated",
					Discrepancy: true,
				},
			},
		})
		if err != nil {
			t.Fatal(err)
		}

		series, err := store.Pull(ctx, "grand-harbour", "Toronto")
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, "Grand Harbour Hotel", series.HotelName)
		require.Len(t, series.Points, 1)
		require.Equal(t, 630, series.Points[0].Rate)
		require.Equal(t, "available_calculated", series.Points[0].Status)
		require.True(t, series.Points[0].Discrepancy)
		require.True(t, series.Points[0].CheckIn.Equal(checkIn))
	}
	{
		// a scrape on a later day accumulates history
		err := store.Push(ctx, PushRequest{
			Time: timezone.Now().Add(time.Hour * 24),
			Observations: []Observation{
				{
					HotelSlug: "grand-harbour",
					HotelName: "Grand Harbour Hotel",
					City:      "Toronto",
					CheckIn:   checkIn,
					Rate:      455,
					Currency:  "CAD",
					Status:    "available",
				},
			},
		})
		if err != nil {
			t.Fatal(err)
		}

		series, err := store.Pull(ctx, "grand-harbour", "Toronto")
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, series.Points, 2)

		other, err := store.Pull(ctx, "lakeside-inn", "Toronto")
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, other.Points, 1)
		require.Equal(t, "sold_out", other.Points[0].Status)
	}
}

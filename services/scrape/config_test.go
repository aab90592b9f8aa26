package scrape

import (
	"testing"
	"time"

	"pitchprice-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Events = []Event{
		{
			ID:        "fifa-2026",
			Name:      "FIFA World Cup 2026",
			EventType: "sporting",
			Cities: []City{
				{
					Name:       "Toronto",
					CityType:   "host",
					EventDates: []string{"2026-06-12", "2026-06-17"},
					ScrapeDateRange: DateRange{
						Start: "2026-06-10",
						End:   "2026-06-14",
					},
					Hotels: []Hotel{
						{ID: "grand-harbour", Name: "Grand Harbour Hotel", Segment: "upscale"},
					},
				},
				{
					Name:       "Ottawa",
					CityType:   "control",
					ControlFor: "Toronto",
					ScrapeDateRange: DateRange{
						Start: "2026-06-10",
						End:   "2026-06-14",
					},
					Hotels: []Hotel{
						{ID: "chateau-rideau", Name: "Chateau Rideau"},
					},
				},
			},
		},
	}
	return cfg
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	{
		cfg := validConfig()
		cfg.Events[0].Cities[0].ScrapeDateRange.Start = "06/10/2026"
		require.ErrorContains(t, cfg.Validate(), "scrape range start")
	}
	{
		cfg := validConfig()
		cfg.Events[0].Cities[0].ScrapeDateRange.End = "2026-06-01"
		require.ErrorContains(t, cfg.Validate(), "ends")
	}
	{
		cfg := validConfig()
		cfg.Events[0].Cities[0].EventDates = []string{"June 12"}
		require.ErrorContains(t, cfg.Validate(), "event date")
	}
	{
		cfg := validConfig()
		cfg.Events[0].Cities[0].Hotels = nil
		require.ErrorContains(t, cfg.Validate(), "no hotels")
	}
	{
		cfg := validConfig()
		cfg.Events[0].Cities[0].Hotels[0].ID = ""
		require.ErrorContains(t, cfg.Validate(), "missing id or name")
	}
	{
		cfg := validConfig()
		cfg.ScrapeSettings.DelayMinSeconds = 10
		require.ErrorContains(t, cfg.Validate(), "delay_max_seconds")
	}
}

func TestConfigLegacyFlatCities(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cities = []City{
		{
			Name:            "Montreal",
			ScrapeDateRange: DateRange{Start: "2026-07-01", End: "2026-07-03"},
			Hotels:          []Hotel{{ID: "h1", Name: "Hotel One"}},
		},
	}
	require.NoError(t, cfg.Validate())

	cities := cfg.EventCities()
	require.Len(t, cities, 1)
	require.Empty(t, cities[0].EventID)
	require.Equal(t, "Montreal", cities[0].City.Name)
}

func TestGenerateDates(t *testing.T) {
	city := validConfig().Events[0].Cities[0]
	dates, err := GenerateDates(city)
	require.NoError(t, err)
	require.Len(t, dates, 5)
	require.Equal(t,
		time.Date(2026, 6, 10, 0, 0, 0, 0, timezone.Location), dates[0])
	require.Equal(t,
		time.Date(2026, 6, 14, 0, 0, 0, 0, timezone.Location), dates[4])
}

func TestCalculateDaysToEvent(t *testing.T) {
	eventDates := []string{"2026-06-12", "2026-06-17"}

	{
		checkIn := time.Date(2026, 6, 10, 0, 0, 0, 0, timezone.Location)
		days, nearest, ok := CalculateDaysToEvent(checkIn, eventDates)
		require.True(t, ok)
		require.Equal(t, 2, days)
		require.Equal(t, "2026-06-12", nearest)
	}
	{
		// after the first match day, before the second: nearest wins
		checkIn := time.Date(2026, 6, 16, 0, 0, 0, 0, timezone.Location)
		days, nearest, ok := CalculateDaysToEvent(checkIn, eventDates)
		require.True(t, ok)
		require.Equal(t, 1, days)
		require.Equal(t, "2026-06-17", nearest)
	}
	{
		// past every event date: signed distance goes negative
		checkIn := time.Date(2026, 6, 20, 0, 0, 0, 0, timezone.Location)
		days, nearest, ok := CalculateDaysToEvent(checkIn, eventDates)
		require.True(t, ok)
		require.Equal(t, -3, days)
		require.Equal(t, "2026-06-17", nearest)
	}
	{
		_, _, ok := CalculateDaysToEvent(time.Now(), nil)
		require.False(t, ok)
	}
}

package scrape

import (
	"fmt"
	"time"

	"pitchprice-backend/lib/scraper/booking"
	"pitchprice-backend/lib/timezone"
)

type Hotel struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Segment        string `json:"segment"`
	VenueProximity string `json:"venue_proximity"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type City struct {
	Name            string    `json:"name"`
	CityType        string    `json:"city_type"`
	ControlFor      string    `json:"control_for"`
	EventDates      []string  `json:"event_dates"`
	ScrapeDateRange DateRange `json:"scrape_date_range"`
	Hotels          []Hotel   `json:"hotels"`
}

type Event struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	EventType string `json:"event_type"`
	Cities    []City `json:"cities"`
}

type OutputConfig struct {
	Dir        string `json:"dir"`
	SqlitePath string `json:"sqlite_path"`
}

type NotifyConfig struct {
	SMTPHost string   `json:"smtp_host"`
	SMTPPort int      `json:"smtp_port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

type Config struct {
	Events []Event `json:"events"`
	// legacy flat schema; cities listed here are treated as one
	// untyped event
	Cities []City `json:"cities"`

	ScrapeSettings booking.Settings `json:"scrape_settings"`
	Output         OutputConfig     `json:"output"`
	Notify         *NotifyConfig    `json:"notify"`
}

func DefaultConfig() Config {
	return Config{
		ScrapeSettings: booking.DefaultSettings(),
		Output:         OutputConfig{Dir: "data/scrapes"},
	}
}

// EventCity is one city flattened out of the event tree with its event
// context attached.
type EventCity struct {
	EventID   string
	EventType string
	City      City
}

// EventCities flattens the config into the list of cities to scrape.
// Legacy flat cities come last, under an empty event.
func (c Config) EventCities() []EventCity {
	var out []EventCity
	for _, event := range c.Events {
		for _, city := range event.Cities {
			out = append(out, EventCity{
				EventID:   event.ID,
				EventType: event.EventType,
				City:      city,
			})
		}
	}
	for _, city := range c.Cities {
		out = append(out, EventCity{City: city})
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, timezone.Location)
}

// Validate rejects malformed date strings and structurally unusable
// entries. Callers treat any error as fatal at startup.
func (c Config) Validate() error {
	for _, ec := range c.EventCities() {
		city := ec.City
		if city.Name == "" {
			return fmt.Errorf("city with empty name (event %q)", ec.EventID)
		}
		if len(city.Hotels) == 0 {
			return fmt.Errorf("city %q has no hotels", city.Name)
		}
		for _, hotel := range city.Hotels {
			if hotel.ID == "" || hotel.Name == "" {
				return fmt.Errorf("city %q has a hotel with missing id or name", city.Name)
			}
		}

		start, err := parseDate(city.ScrapeDateRange.Start)
		if err != nil {
			return fmt.Errorf("city %q scrape range start: %w", city.Name, err)
		}
		end, err := parseDate(city.ScrapeDateRange.End)
		if err != nil {
			return fmt.Errorf("city %q scrape range end: %w", city.Name, err)
		}
		if end.Before(start) {
			return fmt.Errorf("city %q scrape range ends %s before it starts %s",
				city.Name, city.ScrapeDateRange.End, city.ScrapeDateRange.Start)
		}

		for _, d := range city.EventDates {
			if _, err := parseDate(d); err != nil {
				return fmt.Errorf("city %q event date %q: %w", city.Name, d, err)
			}
		}
	}
	if c.ScrapeSettings.DelayMaxSeconds < c.ScrapeSettings.DelayMinSeconds {
		return fmt.Errorf("delay_max_seconds %v is below delay_min_seconds %v",
			c.ScrapeSettings.DelayMaxSeconds, c.ScrapeSettings.DelayMinSeconds)
	}
	return nil
}

// GenerateDates expands a city's scrape range into the check-in dates
// to look up, inclusive on both ends. Assumes Validate passed.
func GenerateDates(city City) ([]time.Time, error) {
	start, err := parseDate(city.ScrapeDateRange.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(city.ScrapeDateRange.End)
	if err != nil {
		return nil, err
	}

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, nil
}

// CalculateDaysToEvent finds the event date nearest to the check-in and
// the signed day distance to it (negative once the event has passed).
// Returns ok=false when the city has no event dates.
func CalculateDaysToEvent(checkIn time.Time, eventDates []string) (days int, nearest string, ok bool) {
	best := 0
	for _, s := range eventDates {
		d, err := parseDate(s)
		if err != nil {
			continue
		}
		delta := int(d.Sub(checkIn).Hours() / 24)
		abs := delta
		if abs < 0 {
			abs = -abs
		}
		bestAbs := best
		if bestAbs < 0 {
			bestAbs = -bestAbs
		}
		if !ok || abs < bestAbs {
			best = delta
			nearest = s
			ok = true
		}
	}
	return best, nearest, ok
}

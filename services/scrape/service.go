// Package scrape orchestrates a full rate-scrape run: it walks the
// configured events, cities, hotels, and dates, drives the browser
// session controller through each lookup, recovers blocked single
// nights through multi-night inference, and hands the accumulated
// results to reporting and persistence.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pitchprice-backend/lib/scraper/booking"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/scrape")

// Result is one (hotel, check-in) record as written to the run output.
type Result struct {
	HotelID        string                     `json:"hotel_id"`
	HotelName      string                     `json:"hotel_name"`
	City           string                     `json:"city"`
	Segment        string                     `json:"segment,omitempty"`
	VenueProximity string                     `json:"venue_proximity,omitempty"`
	CheckIn        string                     `json:"check_in"`
	CheckOut       string                     `json:"check_out"`
	Rate           int                        `json:"rate"`
	Currency       string                     `json:"currency"`
	Status         booking.AvailabilityStatus `json:"availability_status"`
	// UTC RFC3339
	ScrapeTimestamp string `json:"scrape_timestamp"`
	Error           string `json:"error,omitempty"`

	EventID          string `json:"event_id,omitempty"`
	EventType        string `json:"event_type,omitempty"`
	CityType         string `json:"city_type,omitempty"`
	ControlFor       string `json:"control_for,omitempty"`
	DaysToEvent      *int   `json:"days_to_event,omitempty"`
	NearestEventDate string `json:"nearest_event_date,omitempty"`

	Discrepancy     bool                      `json:"discrepancy,omitempty"`
	RateCalculation *booking.InferenceAttempt `json:"rate_calculation,omitempty"`
	Verification    *booking.InferenceAttempt `json:"verification,omitempty"`
	Diagnostics     *booking.Diagnostics      `json:"diagnostics,omitempty"`
}

// RunError is one lookup that could not be served at all.
type RunError struct {
	Hotel   string `json:"hotel"`
	City    string `json:"city"`
	CheckIn string `json:"check_in"`
	Error   string `json:"error"`
}

type RunMetadata struct {
	StartedAt    string   `json:"started_at"`
	FinishedAt   string   `json:"finished_at"`
	Cities       []string `json:"cities"`
	TotalLookups int      `json:"total_lookups"`
	DryRun       bool     `json:"dry_run,omitempty"`
}

type RunOutput struct {
	Metadata RunMetadata `json:"scrape_metadata"`
	Results  []Result    `json:"results"`
	Errors   []RunError  `json:"errors"`
	Report   Report      `json:"report"`
}

// RunFilter narrows a run to a subset of the configured work.
type RunFilter struct {
	// city names; empty means every configured city
	Cities []string
	// event id; empty means every event
	Event string
	// plan the run without launching a browser
	DryRun bool
}

type Service struct {
	config     Config
	controller *booking.Controller
	now        func() time.Time
}

type Options struct {
	Config     Config
	Controller *booking.Controller
	// overridable in tests; nil takes time.Now
	Now func() time.Time
}

func NewService(opts Options) Service {
	s := Service{
		config:     opts.Config,
		controller: opts.Controller,
		now:        opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// selectCities applies the filter to the configured event cities,
// rejecting city names that match nothing so typos fail loudly.
func (s Service) selectCities(filter RunFilter) ([]EventCity, error) {
	cities := s.config.EventCities()

	if filter.Event != "" {
		var filtered []EventCity
		for _, ec := range cities {
			if ec.EventID == filter.Event {
				filtered = append(filtered, ec)
			}
		}
		if len(filtered) == 0 {
			return nil, fmt.Errorf("no cities configured for event %q", filter.Event)
		}
		cities = filtered
	}

	if len(filter.Cities) == 0 {
		return cities, nil
	}

	var selected []EventCity
	for _, name := range filter.Cities {
		found := false
		for _, ec := range cities {
			if strings.EqualFold(ec.City.Name, name) {
				selected = append(selected, ec)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown city %q", name)
		}
	}
	return selected, nil
}

// Run executes the scrape described by the filter. Per-lookup failures
// are recorded and never abort the run; only startup problems and
// context cancellation return an error.
func (s Service) Run(ctx context.Context, filter RunFilter) (RunOutput, error) {
	ctx, span := tracer.Start(ctx, "scrape:Run")
	defer span.End()

	cities, err := s.selectCities(filter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return RunOutput{}, err
	}

	out := RunOutput{
		Metadata: RunMetadata{
			StartedAt: s.now().UTC().Format(time.RFC3339),
			DryRun:    filter.DryRun,
		},
	}
	for _, ec := range cities {
		out.Metadata.Cities = append(out.Metadata.Cities, ec.City.Name)
	}

	for _, ec := range cities {
		dates, err := GenerateDates(ec.City)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return RunOutput{}, fmt.Errorf("city %q: %w", ec.City.Name, err)
		}
		out.Metadata.TotalLookups += len(ec.City.Hotels) * len(dates)

		if filter.DryRun {
			slog.InfoContext(ctx, "planned city",
				"city", ec.City.Name,
				"hotels", len(ec.City.Hotels),
				"dates", len(dates),
			)
			continue
		}

		if err := s.scrapeCity(ctx, ec, dates, &out); err != nil {
			return RunOutput{}, err
		}
	}

	out.Metadata.FinishedAt = s.now().UTC().Format(time.RFC3339)
	out.Report = BuildReport(out.Results)
	span.SetAttributes(
		attribute.Int("results", len(out.Results)),
		attribute.Int("errors", len(out.Errors)),
	)
	return out, nil
}

func (s Service) scrapeCity(ctx context.Context, ec EventCity, dates []time.Time, out *RunOutput) error {
	ctx, span := tracer.Start(ctx, "scrape:city")
	defer span.End()
	span.SetAttributes(attribute.String("city", ec.City.Name))

	slog.InfoContext(ctx, "scraping city",
		"city", ec.City.Name,
		"hotels", len(ec.City.Hotels),
		"dates", len(dates),
	)

	for _, hotel := range ec.City.Hotels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.controller.BeginHotel(ctx, hotel.Name); err != nil {
			return err
		}

		for _, checkIn := range dates {
			// cancellation is honored between requests only
			if err := ctx.Err(); err != nil {
				return err
			}
			result := s.scrapeOne(ctx, ec, hotel, checkIn)
			if result.Error != "" &&
				(result.Status == booking.StatusError || result.Status == booking.StatusNotFound) {
				out.Errors = append(out.Errors, RunError{
					Hotel:   hotel.Name,
					City:    ec.City.Name,
					CheckIn: result.CheckIn,
					Error:   result.Error,
				})
			}
			out.Results = append(out.Results, result)
		}
	}
	return nil
}

func (s Service) scrapeOne(ctx context.Context, ec EventCity, hotel Hotel, checkIn time.Time) Result {
	checkOut := checkIn.AddDate(0, 0, 1)

	result := Result{
		HotelID:         hotel.ID,
		HotelName:       hotel.Name,
		City:            ec.City.Name,
		Segment:         hotel.Segment,
		VenueProximity:  hotel.VenueProximity,
		CheckIn:         checkIn.Format(time.DateOnly),
		CheckOut:        checkOut.Format(time.DateOnly),
		Currency:        booking.Currency,
		Status:          booking.StatusError,
		ScrapeTimestamp: s.now().UTC().Format(time.RFC3339),
		EventID:         ec.EventID,
		EventType:       ec.EventType,
		CityType:        ec.City.CityType,
		ControlFor:      ec.City.ControlFor,
	}
	if days, nearest, ok := CalculateDaysToEvent(checkIn, ec.City.EventDates); ok {
		result.DaysToEvent = &days
		result.NearestEventDate = nearest
	}

	req, err := booking.NewRateRequest(hotel.ID, hotel.Name, ec.City.Name, checkIn, checkOut)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	extraction, err := s.controller.Execute(ctx, req)
	if err != nil {
		// even exhausted corruption recovery never aborts the run
		slog.ErrorContext(ctx, "lookup could not be served",
			"hotel", hotel.Name, "check_in", result.CheckIn, "err", err)
		result.Error = err.Error()
		return result
	}

	result.Rate = extraction.Rate
	result.Status = extraction.Status
	result.Error = extraction.Error
	result.Diagnostics = extraction.Diagnostics

	if s.shouldInfer(extraction) {
		s.inferOne(ctx, ec, hotel, checkIn, &result)
	}
	return result
}

// shouldInfer reports whether the extraction looks like a minimum-stay
// block: the dates are sold out, or the hotel's card matched but showed
// no bookable price.
func (s Service) shouldInfer(extraction booking.ExtractionResult) bool {
	if extraction.Status == booking.StatusSoldOut {
		return true
	}
	return extraction.Status == booking.StatusAvailable && !extraction.HasRate()
}

func (s Service) inferOne(ctx context.Context, ec EventCity, hotel Hotel, checkIn time.Time, result *Result) {
	slog.InfoContext(ctx, "attempting single-night inference",
		"hotel", hotel.Name, "check_in", result.CheckIn, "status", result.Status)

	fetch := s.controller.Fetcher(hotel.ID, hotel.Name, ec.City.Name)
	inference, err := booking.InferSingleNight(
		ctx, fetch, checkIn, s.config.ScrapeSettings.ReconciliationTolerance)
	if err != nil {
		slog.ErrorContext(ctx, "inference could not be served",
			"hotel", hotel.Name, "check_in", result.CheckIn, "err", err)
		return
	}

	// the solver's outcome replaces the direct observation either way:
	// a recovered rate, or not_found carrying the calculation error
	result.Rate = inference.Rate
	result.Status = inference.Status
	result.Error = inference.Error
	result.Discrepancy = inference.Discrepancy
	result.RateCalculation = inference.MethodA
	result.Verification = inference.MethodB

	if inference.Rate == 0 {
		slog.WarnContext(ctx, "inference resolved nothing",
			"hotel", hotel.Name, "check_in", result.CheckIn)
		return
	}
	slog.InfoContext(ctx, "recovered rate through inference",
		"hotel", hotel.Name,
		"check_in", result.CheckIn,
		"rate", inference.Rate,
		"discrepancy", inference.Discrepancy,
	)
}

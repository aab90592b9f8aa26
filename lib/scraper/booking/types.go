// Package booking scrapes nightly hotel room rates from Booking.com
// search result pages. It owns rate extraction and disambiguation,
// single-night inference under minimum-stay blocks, the navigation/fetch
// cycle, and the browser session controller that keeps a long scrape run
// alive across driver failures.
package booking

import (
	"fmt"
	"time"
)

// Currency every request settles in so amounts stay comparable across
// the whole run.
const Currency = "CAD"

type AvailabilityStatus string

const (
	StatusUnknown   AvailabilityStatus = "unknown"
	StatusAvailable AvailabilityStatus = "available"
	StatusSoldOut   AvailabilityStatus = "sold_out"
	StatusNotFound  AvailabilityStatus = "not_found"
	StatusError     AvailabilityStatus = "error"
	// rate recovered through multi-night inference rather than read
	// directly off the page
	StatusAvailableCalculated AvailabilityStatus = "available_calculated"
)

// RateRequest identifies one (hotel, stay) lookup. Immutable once
// constructed; Nights is derived and always >= 1.
type RateRequest struct {
	HotelID   string
	HotelName string
	City      string
	CheckIn   time.Time
	CheckOut  time.Time
}

func NewRateRequest(hotelID, hotelName, city string, checkIn, checkOut time.Time) (RateRequest, error) {
	r := RateRequest{
		HotelID:   hotelID,
		HotelName: hotelName,
		City:      city,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
	}
	if r.Nights() < 1 {
		return RateRequest{}, fmt.Errorf(
			"check-out %s must be after check-in %s",
			checkOut.Format(time.DateOnly), checkIn.Format(time.DateOnly),
		)
	}
	if hotelName == "" || city == "" {
		return RateRequest{}, fmt.Errorf("hotel name and city are required")
	}
	return r, nil
}

func (r RateRequest) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}

// PriceCandidate is one currency amount seen in a card's text, with the
// number of times it recurs. Transient, never persisted.
type PriceCandidate struct {
	Amount   int
	Currency string
	Count    int
}

// Diagnostics is a capped snapshot of page state captured best-effort on
// error paths. Offline triage only, never consulted by control flow.
type Diagnostics struct {
	Context         string    `json:"context"`
	Hotel           string    `json:"hotel"`
	Timestamp       time.Time `json:"timestamp"`
	PageTitle       string    `json:"page_title,omitempty"`
	PageURL         string    `json:"page_url,omitempty"`
	CardCount       int       `json:"property_card_count"`
	VisiblePrices   []int     `json:"all_prices_found,omitempty"`
	MatchConfidence float64   `json:"match_confidence,omitempty"`
	NoAvailability  bool      `json:"has_no_availability"`
	SoldOut         bool      `json:"has_sold_out"`
	Captcha         bool      `json:"has_captcha"`
}

// ExtractionResult is the outcome of one extraction attempt. Rate is
// always the total for the full stay, never per-night; 0 means no rate.
// A sold_out or not_found status always carries a zero rate.
type ExtractionResult struct {
	Rate        int                `json:"rate"`
	Currency    string             `json:"currency"`
	Status      AvailabilityStatus `json:"availability_status"`
	Error       string             `json:"error,omitempty"`
	Diagnostics *Diagnostics       `json:"diagnostics,omitempty"`
}

// HasRate reports whether a rate was read or derived.
func (r ExtractionResult) HasRate() bool {
	return r.Rate > 0
}

// Definitive reports whether this result should be returned to the
// caller as-is instead of retried. Every classified outcome is final,
// including available with no rate (the inference trigger); only error
// and unknown outcomes are worth another attempt.
func (r ExtractionResult) Definitive() bool {
	return r.Status != StatusUnknown && r.Status != StatusError
}

// InferenceAttempt records one of the two overlapping multi-night
// calculations used to recover a blocked single night's rate.
type InferenceAttempt struct {
	Method        string `json:"method"`
	TwoNightTotal int    `json:"two_night_total"`
	OneNightRate  int    `json:"one_night_rate"`
	Calculated    int    `json:"calculated"`
}

// InferenceResult combines the two attempts. Emitted only when at least
// one attempt produced a rate; Discrepancy is set when both attempts
// produced rates further apart than the reconciliation tolerance.
type InferenceResult struct {
	Rate        int                `json:"rate"`
	Currency    string             `json:"currency"`
	Status      AvailabilityStatus `json:"availability_status"`
	Delta       int                `json:"delta,omitempty"`
	Discrepancy bool               `json:"discrepancy,omitempty"`
	Error       string             `json:"error,omitempty"`
	MethodA     *InferenceAttempt  `json:"rate_calculation,omitempty"`
	MethodB     *InferenceAttempt  `json:"verification,omitempty"`
}

// PlausibilityConfig is the nights-keyed window an extracted amount must
// fall in to be believed as a room rate. The defaults are empirically
// tuned to the target market; other markets should override them in
// config.
type PlausibilityConfig struct {
	SingleNightMin        int `json:"single_night_min"`
	SingleNightMax        int `json:"single_night_max"`
	MultiNightMinPerNight int `json:"multi_night_min_per_night"`
	MultiNightMaxPerNight int `json:"multi_night_max_per_night"`
	FallbackFloorPerNight int `json:"fallback_floor_per_night"`
}

func DefaultPlausibility() PlausibilityConfig {
	return PlausibilityConfig{
		SingleNightMin:        150,
		SingleNightMax:        2500,
		MultiNightMinPerNight: 300,
		MultiNightMaxPerNight: 3000,
		FallbackFloorPerNight: 400,
	}
}

// Window returns the inclusive primary window for the given night count.
func (c PlausibilityConfig) Window(nights int) (int, int) {
	if nights <= 1 {
		return c.SingleNightMin, c.SingleNightMax
	}
	return c.MultiNightMinPerNight * nights, c.MultiNightMaxPerNight * nights
}

// FallbackFloor returns the floor of the fallback tier, or 0 when no
// fallback tier applies (single-night searches have none).
func (c PlausibilityConfig) FallbackFloor(nights int) int {
	if nights <= 1 {
		return 0
	}
	return c.FallbackFloorPerNight * nights
}

// InWindow reports whether amount lies in the primary plausibility
// window for the given night count.
func (c PlausibilityConfig) InWindow(amount, nights int) bool {
	min, max := c.Window(nights)
	return amount >= min && amount <= max
}

// Settings carries the scrape tuning knobs consumed by the core.
type Settings struct {
	MaxRetries              int                `json:"max_retries"`
	DelayMinSeconds         float64            `json:"delay_min_seconds"`
	DelayMaxSeconds         float64            `json:"delay_max_seconds"`
	ReconciliationTolerance int                `json:"reconciliation_tolerance"`
	Plausibility            PlausibilityConfig `json:"plausibility"`
}

func DefaultSettings() Settings {
	return Settings{
		MaxRetries:              3,
		DelayMinSeconds:         2,
		DelayMaxSeconds:         6,
		ReconciliationTolerance: 50,
		Plausibility:            DefaultPlausibility(),
	}
}

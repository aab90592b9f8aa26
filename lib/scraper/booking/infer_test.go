package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pitchprice-backend/lib/browser"
	"pitchprice-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

// stubFetch serves canned extraction results keyed by date range and
// records every range requested.
type stubFetch struct {
	results map[string]ExtractionResult
	calls   []string
}

func rangeKey(checkIn, checkOut time.Time) string {
	return fmt.Sprintf("%s/%s",
		checkIn.Format(time.DateOnly), checkOut.Format(time.DateOnly))
}

func (s *stubFetch) fetch(ctx context.Context, checkIn, checkOut time.Time) (ExtractionResult, error) {
	key := rangeKey(checkIn, checkOut)
	s.calls = append(s.calls, key)
	result, ok := s.results[key]
	if !ok {
		return ExtractionResult{Currency: Currency, Status: StatusSoldOut}, nil
	}
	return result, nil
}

func available(rate int) ExtractionResult {
	return ExtractionResult{Rate: rate, Currency: Currency, Status: StatusAvailable}
}

var inferTarget = time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)

func TestInferSingleNightBothMethodsAgree(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:booking")
	defer cleanup()

	stub := &stubFetch{results: map[string]ExtractionResult{
		"2026-09-11/2026-09-13": available(1000), // prev..next, 2 nights
		"2026-09-11/2026-09-12": available(390),  // prev night
		"2026-09-12/2026-09-14": available(1300), // target..+2, 2 nights
		"2026-09-13/2026-09-14": available(650),  // next night
	}}

	result, err := InferSingleNight(context.Background(), stub.fetch, inferTarget, 50)
	require.NoError(t, err)

	// method A says 610, method B says 650; delta 40 is inside
	// tolerance so the midpoint is accepted clean
	require.Equal(t, StatusAvailableCalculated, result.Status)
	require.Equal(t, 630, result.Rate)
	require.Equal(t, 40, result.Delta)
	require.False(t, result.Discrepancy)
	require.Empty(t, result.Error)

	require.NotNil(t, result.MethodA)
	require.Equal(t, 610, result.MethodA.Calculated)
	require.NotNil(t, result.MethodB)
	require.Equal(t, 650, result.MethodB.Calculated)

	require.Equal(t, []string{
		"2026-09-11/2026-09-13",
		"2026-09-11/2026-09-12",
		"2026-09-12/2026-09-14",
		"2026-09-13/2026-09-14",
	}, stub.calls)
}

func TestInferSingleNightToleranceBoundary(t *testing.T) {
	build := func(calcA, calcB int) *stubFetch {
		return &stubFetch{results: map[string]ExtractionResult{
			"2026-09-11/2026-09-13": available(calcA + 400),
			"2026-09-11/2026-09-12": available(400),
			"2026-09-12/2026-09-14": available(calcB + 400),
			"2026-09-13/2026-09-14": available(400),
		}}
	}

	{
		// delta exactly at tolerance: no flag
		stub := build(600, 650)
		result, err := InferSingleNight(context.Background(), stub.fetch, inferTarget, 50)
		require.NoError(t, err)
		require.Equal(t, 625, result.Rate)
		require.Equal(t, 50, result.Delta)
		require.False(t, result.Discrepancy)
	}
	{
		// one dollar past tolerance: midpoint still accepted, flagged
		stub := build(600, 651)
		result, err := InferSingleNight(context.Background(), stub.fetch, inferTarget, 50)
		require.NoError(t, err)
		require.Equal(t, 626, result.Rate)
		require.Equal(t, 51, result.Delta)
		require.True(t, result.Discrepancy)
		require.Equal(t, "calculation methods differ by $51", result.Error)
	}
}

func TestInferSingleNightOneSided(t *testing.T) {
	{
		// only the prev-day pairing resolves
		stub := &stubFetch{results: map[string]ExtractionResult{
			"2026-09-11/2026-09-13": available(1000),
			"2026-09-11/2026-09-12": available(390),
		}}
		result, err := InferSingleNight(context.Background(), stub.fetch, inferTarget, 50)
		require.NoError(t, err)
		require.Equal(t, StatusAvailableCalculated, result.Status)
		require.Equal(t, 610, result.Rate)
		require.False(t, result.Discrepancy)
		require.NotNil(t, result.MethodA)
		require.Nil(t, result.MethodB)
	}
	{
		// only the next-day pairing resolves
		stub := &stubFetch{results: map[string]ExtractionResult{
			"2026-09-12/2026-09-14": available(1300),
			"2026-09-13/2026-09-14": available(650),
		}}
		result, err := InferSingleNight(context.Background(), stub.fetch, inferTarget, 50)
		require.NoError(t, err)
		require.Equal(t, StatusAvailableCalculated, result.Status)
		require.Equal(t, 650, result.Rate)
	}
}

func TestInferSingleNightNothingResolves(t *testing.T) {
	stub := &stubFetch{results: map[string]ExtractionResult{}}

	result, err := InferSingleNight(context.Background(), stub.fetch, inferTarget, 50)
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, result.Status)
	require.Zero(t, result.Rate)
	require.Equal(t, "could not calculate rate from multi-night bookings", result.Error)
	require.Nil(t, result.MethodA)
	require.Nil(t, result.MethodB)
}

func TestInferSingleNightNonPositivePairingDiscarded(t *testing.T) {
	// a two-night total at or below its reference night can only come
	// from mismatched extractions
	stub := &stubFetch{results: map[string]ExtractionResult{
		"2026-09-11/2026-09-13": available(400),
		"2026-09-11/2026-09-12": available(500),
	}}

	result, err := InferSingleNight(context.Background(), stub.fetch, inferTarget, 50)
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, result.Status)
	require.Nil(t, result.MethodA)
}

func TestInferSingleNightCorruptionPropagates(t *testing.T) {
	sentinel := browser.Corrupted(errors.New("target closed"))
	calls := 0
	fetch := func(ctx context.Context, checkIn, checkOut time.Time) (ExtractionResult, error) {
		calls++
		return ExtractionResult{}, sentinel
	}

	_, err := InferSingleNight(context.Background(), fetch, inferTarget, 50)
	require.Error(t, err)
	require.True(t, browser.IsCorruption(err))
	// the solver aborts on the first corrupted fetch instead of
	// burning the remaining branches on a dead session
	require.Equal(t, 1, calls)
}

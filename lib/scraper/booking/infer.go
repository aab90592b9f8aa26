package booking

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// FetchFunc runs one full navigation/fetch cycle for a date range.
// Supplied by the session controller so inference fetches get the same
// pacing and corruption handling as everything else. The error is
// non-nil only for session corruption.
type FetchFunc func(ctx context.Context, checkIn, checkOut time.Time) (ExtractionResult, error)

const (
	methodPrevPairing = "prev+target minus prev"
	methodNextPairing = "target+next minus next"
)

// InferSingleNight recovers a blocked single night's rate by solving two
// overlapping multi-night totals.
//
// Method A prices the [T-1, T+1) two-night stay and subtracts the
// [T-1, T) night; method B prices [T, T+2) and subtracts [T+1, T+2).
// Each of the four fetches is independent and any subset may fail
// without sinking the other branches. When both methods produce an
// estimate they are reconciled against the configured tolerance: close
// agreement accepts the midpoint clean, disagreement still accepts the
// midpoint but flags a discrepancy carrying the delta so downstream
// analysis can down-weight the point.
func InferSingleNight(ctx context.Context, fetch FetchFunc, target time.Time, tolerance int) (InferenceResult, error) {
	ctx, span := tracer.Start(ctx, "solver:InferSingleNight")
	defer span.End()
	span.SetAttributes(attribute.String("target", target.Format(time.DateOnly)))

	prevDay := target.AddDate(0, 0, -1)
	nextDay := target.AddDate(0, 0, 1)
	dayAfterNext := target.AddDate(0, 0, 2)

	result := InferenceResult{
		Currency: Currency,
		Status:   StatusUnknown,
	}

	slog.DebugContext(ctx, "inferring via prev-day pairing",
		"target", target.Format(time.DateOnly))
	attemptA, err := inferAttempt(ctx, fetch, methodPrevPairing,
		prevDay, nextDay, // two-night span
		prevDay, target) // one-night reference
	if err != nil {
		return InferenceResult{}, err
	}

	slog.DebugContext(ctx, "verifying via next-day pairing",
		"target", target.Format(time.DateOnly))
	attemptB, err := inferAttempt(ctx, fetch, methodNextPairing,
		target, dayAfterNext,
		nextDay, dayAfterNext)
	if err != nil {
		return InferenceResult{}, err
	}

	result.MethodA = attemptA
	result.MethodB = attemptB

	switch {
	case attemptA != nil && attemptB != nil:
		delta := attemptA.Calculated - attemptB.Calculated
		if delta < 0 {
			delta = -delta
		}
		midpoint := int(math.Round(float64(attemptA.Calculated+attemptB.Calculated) / 2))

		result.Rate = midpoint
		result.Delta = delta
		result.Status = StatusAvailableCalculated
		if delta > tolerance {
			result.Discrepancy = true
			result.Error = fmt.Sprintf("calculation methods differ by $%d", delta)
			slog.WarnContext(ctx, "inference methods disagree",
				"delta", delta, "rate", midpoint)
		} else {
			slog.DebugContext(ctx, "inference methods agree", "rate", midpoint)
		}
	case attemptA != nil:
		result.Rate = attemptA.Calculated
		result.Status = StatusAvailableCalculated
	case attemptB != nil:
		result.Rate = attemptB.Calculated
		result.Status = StatusAvailableCalculated
	default:
		result.Status = StatusNotFound
		result.Error = "could not calculate rate from multi-night bookings"
		slog.WarnContext(ctx, "single-night inference produced nothing",
			"target", target.Format(time.DateOnly))
	}

	return result, nil
}

// inferAttempt runs one pairing: a two-night total and its one-night
// reference. Returns nil when either fetch came back without a rate;
// only corruption is an error.
func inferAttempt(ctx context.Context, fetch FetchFunc, method string, twoNightIn, twoNightOut, oneNightIn, oneNightOut time.Time) (*InferenceAttempt, error) {
	twoNight, err := fetch(ctx, twoNightIn, twoNightOut)
	if err != nil {
		return nil, err
	}
	oneNight, err := fetch(ctx, oneNightIn, oneNightOut)
	if err != nil {
		return nil, err
	}

	if !twoNight.HasRate() || !oneNight.HasRate() {
		return nil, nil
	}

	calculated := twoNight.Rate - oneNight.Rate
	if calculated <= 0 {
		// a non-positive night can only come from mismatched
		// extractions; treat the pairing as failed
		return nil, nil
	}

	return &InferenceAttempt{
		Method:        method,
		TwoNightTotal: twoNight.Rate,
		OneNightRate:  oneNight.Rate,
		Calculated:    calculated,
	}, nil
}

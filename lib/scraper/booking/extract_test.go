package booking

import (
	"fmt"
	"testing"

	"pitchprice-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestExtractRateRepeatedAmountWins(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:booking")
	defer cleanup()

	cardText := "Grand Harbour Hotel\nDowntown\nCA$412\nCA$412\nCA$899 for suite"
	result := ExtractRate(cardText, 1, DefaultPlausibility())

	require.Equal(t, StatusAvailable, result.Status)
	require.Equal(t, 412, result.Rate)
	require.Equal(t, "CAD", result.Currency)
}

func TestExtractRateMedianWhenNothingRepeats(t *testing.T) {
	cardText := "CA$400 was CA$500 now CA$1,600"
	result := ExtractRate(cardText, 1, DefaultPlausibility())

	require.Equal(t, StatusAvailable, result.Status)
	require.Equal(t, 500, result.Rate)
}

func TestExtractRateSoldOutBeatsPrices(t *testing.T) {
	// sold-out cards still render reference prices for other dates;
	// those must never be read as the rate
	cardText := "Grand Harbour Hotel\nThis property is unavailable on our site for your dates\nCA$650"
	result := ExtractRate(cardText, 1, DefaultPlausibility())

	require.Equal(t, StatusSoldOut, result.Status)
	require.Zero(t, result.Rate)
}

func TestExtractRatePlausibilityWindow(t *testing.T) {
	windows := DefaultPlausibility()

	{
		// single night: everything outside [150, 2500] discarded, no
		// fallback tier
		result := ExtractRate("CA$45 taxes CA$3,000 suite", 1, windows)
		require.Equal(t, StatusAvailable, result.Status)
		require.Zero(t, result.Rate)
	}
	{
		// boundaries are inclusive
		result := ExtractRate("CA$150", 1, windows)
		require.Equal(t, 150, result.Rate)
		result = ExtractRate("CA$2,500", 1, windows)
		require.Equal(t, 2500, result.Rate)
	}
	{
		// two nights: primary window [600, 6000]
		result := ExtractRate("CA$1,200", 2, windows)
		require.Equal(t, 1200, result.Rate)
	}
	{
		// two nights, primary empty: the >= 800 fallback tier catches
		// event-priced totals above the primary ceiling
		result := ExtractRate("CA$250 deposit CA$9,000 total", 2, windows)
		require.Equal(t, StatusAvailable, result.Status)
		require.Equal(t, 9000, result.Rate)
	}
	{
		// fallback never resurrects amounts under its floor
		result := ExtractRate("CA$250 CA$400", 2, windows)
		require.Equal(t, StatusAvailable, result.Status)
		require.Zero(t, result.Rate)
	}
}

func TestExtractRateDeterministic(t *testing.T) {
	cardText := "CA$412 CA$899 CA$412 CA$1,100"
	first := ExtractRate(cardText, 1, DefaultPlausibility())
	for i := 0; i < 20; i++ {
		require.Equal(t, first, ExtractRate(cardText, 1, DefaultPlausibility()))
	}
}

func TestExtractRateMatchedCardWithoutPrices(t *testing.T) {
	// a matched card with no believable price means the stay is likely
	// blocked by a minimum-stay rule; the zero rate is the caller's
	// signal to try inference
	result := ExtractRate("Grand Harbour Hotel\nDowntown\nExcellent location", 1, DefaultPlausibility())
	require.Equal(t, StatusAvailable, result.Status)
	require.Zero(t, result.Rate)
	require.False(t, result.HasRate())
	require.True(t, result.Definitive())
}

func TestCandidatesKeepMultiplicity(t *testing.T) {
	candidates := Candidates("CA$412 strikethrough CA$899 CA$412 CAD 512")
	require.Equal(t, []PriceCandidate{
		{Amount: 412, Currency: "CAD", Count: 2},
		{Amount: 899, Currency: "CAD", Count: 1},
		{Amount: 512, Currency: "CAD", Count: 1},
	}, candidates)
}

func TestPageFallback(t *testing.T) {
	{
		result := PageFallback("Sorry, no availability at this property for your dates")
		require.Equal(t, StatusSoldOut, result.Status)
	}
	{
		result := PageFallback("23 properties found in Toronto")
		require.Equal(t, StatusNotFound, result.Status)
		require.Equal(t, "hotel not found in results", result.Error)
	}
}

func TestPlausibilityWindowScalesWithNights(t *testing.T) {
	windows := DefaultPlausibility()
	for nights := 2; nights <= 7; nights++ {
		min, max := windows.Window(nights)
		require.Equal(t, 300*nights, min, fmt.Sprint("nights=", nights))
		require.Equal(t, 3000*nights, max, fmt.Sprint("nights=", nights))
		require.Equal(t, 400*nights, windows.FallbackFloor(nights))
	}
	require.Zero(t, windows.FallbackFloor(1))
}

package booking

import (
	"sort"
	"strings"

	"pitchprice-backend/lib/htmlutil"
)

// phrases a result card shows when the hotel cannot be booked for the
// searched dates; sold-out cards render reference prices for alternative
// dates which must never leak into the result
var soldOutPhrases = []string{
	"no availability",
	"unavailable",
	"this property is unavailable",
}

// page-level phrases checked when no card matched the target hotel
var pageSoldOutPhrases = []string{
	"no availability",
	"sold out",
}

func containsSoldOutPhrase(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Candidates scans card text for currency-tagged amounts and collects
// them with multiplicity, in first-seen order.
func Candidates(cardText string) []PriceCandidate {
	amounts := htmlutil.PriceTokens(cardText)
	counts := map[int]int{}
	order := make([]int, 0, len(amounts))
	for _, a := range amounts {
		if counts[a] == 0 {
			order = append(order, a)
		}
		counts[a]++
	}

	candidates := make([]PriceCandidate, 0, len(order))
	for _, a := range order {
		candidates = append(candidates, PriceCandidate{
			Amount:   a,
			Currency: Currency,
			Count:    counts[a],
		})
	}
	return candidates
}

// disambiguate picks the single believable rate out of a windowed
// candidate set: the smallest amount that recurs (standard rates render
// several times, promotional prices once), falling back to the median
// which shrugs off single high or low outliers.
func disambiguate(windowed []PriceCandidate) int {
	var repeated []int
	amounts := make([]int, 0, len(windowed))
	for _, c := range windowed {
		amounts = append(amounts, c.Amount)
		if c.Count > 1 {
			repeated = append(repeated, c.Amount)
		}
	}

	if len(repeated) > 0 {
		min := repeated[0]
		for _, a := range repeated[1:] {
			if a < min {
				min = a
			}
		}
		return min
	}

	sort.Ints(amounts)
	return amounts[len(amounts)/2]
}

// ExtractRate reads one matched card's text and produces the rate for
// the stay. Pure function of its inputs.
//
// A sold-out phrase short-circuits everything: no price scan happens.
// Otherwise amounts are filtered through the nights-keyed plausibility
// window (with the >= floor fallback tier for multi-night stays) and
// disambiguated. A card that matched but yielded no plausible price
// comes back available with a zero rate, which is the caller's signal to
// attempt minimum-stay inference.
func ExtractRate(cardText string, nights int, windows PlausibilityConfig) ExtractionResult {
	result := ExtractionResult{
		Currency: Currency,
		Status:   StatusUnknown,
	}

	if containsSoldOutPhrase(cardText, soldOutPhrases) {
		result.Status = StatusSoldOut
		return result
	}

	candidates := Candidates(cardText)
	if len(candidates) == 0 {
		result.Status = StatusAvailable
		return result
	}

	var windowed []PriceCandidate
	for _, c := range candidates {
		if windows.InWindow(c.Amount, nights) {
			windowed = append(windowed, c)
		}
	}
	if len(windowed) == 0 {
		if floor := windows.FallbackFloor(nights); floor > 0 {
			for _, c := range candidates {
				if c.Amount >= floor {
					windowed = append(windowed, c)
				}
			}
		}
	}

	if len(windowed) == 0 {
		result.Status = StatusAvailable
		return result
	}

	result.Rate = disambiguate(windowed)
	result.Status = StatusAvailable
	return result
}

// PageFallback classifies a page on which no card matched the target
// hotel: a page-wide sold-out phrase means the dates are gone, anything
// else means the hotel just is not in the results.
func PageFallback(bodyText string) ExtractionResult {
	result := ExtractionResult{Currency: Currency}
	if containsSoldOutPhrase(bodyText, pageSoldOutPhrases) {
		result.Status = StatusSoldOut
		return result
	}
	result.Status = StatusNotFound
	result.Error = "hotel not found in results"
	return result
}

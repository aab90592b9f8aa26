package booking

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// result cards considered before giving up on finding the hotel
	maxCardsScanned = 15
	// keywords drawn from the hotel name
	maxKeywords = 3
	// keywords a card must contain to be accepted
	minKeywordHits = 2
	minKeywordLen  = 4
)

// hotelKeywords extracts up to 3 lowercased words longer than 3
// characters from the hotel's display name.
func hotelKeywords(hotelName string) []string {
	var keywords []string
	for _, w := range strings.Fields(hotelName) {
		if len(w) < minKeywordLen {
			continue
		}
		keywords = append(keywords, strings.ToLower(w))
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// MatchCard returns the index of the first card whose text contains at
// least 2 of the hotel-name keywords, scanning at most the first 15
// cards in document order, or -1 when none qualifies. First plausible
// match wins; the business use case does not need tie resolution.
func MatchCard(cardTexts []string, hotelName string) int {
	keywords := hotelKeywords(hotelName)
	if len(keywords) == 0 {
		return -1
	}

	limit := len(cardTexts)
	if limit > maxCardsScanned {
		limit = maxCardsScanned
	}

	for i := 0; i < limit; i++ {
		lower := strings.ToLower(cardTexts[i])
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits >= minKeywordHits {
			return i
		}
	}
	return -1
}

// MatchConfidence scores how closely the matched card's title line
// resembles the hotel name. Recorded in diagnostics only; never used to
// accept or reject a match.
func MatchConfidence(hotelName, cardText string) float64 {
	title := cardText
	if idx := strings.IndexByte(cardText, '\n'); idx > 0 {
		title = cardText[:idx]
	}
	return matchr.JaroWinkler(
		strings.ToLower(strings.TrimSpace(title)),
		strings.ToLower(strings.TrimSpace(hotelName)),
		false,
	)
}

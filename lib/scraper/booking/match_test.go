package booking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchCard(t *testing.T) {
	cards := []string{
		"Lakeside Motor Inn\nCA$180",
		"Grand Harbour Hotel Toronto\nCA$412",
		"Harbour View Hostel\nCA$95",
	}

	{
		// needs two keyword hits, first qualifying card wins
		idx := MatchCard(cards, "Grand Harbour Hotel")
		require.Equal(t, 1, idx)
	}
	{
		// one shared keyword is not enough
		idx := MatchCard(cards, "Harbour Bistro Suites")
		require.Equal(t, -1, idx)
	}
	{
		// short words never become keywords
		idx := MatchCard(cards, "The Inn at Oak St")
		require.Equal(t, -1, idx)
	}
	{
		idx := MatchCard(nil, "Grand Harbour Hotel")
		require.Equal(t, -1, idx)
	}
}

func TestMatchCardScanLimit(t *testing.T) {
	var cards []string
	for i := 0; i < 30; i++ {
		cards = append(cards, fmt.Sprintf("Filler Property %d", i))
	}
	cards = append(cards, "Grand Harbour Hotel\nCA$412")

	// the real hotel sits past the scan cap, so it is never found
	require.Equal(t, -1, MatchCard(cards, "Grand Harbour Hotel"))

	// but inside the cap it is
	require.Equal(t, 2, MatchCard(cards[28:], "Grand Harbour Hotel"))
}

func TestHotelKeywords(t *testing.T) {
	require.Equal(t,
		[]string{"grand", "harbour", "hotel"},
		hotelKeywords("Grand Harbour Hotel and Conference Centre"))
	require.Equal(t,
		[]string{"harbour"},
		hotelKeywords("The Inn at Harbour"))
	require.Nil(t, hotelKeywords("An Inn"))
}

func TestMatchConfidence(t *testing.T) {
	exact := MatchConfidence("Grand Harbour Hotel", "Grand Harbour Hotel\nCA$412")
	near := MatchConfidence("Grand Harbour Hotel", "Grand Harbor Hotel\nCA$412")
	far := MatchConfidence("Grand Harbour Hotel", "Lakeside Motor Inn\nCA$180")

	require.Equal(t, 1.0, exact)
	require.Greater(t, near, far)
}

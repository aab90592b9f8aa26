package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestPriceTokens(t *testing.T) {
	text := "was CA$899 now CA$412, or CAD 1,250 total, deposit C$50"
	require.Equal(t, []int{899, 412, 1250, 50}, PriceTokens(text))

	require.Empty(t, PriceTokens("from $412 per night"))
	require.Empty(t, PriceTokens("no prices here"))
}

func TestVisiblePrices(t *testing.T) {
	page := `<html><head><title>ignored CA$999</title></head>
<body><div>CA$412</div><div>CA$180</div><div>CA$250</div></body></html>`

	require.Equal(t, []int{412, 180, 250}, VisiblePrices(page, 20))
	require.Equal(t, []int{412, 180}, VisiblePrices(page, 2))
}

func TestPageTitle(t *testing.T) {
	page := "<html><head><title>\n  Toronto: 23 properties   found\n</title></head><body></body></html>"
	require.Equal(t, "Toronto: 23 properties found", PageTitle(page))
}

func TestGetText(t *testing.T) {
	node, err := html.Parse(strings.NewReader(
		`<html><body><div>Grand <b>Harbour</b> Hotel</div></body></html>`))
	require.NoError(t, err)
	require.Equal(t, "Grand Harbour Hotel", CleanText(GetText(node)))
}

package htmlutil

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

func CleanText(s string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(removeNonPrintable(s), " "))
}

// canadian dollar price tokens as rendered by the search results page,
// group separators included
var priceTokenRegex = regexp.MustCompile(`(?:CA\$|CAD|C\$)\s*([\d,]+)`)

// PriceTokens scans text for currency-tagged integer amounts, group
// separators stripped, in document order.
func PriceTokens(text string) []int {
	matches := priceTokenRegex.FindAllStringSubmatch(text, -1)
	amounts := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil || n <= 0 {
			continue
		}
		amounts = append(amounts, n)
	}
	return amounts
}

// VisiblePrices parses a full page's HTML and returns up to `limit`
// price tokens found in the body text. Diagnostics only.
func VisiblePrices(pageHTML string, limit int) []int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil
	}
	prices := PriceTokens(doc.Find("body").Text())
	if len(prices) > limit {
		prices = prices[:limit]
	}
	return prices
}

// PageTitle extracts <title> from raw page HTML. Diagnostics only.
func PageTitle(pageHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}
	return CleanText(doc.Find("title").First().Text())
}

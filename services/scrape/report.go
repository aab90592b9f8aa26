package scrape

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"pitchprice-backend/lib/scraper/booking"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Report summarizes one run for the log tail and the output file.
type Report struct {
	TotalLookups  int            `json:"total_lookups"`
	WithRates     int            `json:"with_rates"`
	Calculated    int            `json:"calculated"`
	SoldOut       int            `json:"sold_out"`
	NotFound      int            `json:"not_found"`
	Failed        int            `json:"failed"`
	Discrepancies int            `json:"discrepancies"`
	ErrorsByKind  map[string]int `json:"errors_by_kind,omitempty"`
	// hotels whose lookups failed or went rateless half the time or
	// more; these usually mean a stale hotel name in config
	HotelsWithIssues []string `json:"hotels_with_issues,omitempty"`
}

// categorizeError folds free-text lookup errors into a handful of
// stable buckets so trends survive wording changes.
func categorizeError(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "corrupt"):
		return "session_corruption"
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return "timeout"
	case strings.Contains(lower, "failed after"):
		return "retries_exhausted"
	case strings.Contains(lower, "multi-night"):
		return "multi_night_calculation"
	case strings.Contains(lower, "not found"):
		return "not_found"
	case strings.Contains(lower, "differ by"):
		return "inference_discrepancy"
	default:
		return "other"
	}
}

// BuildReport summarizes the run's results. The run's error list is a
// projection of the results, so categorization reads the results alone
// to count each failure once.
func BuildReport(results []Result) Report {
	report := Report{
		TotalLookups: len(results),
		ErrorsByKind: map[string]int{},
	}

	type hotelStats struct{ total, bad int }
	perHotel := map[string]*hotelStats{}

	for _, r := range results {
		key := fmt.Sprintf("%s (%s)", r.HotelName, r.City)
		stats := perHotel[key]
		if stats == nil {
			stats = &hotelStats{}
			perHotel[key] = stats
		}
		stats.total++

		switch r.Status {
		case booking.StatusAvailable:
			if r.Rate > 0 {
				report.WithRates++
			} else {
				stats.bad++
			}
		case booking.StatusAvailableCalculated:
			report.WithRates++
			report.Calculated++
		case booking.StatusSoldOut:
			report.SoldOut++
		case booking.StatusNotFound:
			report.NotFound++
			stats.bad++
		default:
			report.Failed++
			stats.bad++
		}
		if r.Discrepancy {
			report.Discrepancies++
		}
		if r.Error != "" && r.Status != booking.StatusAvailableCalculated {
			report.ErrorsByKind[categorizeError(r.Error)]++
		}
	}
	if len(report.ErrorsByKind) == 0 {
		report.ErrorsByKind = nil
	}

	for key, stats := range perHotel {
		if stats.total > 0 && stats.bad*2 >= stats.total {
			report.HotelsWithIssues = append(report.HotelsWithIssues, key)
		}
	}
	sort.Strings(report.HotelsWithIssues)

	return report
}

// Render writes the run summary as a table.
func (r Report) Render(out io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Metric", "Count"})
	t.AppendRows([]table.Row{
		{"total lookups", r.TotalLookups},
		{"with rates", r.WithRates},
		{"calculated", r.Calculated},
		{"sold out", r.SoldOut},
		{"not found", r.NotFound},
		{"failed", r.Failed},
		{"discrepancies", r.Discrepancies},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(r.ErrorsByKind) > 0 {
		e := table.NewWriter()
		e.SetOutputMirror(out)
		e.AppendHeader(table.Row{"Error kind", "Count"})
		kinds := make([]string, 0, len(r.ErrorsByKind))
		for kind := range r.ErrorsByKind {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			e.AppendRow(table.Row{kind, r.ErrorsByKind[kind]})
		}
		e.SetStyle(table.StyleRounded)
		e.Render()
	}

	if len(r.HotelsWithIssues) > 0 {
		h := table.NewWriter()
		h.SetOutputMirror(out)
		h.AppendHeader(table.Row{"Hotels with issues"})
		for _, hotel := range r.HotelsWithIssues {
			h.AppendRow(table.Row{hotel})
		}
		h.SetStyle(table.StyleRounded)
		h.Render()
	}
}

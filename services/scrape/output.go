package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pitchprice-backend/lib/ratestore"
	"pitchprice-backend/lib/timezone"
)

// WriteOutputs persists one run under the output directory:
//
//	<dir>/<date>/scrape_<ts>.json   the full run
//	<dir>/latest.json               copy of the newest run
//	<dir>/aggregated.json           every result across runs
//
// Returns the path of the run file.
func WriteOutputs(out RunOutput, dir string) (string, error) {
	now := timezone.Now()
	dayDir := filepath.Join(dir, now.Format(time.DateOnly))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return "", err
	}

	runPath := filepath.Join(dayDir, fmt.Sprintf("scrape_%s.json", now.Format("20060102_150405")))
	if err := writeJSON(runPath, out); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, "latest.json"), out); err != nil {
		return "", err
	}
	if err := appendAggregated(filepath.Join(dir, "aggregated.json"), out.Results); err != nil {
		return "", err
	}
	return runPath, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func appendAggregated(path string, results []Result) error {
	var aggregated []Result
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, &aggregated); err != nil {
			// a corrupt aggregate should not lose this run's data;
			// start over and keep the old file aside
			slog.Warn("aggregated output unreadable, rotating it away", "path", path, "err", err)
			os.Rename(path, path+".corrupt")
			aggregated = nil
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	aggregated = append(aggregated, results...)
	return writeJSON(path, aggregated)
}

// PushStore records the run's results in the sqlite rate history.
func PushStore(ctx context.Context, store ratestore.Store, out RunOutput) error {
	push := ratestore.PushRequest{Time: timezone.Now()}
	for _, r := range out.Results {
		checkIn, err := time.ParseInLocation(time.DateOnly, r.CheckIn, timezone.Location)
		if err != nil {
			slog.WarnContext(ctx, "skipping result with unparsable check-in",
				"check_in", r.CheckIn, "hotel", r.HotelName)
			continue
		}
		push.Observations = append(push.Observations, ratestore.Observation{
			HotelSlug:   r.HotelID,
			HotelName:   r.HotelName,
			City:        r.City,
			CheckIn:     checkIn,
			Rate:        r.Rate,
			Currency:    r.Currency,
			Status:      string(r.Status),
			Discrepancy: r.Discrepancy,
			Error:       r.Error,
		})
	}
	return store.Push(ctx, push)
}

package scrape

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pitchprice-backend/lib/ratestore"
	"pitchprice-backend/lib/scraper/booking"
	"pitchprice-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func sampleRun() RunOutput {
	results := []Result{
		{
			HotelID:   "grand-harbour",
			HotelName: "Grand Harbour Hotel",
			City:      "Toronto",
			CheckIn:   "2026-06-11",
			CheckOut:  "2026-06-12",
			Rate:      412,
			Currency:  "CAD",
			Status:    booking.StatusAvailable,
		},
	}
	return RunOutput{
		Metadata: RunMetadata{
			StartedAt:    "2026-06-11T08:00:00Z",
			FinishedAt:   "2026-06-11T08:30:00Z",
			Cities:       []string{"Toronto"},
			TotalLookups: 1,
		},
		Results: results,
		Report:  BuildReport(results),
	}
}

func TestWriteOutputs(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:scrape")
	defer cleanup()

	dir := t.TempDir()
	run := sampleRun()

	runPath, err := WriteOutputs(run, dir)
	require.NoError(t, err)
	require.FileExists(t, runPath)
	require.FileExists(t, filepath.Join(dir, "latest.json"))

	data, err := os.ReadFile(filepath.Join(dir, "latest.json"))
	require.NoError(t, err)
	var latest RunOutput
	require.NoError(t, json.Unmarshal(data, &latest))
	require.Len(t, latest.Results, 1)
	require.Equal(t, 412, latest.Results[0].Rate)

	// a second run appends to the aggregate
	_, err = WriteOutputs(run, dir)
	require.NoError(t, err)

	data, err = os.ReadFile(filepath.Join(dir, "aggregated.json"))
	require.NoError(t, err)
	var aggregated []Result
	require.NoError(t, json.Unmarshal(data, &aggregated))
	require.Len(t, aggregated, 2)
}

func TestWriteOutputsRotatesCorruptAggregate(t *testing.T) {
	dir := t.TempDir()
	aggregate := filepath.Join(dir, "aggregated.json")
	require.NoError(t, os.WriteFile(aggregate, []byte("{not json"), 0o644))

	_, err := WriteOutputs(sampleRun(), dir)
	require.NoError(t, err)

	require.FileExists(t, aggregate+".corrupt")
	data, err := os.ReadFile(aggregate)
	require.NoError(t, err)
	var aggregated []Result
	require.NoError(t, json.Unmarshal(data, &aggregated))
	require.Len(t, aggregated, 1)
}

func TestPushStore(t *testing.T) {
	database, err := ratestore.Open(":memory:")
	require.NoError(t, err)
	defer database.Close()
	store := ratestore.NewStore(database)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	require.NoError(t, PushStore(ctx, store, sampleRun()))

	series, err := store.Pull(ctx, "grand-harbour", "Toronto")
	require.NoError(t, err)
	require.Len(t, series.Points, 1)
	require.Equal(t, 412, series.Points[0].Rate)
	require.Equal(t, "available", series.Points[0].Status)
}

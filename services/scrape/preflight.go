package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pitchprice-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const searchHost = "https://www.booking.com"

// Preflight probes the search host with a plain HTTP client before the
// browser is launched, so an outage or network problem fails the run in
// seconds instead of after minutes of browser timeouts. A blocked or
// challenged response is only a warning; the browser gets further than
// a bare client does.
func Preflight(ctx context.Context) error {
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 15)
	telemetry.InstrumentResty(client, "scrape/preflight")

	res, err := client.R().SetContext(ctx).Head(searchHost)
	if err != nil {
		return fmt.Errorf("search host unreachable: %w", err)
	}

	status := res.StatusCode()
	switch {
	case status < 400:
		slog.DebugContext(ctx, "preflight ok", "status", status)
	case status == 403 || status == 429 || status == 503:
		slog.WarnContext(ctx, "search host is challenging plain clients", "status", status)
	default:
		return fmt.Errorf("search host returned status %d", status)
	}
	return nil
}

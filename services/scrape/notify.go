package scrape

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

// Notify emails the run summary. Only called when notify config is
// present; a send failure is the caller's to log, never to fail the
// run over.
func Notify(cfg NotifyConfig, out RunOutput) error {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("PitchPrice Scraper <%s>", cfg.From)
	mail.To = cfg.To
	mail.Subject = fmt.Sprintf("Scrape run %s: %d rates, %d errors",
		out.Metadata.StartedAt, out.Report.WithRates, len(out.Errors))

	var body strings.Builder
	fmt.Fprintf(&body, "Run started %s, finished %s.\n\n",
		out.Metadata.StartedAt, out.Metadata.FinishedAt)
	fmt.Fprintf(&body, "Cities: %s\n\n", strings.Join(out.Metadata.Cities, ", "))
	out.Report.Render(&body)
	if len(out.Errors) > 0 {
		fmt.Fprintf(&body, "\nFirst errors:\n")
		for i, e := range out.Errors {
			if i == 10 {
				fmt.Fprintf(&body, "... and %d more\n", len(out.Errors)-i)
				break
			}
			fmt.Fprintf(&body, "  %s / %s / %s: %s\n", e.City, e.Hotel, e.CheckIn, e.Error)
		}
	}
	mail.Text = []byte(body.String())

	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	err := mail.Send(addr, smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	return err
}

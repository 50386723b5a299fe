package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/phelix001/ISPFCCComplainer/config"
	"github.com/phelix001/ISPFCCComplainer/model"
)

// ComplaintNotification builds the subject and body for a notification about
// a complaint filing attempt.
func ComplaintNotification(cfg *config.Config, text string, status model.ComplaintStatus, date time.Time) (subject, body string) {
	dateStr := date.Format("2006-01-02")

	var intro string
	switch status {
	case model.StatusFiled, model.StatusDailyFiled:
		subject = fmt.Sprintf("FCC Complaint Filed - %s - %s", cfg.ISPName, dateStr)
		intro = "An FCC complaint has been automatically filed against your ISP."
	case model.StatusDryRun, model.StatusDailyDryRun:
		subject = fmt.Sprintf("FCC Complaint (DRY RUN) - %s - %s", cfg.ISPName, dateStr)
		intro = "A complaint WOULD have been filed (dry run mode)."
	case model.StatusEmailed:
		subject = fmt.Sprintf("FCC Complaint (EMAIL ONLY) - %s - %s", cfg.ISPName, dateStr)
		intro = "No filer is configured; the complaint below was delivered by email only."
	default:
		subject = fmt.Sprintf("FCC Complaint FAILED - %s - %s", cfg.ISPName, dateStr)
		intro = "WARNING: Failed to file FCC complaint. Manual action may be needed."
	}

	body = fmt.Sprintf(`%s

Date: %s
ISP: %s
Advertised Speed: %g Mbps
Threshold: %d%% (%.1f Mbps)

--- COMPLAINT TEXT ---
%s
--- END COMPLAINT ---

This is an automated notification from ISPFCCComplainer.
`,
		intro,
		dateStr,
		cfg.ISPName,
		cfg.AdvertisedSpeedMbps,
		cfg.ThresholdPercent,
		cfg.ThresholdSpeedMbps(),
		text,
	)
	return subject, body
}

// DailySummaryEmail builds the subject and body for the daily summary. The
// agg must have been computed over tests; an empty day produces the "no
// tests" variant.
func DailySummaryEmail(cfg *config.Config, date time.Time, agg Aggregate, complaintFiled bool) (subject, body string) {
	dateStr := date.Format("2006-01-02")

	if agg.Total == 0 {
		subject = fmt.Sprintf("Speed Test Summary - %s - No Tests", dateStr)
		body = fmt.Sprintf(`Daily Speed Test Summary for %s

No speed tests were recorded for this date.

This is an automated notification from ISPFCCComplainer.
`, dateStr)
		return subject, body
	}

	status := "OK"
	switch {
	case complaintFiled:
		status = "COMPLAINT FILED"
	case len(agg.Failed) > 0:
		status = "FAILURES DETECTED"
	}
	subject = fmt.Sprintf("Speed Test Summary - %s - %s", dateStr, status)

	var b strings.Builder
	fmt.Fprintf(&b, `Daily Speed Test Summary for %s

ISP: %s
Advertised Speed: %g Mbps
Threshold: %d%% (%.1f Mbps)

SUMMARY:
- Total Tests: %d
- Failed Tests: %d (%.1f%%)
- Average Download: %.2f Mbps (%.1f%% of advertised)
- Min Download: %.2f Mbps
- Max Download: %.2f Mbps

COMPLAINT STATUS: %s

`,
		dateStr,
		cfg.ISPName,
		cfg.AdvertisedSpeedMbps,
		cfg.ThresholdPercent,
		cfg.ThresholdSpeedMbps(),
		agg.Total,
		len(agg.Failed),
		agg.FailureRate,
		agg.MeanDownload,
		agg.MeanPercent,
		agg.MinDownload,
		agg.MaxDownload,
		filedLabel(complaintFiled),
	)

	if len(agg.Failed) > 0 {
		b.WriteString("FAILED TESTS:\n")
		for _, t := range agg.Failed {
			fmt.Fprintf(&b, "  - %s: %.2f Mbps (%.1f%%)\n",
				t.Timestamp.Format("15:04:05"),
				t.DownloadMbps,
				PercentOfAdvertised(cfg, t.DownloadMbps),
			)
		}
		b.WriteByte('\n')
	}

	b.WriteString("This is an automated notification from ISPFCCComplainer.\n")
	return subject, b.String()
}

func filedLabel(filed bool) string {
	if filed {
		return "Filed"
	}
	return "Not Filed"
}

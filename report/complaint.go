package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/phelix001/ISPFCCComplainer/config"
	"github.com/phelix001/ISPFCCComplainer/model"
)

// ComplaintText renders the complaint for a single failing speed test.
// Deterministic: identical inputs reproduce the text byte for byte. The
// renderer never truncates; the form length cap belongs to the filer.
func ComplaintText(cfg *config.Config, t model.SpeedTest) string {
	percent := PercentOfAdvertised(cfg, t.DownloadMbps)

	return fmt.Sprintf(`I am filing this complaint regarding inadequate internet service from %s.

SERVICE DETAILS:
- Account Number: %s
- Service Address: %s
- Advertised Speed: %g Mbps
- Minimum Acceptable (%d%%): %.1f Mbps

SPEED TEST RESULTS:
- Date/Time: %s
- Download Speed: %.2f Mbps (%.1f%% of advertised)
- Upload Speed: %.2f Mbps
- Ping: %.1f ms
- Test Server: %s

COMPLAINT:
I am paying for %g Mbps internet service but consistently receiving speeds far below what is advertised. The speed test above shows I am receiving only %.1f%% of my advertised speed, which is below the %d%% threshold I consider acceptable.

This represents a failure by %s to deliver the service I am paying for. I request that the FCC investigate this matter and require %s to either provide the advertised speeds or adjust my billing accordingly.

This complaint was automatically generated and filed due to repeated speed test failures.`,
		cfg.ISPName,
		cfg.ISPAccountNumber,
		cfg.ServiceAddress,
		cfg.AdvertisedSpeedMbps,
		cfg.ThresholdPercent,
		cfg.ThresholdSpeedMbps(),
		t.Timestamp.Format("2006-01-02 15:04:05"),
		t.DownloadMbps,
		percent,
		t.UploadMbps,
		t.PingMs,
		t.Server,
		cfg.AdvertisedSpeedMbps,
		percent,
		cfg.ThresholdPercent,
		cfg.ISPName,
		cfg.ISPName,
	)
}

// DailyComplaintText renders the complaint summarizing one day of tests. The
// fixed block order is: service identity, advertised vs threshold, daily
// summary, per-test detail lines, closing narrative. The narrative reuses the
// numbers computed in agg; nothing is recomputed here.
func DailyComplaintText(cfg *config.Config, agg Aggregate, tests []model.SpeedTest, reportDate time.Time) string {
	var details strings.Builder
	for i, t := range tests {
		if i > 0 {
			details.WriteByte('\n')
		}
		status := "OK"
		if !Passes(cfg, t) {
			status = "FAILED"
		}
		fmt.Fprintf(&details, "  %s - Down: %7.2f Mbps (%5.1f%%) | Up: %7.2f Mbps | Ping: %5.1f ms | %s",
			t.Timestamp.Format("15:04:05"),
			t.DownloadMbps,
			PercentOfAdvertised(cfg, t.DownloadMbps),
			t.UploadMbps,
			t.PingMs,
			status,
		)
	}

	return fmt.Sprintf(`I am filing this complaint regarding consistently inadequate internet service from %s.

SERVICE DETAILS:
- Account Number: %s
- Service Address: %s
- Advertised Speed: %g Mbps
- Minimum Acceptable (%d%%): %.1f Mbps

DAILY SUMMARY FOR %s:
- Total Speed Tests: %d
- Failed Tests (below %d%%): %d (%.1f%% failure rate)
- Average Download: %.2f Mbps (%.1f%% of advertised)
- Minimum Download: %.2f Mbps
- Maximum Download: %.2f Mbps
- Average Upload: %.2f Mbps
- Average Ping: %.1f ms

INDIVIDUAL TEST RESULTS:
%s

COMPLAINT:
On %s, I ran %d automated speed tests throughout the day to monitor my internet service from %s. Of these tests, %d (%.1f%%) fell below %d%% of my advertised %g Mbps service.

My average download speed for the day was only %.2f Mbps, which is %.1f%% of what I am paying for. This represents a significant and consistent failure by %s to deliver the service I am paying for.

I request that the FCC investigate this pattern of underperformance and require %s to either consistently provide the advertised speeds or adjust my billing to reflect the actual service being delivered.

This complaint was automatically generated from verified speed test data.`,
		cfg.ISPName,
		cfg.ISPAccountNumber,
		cfg.ServiceAddress,
		cfg.AdvertisedSpeedMbps,
		cfg.ThresholdPercent,
		cfg.ThresholdSpeedMbps(),
		reportDate.Format("2006-01-02"),
		agg.Total,
		cfg.ThresholdPercent,
		len(agg.Failed),
		agg.FailureRate,
		agg.MeanDownload,
		agg.MeanPercent,
		agg.MinDownload,
		agg.MaxDownload,
		agg.MeanUpload,
		agg.MeanPing,
		details.String(),
		reportDate.Format("January 2, 2006"),
		agg.Total,
		cfg.ISPName,
		len(agg.Failed),
		agg.FailureRate,
		cfg.ThresholdPercent,
		cfg.AdvertisedSpeedMbps,
		agg.MeanDownload,
		agg.MeanPercent,
		cfg.ISPName,
		cfg.ISPName,
	)
}

// Package report computes the statistics behind every rendered surface and
// turns them into complaint and notification text. Every number shown
// anywhere (complaint, email, CLI listing, dashboard) comes from the pure
// functions here so the surfaces can never disagree.
package report

import (
	"github.com/phelix001/ISPFCCComplainer/config"
	"github.com/phelix001/ISPFCCComplainer/model"
)

// Aggregate holds the statistics for one set of speed tests against a
// threshold. Arithmetic means, no weighting.
type Aggregate struct {
	Total        int
	Failed       []model.SpeedTest
	FailureRate  float64
	MeanDownload float64
	MinDownload  float64
	MaxDownload  float64
	MeanUpload   float64
	MeanPing     float64

	// MeanPercent is the mean download as a percentage of the advertised
	// speed.
	MeanPercent float64
}

// Compute aggregates tests against the config threshold. Callers must treat
// an empty day as "nothing to report" and skip aggregation; an empty input
// yields a zero Aggregate (failure rate 0) rather than a division by zero.
func Compute(cfg *config.Config, tests []model.SpeedTest) Aggregate {
	if len(tests) == 0 {
		return Aggregate{}
	}

	threshold := cfg.ThresholdSpeedMbps()
	agg := Aggregate{
		Total:       len(tests),
		MinDownload: tests[0].DownloadMbps,
		MaxDownload: tests[0].DownloadMbps,
	}

	var sumDown, sumUp, sumPing float64
	for _, t := range tests {
		sumDown += t.DownloadMbps
		sumUp += t.UploadMbps
		sumPing += t.PingMs
		if t.DownloadMbps < agg.MinDownload {
			agg.MinDownload = t.DownloadMbps
		}
		if t.DownloadMbps > agg.MaxDownload {
			agg.MaxDownload = t.DownloadMbps
		}
		if t.DownloadMbps < threshold {
			agg.Failed = append(agg.Failed, t)
		}
	}

	n := float64(len(tests))
	agg.MeanDownload = sumDown / n
	agg.MeanUpload = sumUp / n
	agg.MeanPing = sumPing / n
	agg.FailureRate = float64(len(agg.Failed)) / n * 100
	agg.MeanPercent = PercentOfAdvertised(cfg, agg.MeanDownload)
	return agg
}

// PercentOfAdvertised expresses a throughput as a percentage of the
// advertised speed.
func PercentOfAdvertised(cfg *config.Config, mbps float64) float64 {
	return mbps / cfg.AdvertisedSpeedMbps * 100
}

// Passes reports whether a test met the threshold. A download strictly below
// the threshold speed fails.
func Passes(cfg *config.Config, t model.SpeedTest) bool {
	return t.DownloadMbps >= cfg.ThresholdSpeedMbps()
}

// WorstSample returns the test with the lowest download, used as the
// representative sample when filing a daily aggregate.
func WorstSample(tests []model.SpeedTest) model.SpeedTest {
	worst := tests[0]
	for _, t := range tests[1:] {
		if t.DownloadMbps < worst.DownloadMbps {
			worst = t
		}
	}
	return worst
}

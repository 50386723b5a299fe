package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phelix001/ISPFCCComplainer/config"
	"github.com/phelix001/ISPFCCComplainer/model"
)

func testConfig() *config.Config {
	return &config.Config{
		AdvertisedSpeedMbps: 1000,
		ThresholdPercent:    70,
		ISPName:             "Comtrast",
		ISPAccountNumber:    "8675309",
		ServiceAddress:      "123 Main St, Springfield",
	}
}

func testsAt(downloads ...float64) []model.SpeedTest {
	base := time.Date(2026, 8, 30, 8, 0, 0, 0, time.Local)
	out := make([]model.SpeedTest, 0, len(downloads))
	for i, d := range downloads {
		out = append(out, model.SpeedTest{
			ID:           int64(i + 1),
			Timestamp:    base.Add(time.Duration(i) * time.Hour),
			DownloadMbps: d,
			UploadMbps:   40,
			PingMs:       12,
			Server:       "Test Server (Springfield)",
		})
	}
	return out
}

func TestThresholdSpeedDerived(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, 700.0, cfg.ThresholdSpeedMbps())
}

func TestComputeAgainstThreshold(t *testing.T) {
	cfg := testConfig()
	agg := Compute(cfg, testsAt(650, 720, 680))

	assert.Equal(t, 3, agg.Total)
	require.Len(t, agg.Failed, 2)
	assert.Equal(t, 650.0, agg.Failed[0].DownloadMbps)
	assert.Equal(t, 680.0, agg.Failed[1].DownloadMbps)

	assert.InDelta(t, 66.7, agg.FailureRate, 0.05)
	assert.InDelta(t, 683.33, agg.MeanDownload, 0.005)
	assert.Equal(t, 650.0, agg.MinDownload)
	assert.Equal(t, 720.0, agg.MaxDownload)
	assert.InDelta(t, 68.33, agg.MeanPercent, 0.005)
}

func TestComputeBounds(t *testing.T) {
	cfg := testConfig()
	cases := [][]float64{
		{100},
		{700, 700, 700},
		{0, 0, 0},
		{1200, 50, 699.99, 700.01},
	}
	for _, downloads := range cases {
		agg := Compute(cfg, testsAt(downloads...))
		assert.GreaterOrEqual(t, agg.FailureRate, 0.0)
		assert.LessOrEqual(t, agg.FailureRate, 100.0)
		assert.LessOrEqual(t, len(agg.Failed), agg.Total)
	}
}

func TestComputeThresholdIsStrict(t *testing.T) {
	cfg := testConfig()
	// Exactly at the threshold passes; strictly below fails.
	agg := Compute(cfg, testsAt(700, 699.99))
	require.Len(t, agg.Failed, 1)
	assert.Equal(t, 699.99, agg.Failed[0].DownloadMbps)
}

func TestComputeEmptyInput(t *testing.T) {
	agg := Compute(testConfig(), nil)
	assert.Zero(t, agg.Total)
	assert.Zero(t, agg.FailureRate)
	assert.Empty(t, agg.Failed)
}

func TestPercentOfAdvertised(t *testing.T) {
	cfg := testConfig()
	assert.InDelta(t, 65.0, PercentOfAdvertised(cfg, 650), 1e-9)
}

func TestWorstSample(t *testing.T) {
	tests := testsAt(650, 400, 680)
	assert.Equal(t, 400.0, WorstSample(tests).DownloadMbps)
}

func TestPasses(t *testing.T) {
	cfg := testConfig()
	tests := testsAt(700, 699.99)
	assert.True(t, Passes(cfg, tests[0]))
	assert.False(t, Passes(cfg, tests[1]))
}

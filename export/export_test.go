package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phelix001/ISPFCCComplainer/config"
	"github.com/phelix001/ISPFCCComplainer/model"
)

func exportConfig() *config.Config {
	return &config.Config{
		AdvertisedSpeedMbps: 1000,
		ThresholdPercent:    70,
		ISPName:             "Comtrast",
		ISPAccountNumber:    "8675309",
		ServiceAddress:      "123 Main St",
		PhoneNumber:         "555-0100",
		Email:               "user@example.com",
		FirstName:           "Pat",
		LastName:            "Doe",
		FCCUsername:         "pat",
		FCCPassword:         "secret",
	}
}

func TestBuildAndLoadRoundTrip(t *testing.T) {
	cfg := exportConfig()
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.Local)
	tests := []model.SpeedTest{
		{
			Timestamp:    date.Add(8 * time.Hour),
			DownloadMbps: 650.25,
			UploadMbps:   41.5,
			PingMs:       11.2,
			Server:       "Test Server (Springfield)",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Build(cfg, date, tests).Write(&buf))

	doc, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-30", doc.Date)
	assert.Equal(t, 700.0, doc.Config.ThresholdSpeedMbps)

	got, err := doc.SpeedTests()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 650.25, got[0].DownloadMbps)
	assert.True(t, got[0].Timestamp.Equal(tests[0].Timestamp))

	reportDate, err := doc.ReportDate()
	require.NoError(t, err)
	assert.True(t, reportDate.Equal(date))
}

func TestBuildEmptyDay(t *testing.T) {
	doc := Build(exportConfig(), time.Date(2026, 8, 30, 0, 0, 0, 0, time.Local), nil)
	assert.NotNil(t, doc.Tests)
	assert.Empty(t, doc.Tests)
	assert.Nil(t, doc.Error)
}

func TestLoadRejectsErrorDocument(t *testing.T) {
	_, err := Load(strings.NewReader(`{"error": "boom", "date": "2026-08-30", "tests": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestLoadRejectsMissingDate(t *testing.T) {
	_, err := Load(strings.NewReader(`{"error": null, "tests": []}`))
	require.Error(t, err)
}

func TestApplyToOverlaysIdentity(t *testing.T) {
	doc := Build(exportConfig(), time.Date(2026, 8, 30, 0, 0, 0, 0, time.Local), nil)

	target := &config.Config{AdvertisedSpeedMbps: 500, ThresholdPercent: 50}
	doc.ApplyTo(target)

	assert.Equal(t, 1000.0, target.AdvertisedSpeedMbps)
	assert.Equal(t, 70, target.ThresholdPercent)
	assert.Equal(t, "Comtrast", target.ISPName)
	assert.Equal(t, "pat", target.FCCUsername)
	assert.Equal(t, 700.0, target.ThresholdSpeedMbps())
}

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phelix001/ISPFCCComplainer/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleAt(ts time.Time, download float64) *model.SpeedTest {
	return &model.SpeedTest{
		Timestamp:    ts,
		DownloadMbps: download,
		UploadMbps:   41.5,
		PingMs:       11.2,
		Server:       "Test Server (Springfield)",
	}
}

func TestSaveSpeedTestAssignsMonotonicIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	var last int64
	for i := 0; i < 3; i++ {
		id, err := s.SaveSpeedTest(ctx, sampleAt(now, 500))
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestSpeedTestRoundTripKeepsPrecision(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := sampleAt(time.Date(2026, 8, 30, 14, 30, 5, 0, time.Local), 683.333333)
	id, err := s.SaveSpeedTest(ctx, in)
	require.NoError(t, err)

	out, err := s.SpeedTestByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 683.333333, out.DownloadMbps)
	assert.Equal(t, 41.5, out.UploadMbps)
	assert.Equal(t, 11.2, out.PingMs)
	assert.True(t, out.Timestamp.Equal(in.Timestamp))
}

func TestSpeedTestByIDMissing(t *testing.T) {
	s := openTestStore(t)
	out, err := s.SpeedTestByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestSpeedTestsForDateLocalCalendarDay(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.Local)

	_, err := s.SaveSpeedTest(ctx, sampleAt(day.Add(-time.Minute), 100)) // 23:59 previous day
	require.NoError(t, err)
	_, err = s.SaveSpeedTest(ctx, sampleAt(day.Add(14*time.Hour), 300))
	require.NoError(t, err)
	_, err = s.SaveSpeedTest(ctx, sampleAt(day.Add(time.Minute), 200))
	require.NoError(t, err)
	_, err = s.SaveSpeedTest(ctx, sampleAt(day.AddDate(0, 0, 1), 400)) // midnight next day
	require.NoError(t, err)

	tests, err := s.SpeedTestsForDate(ctx, day)
	require.NoError(t, err)
	require.Len(t, tests, 2)
	// Ascending by timestamp.
	assert.Equal(t, 200.0, tests[0].DownloadMbps)
	assert.Equal(t, 300.0, tests[1].DownloadMbps)
}

func TestRecentSpeedTestsDescending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 8, 0, 0, 0, time.Local)

	for i := 0; i < 5; i++ {
		_, err := s.SaveSpeedTest(ctx, sampleAt(base.Add(time.Duration(i)*time.Hour), float64(100+i)))
		require.NoError(t, err)
	}

	tests, err := s.RecentSpeedTests(ctx, 3)
	require.NoError(t, err)
	require.Len(t, tests, 3)
	assert.Equal(t, 104.0, tests[0].DownloadMbps)
	assert.Equal(t, 103.0, tests[1].DownloadMbps)
	assert.Equal(t, 102.0, tests[2].DownloadMbps)
}

func TestSaveComplaintDoesNotValidateReference(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveComplaint(ctx, &model.Complaint{
		Timestamp:   time.Now(),
		SpeedTestID: 12345, // no such speed test
		Text:        "complaint body",
		Status:      model.StatusFailed,
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
}

func TestLatestComplaintForDateFiltersStatuses(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)

	_, err := s.SaveComplaint(ctx, &model.Complaint{
		Timestamp: day, SpeedTestID: 1, Text: "dry", Status: model.StatusDryRun,
	})
	require.NoError(t, err)

	// A dry run must not satisfy the successful-filing guard.
	got, err := s.LatestComplaintForDate(ctx, day, model.FiledStatuses())
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.SaveComplaint(ctx, &model.Complaint{
		Timestamp: day.Add(time.Hour), SpeedTestID: 1, Text: "real", Status: model.StatusDailyFiled,
	})
	require.NoError(t, err)

	got, err = s.LatestComplaintForDate(ctx, day, model.FiledStatuses())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusDailyFiled, got.Status)
	assert.Equal(t, "real", got.Text)

	// A different day finds nothing.
	got, err = s.LatestComplaintForDate(ctx, day.AddDate(0, 0, 1), model.FiledStatuses())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLatestComplaintForDatePicksNewest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)

	_, err := s.SaveComplaint(ctx, &model.Complaint{
		Timestamp: day, SpeedTestID: 1, Text: "first", Status: model.StatusFiled,
	})
	require.NoError(t, err)
	_, err = s.SaveComplaint(ctx, &model.Complaint{
		Timestamp: day.Add(2 * time.Hour), SpeedTestID: 2, Text: "second", Status: model.StatusDailyFiled,
	})
	require.NoError(t, err)

	got, err := s.LatestComplaintForDate(ctx, day, model.FiledStatuses())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Text)
}

func TestRecentComplaintsDescending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 8, 0, 0, 0, time.Local)

	for i, st := range []model.ComplaintStatus{model.StatusDryRun, model.StatusFailed, model.StatusFiled} {
		_, err := s.SaveComplaint(ctx, &model.Complaint{
			Timestamp: base.Add(time.Duration(i) * time.Hour), SpeedTestID: int64(i), Text: "t", Status: st,
		})
		require.NoError(t, err)
	}

	complaints, err := s.RecentComplaints(ctx, 2)
	require.NoError(t, err)
	require.Len(t, complaints, 2)
	assert.Equal(t, model.StatusFiled, complaints[0].Status)
	assert.Equal(t, model.StatusFailed, complaints[1].Status)
}

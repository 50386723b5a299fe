package complainer

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phelix001/ISPFCCComplainer/config"
	"github.com/phelix001/ISPFCCComplainer/export"
	"github.com/phelix001/ISPFCCComplainer/filer"
	"github.com/phelix001/ISPFCCComplainer/model"
	"github.com/phelix001/ISPFCCComplainer/storage"
)

type stubRunner struct {
	result *model.SpeedTest
	err    error
}

func (r *stubRunner) Run(ctx context.Context) (*model.SpeedTest, error) {
	if r.err != nil {
		return nil, r.err
	}
	cp := *r.result
	return &cp, nil
}

type stubFiler struct {
	calls int
	last  *filer.Submission
	err   error
}

func (f *stubFiler) File(ctx context.Context, sub *filer.Submission) error {
	f.calls++
	f.last = sub
	return f.err
}

type stubNotifier struct {
	subjects []string
	err      error
}

func (n *stubNotifier) Send(ctx context.Context, subject, body string) error {
	n.subjects = append(n.subjects, subject)
	return n.err
}

func testConfig() *config.Config {
	return &config.Config{
		AdvertisedSpeedMbps: 1000,
		ThresholdPercent:    70,
		ISPName:             "Comtrast",
		ISPAccountNumber:    "8675309",
		ServiceAddress:      "123 Main St, Springfield",
		PhoneNumber:         "555-0100",
		Email:               "user@example.com",
		FirstName:           "Pat",
		LastName:            "Doe",
	}
}

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var out bytes.Buffer
	return &App{
		Config: testConfig(),
		Store:  store,
		Out:    &out,
	}, &out
}

func sample(ts time.Time, download float64) *model.SpeedTest {
	return &model.SpeedTest{
		Timestamp:    ts,
		DownloadMbps: download,
		UploadMbps:   35.5,
		PingMs:       12.3,
		Server:       "Test Server",
	}
}

func complaints(t *testing.T, app *App) []model.Complaint {
	t.Helper()
	cs, err := app.Store.RecentComplaints(context.Background(), 100)
	require.NoError(t, err)
	return cs
}

func TestRunOnceAboveThreshold(t *testing.T) {
	app, _ := newTestApp(t)
	app.Runner = &stubRunner{result: sample(time.Now(), 850)}

	outcome := app.RunOnce(context.Background(), false)
	assert.Equal(t, OutcomeNoAction, outcome)

	tests, err := app.Store.RecentSpeedTests(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, tests, 1)
	assert.Equal(t, 850.0, tests[0].DownloadMbps)
	assert.Empty(t, complaints(t, app))
}

func TestRunOnceMeasurementErrorPersistsNothing(t *testing.T) {
	app, _ := newTestApp(t)
	app.Runner = &stubRunner{err: errors.New("tool exploded")}

	outcome := app.RunOnce(context.Background(), false)
	assert.Equal(t, OutcomeError, outcome)

	tests, err := app.Store.RecentSpeedTests(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, tests)
	assert.Empty(t, complaints(t, app))
}

func TestRunOnceDryRunBelowThreshold(t *testing.T) {
	app, out := newTestApp(t)
	app.Runner = &stubRunner{result: sample(time.Now(), 420)}
	f := &stubFiler{}
	app.Filer = f

	outcome := app.RunOnce(context.Background(), true)
	assert.Equal(t, OutcomeFiled, outcome)
	assert.Zero(t, f.calls, "dry run must not touch the filer")

	assert.Contains(t, out.String(), "Complaint text that would be filed")
	assert.Contains(t, out.String(), "Comtrast")

	cs := complaints(t, app)
	require.Len(t, cs, 1)
	assert.Equal(t, model.StatusDryRun, cs[0].Status)
}

func TestRunOnceFilesComplaint(t *testing.T) {
	app, _ := newTestApp(t)
	app.Runner = &stubRunner{result: sample(time.Now(), 420)}
	f := &stubFiler{}
	app.Filer = f

	outcome := app.RunOnce(context.Background(), false)
	assert.Equal(t, OutcomeFiled, outcome)
	assert.Equal(t, 1, f.calls)
	require.NotNil(t, f.last)
	assert.Equal(t, "Comtrast", f.last.ISPName)
	assert.LessOrEqual(t, len([]rune(f.last.Text)), filer.FormTextLimit)

	cs := complaints(t, app)
	require.Len(t, cs, 1)
	assert.Equal(t, model.StatusFiled, cs[0].Status)
	assert.NotZero(t, cs[0].SpeedTestID)
}

func TestRunOnceFilerFailureRecorded(t *testing.T) {
	app, _ := newTestApp(t)
	app.Runner = &stubRunner{result: sample(time.Now(), 420)}
	app.Filer = &stubFiler{err: errors.New("portal down")}
	n := &stubNotifier{}
	app.Notifier = n

	outcome := app.RunOnce(context.Background(), false)
	assert.Equal(t, OutcomeError, outcome)

	cs := complaints(t, app)
	require.Len(t, cs, 1)
	assert.Equal(t, model.StatusFailed, cs[0].Status)

	require.Len(t, n.subjects, 1)
	assert.Contains(t, n.subjects[0], "FAILED")
}

func TestRunOnceEmailOnlyDelivery(t *testing.T) {
	app, _ := newTestApp(t)
	app.Runner = &stubRunner{result: sample(time.Now(), 420)}
	n := &stubNotifier{}
	app.Notifier = n

	outcome := app.RunOnce(context.Background(), false)
	assert.Equal(t, OutcomeFiled, outcome)

	cs := complaints(t, app)
	require.Len(t, cs, 1)
	assert.Equal(t, model.StatusEmailed, cs[0].Status)
	require.Len(t, n.subjects, 1)
	assert.Contains(t, n.subjects[0], "EMAIL ONLY")
}

func TestRunOnceNoFilerNoEmail(t *testing.T) {
	app, _ := newTestApp(t)
	app.Runner = &stubRunner{result: sample(time.Now(), 420)}

	outcome := app.RunOnce(context.Background(), false)
	assert.Equal(t, OutcomeError, outcome)

	cs := complaints(t, app)
	require.Len(t, cs, 1)
	assert.Equal(t, model.StatusFailed, cs[0].Status)
}

func seedDay(t *testing.T, app *App, day time.Time, downloads ...float64) {
	t.Helper()
	for i, d := range downloads {
		ts := day.Add(time.Duration(i) * time.Hour)
		_, err := app.Store.SaveSpeedTest(context.Background(), sample(ts, d))
		require.NoError(t, err)
	}
}

func yesterdayMorning() time.Time {
	y := time.Now().AddDate(0, 0, -1)
	return time.Date(y.Year(), y.Month(), y.Day(), 8, 0, 0, 0, time.Local)
}

func TestRunDailyEmptyDay(t *testing.T) {
	app, _ := newTestApp(t)
	f := &stubFiler{}
	app.Filer = f

	outcome := app.RunDaily(context.Background(), DailyOptions{})
	assert.Equal(t, OutcomeNoAction, outcome)
	assert.Zero(t, f.calls)
	assert.Empty(t, complaints(t, app))
}

func TestRunDailyDryRun(t *testing.T) {
	app, out := newTestApp(t)
	seedDay(t, app, yesterdayMorning(), 650, 720, 680)
	f := &stubFiler{}
	app.Filer = f

	outcome := app.RunDaily(context.Background(), DailyOptions{DryRun: true})
	assert.Equal(t, OutcomeFiled, outcome)
	assert.Zero(t, f.calls, "dry run must not touch the filer")
	assert.Contains(t, out.String(), "DRY RUN")

	cs := complaints(t, app)
	require.Len(t, cs, 1)
	assert.Equal(t, model.StatusDailyDryRun, cs[0].Status)
}

func TestRunDailyFilesOnce(t *testing.T) {
	app, _ := newTestApp(t)
	seedDay(t, app, yesterdayMorning(), 650, 720, 680)
	f := &stubFiler{}
	app.Filer = f

	outcome := app.RunDaily(context.Background(), DailyOptions{})
	assert.Equal(t, OutcomeFiled, outcome)
	assert.Equal(t, 1, f.calls)

	cs := complaints(t, app)
	require.Len(t, cs, 1)
	assert.Equal(t, model.StatusDailyFiled, cs[0].Status)

	// The second run the same day finds the filed record and stops.
	outcome = app.RunDaily(context.Background(), DailyOptions{})
	assert.Equal(t, OutcomeNoAction, outcome)
	assert.Equal(t, 1, f.calls)
	assert.Len(t, complaints(t, app), 1)
}

func TestRunDailyDryRunDoesNotBlockRealFiling(t *testing.T) {
	app, _ := newTestApp(t)
	seedDay(t, app, yesterdayMorning(), 650)
	f := &stubFiler{}
	app.Filer = f

	assert.Equal(t, OutcomeFiled, app.RunDaily(context.Background(), DailyOptions{DryRun: true}))
	assert.Equal(t, OutcomeFiled, app.RunDaily(context.Background(), DailyOptions{}))
	assert.Equal(t, 1, f.calls)
}

func TestRunDailyNoFailures(t *testing.T) {
	app, _ := newTestApp(t)
	seedDay(t, app, yesterdayMorning(), 850, 920)
	f := &stubFiler{}
	app.Filer = f
	n := &stubNotifier{}
	app.Notifier = n

	outcome := app.RunDaily(context.Background(), DailyOptions{})
	assert.Equal(t, OutcomeNoAction, outcome)
	assert.Zero(t, f.calls)
	assert.Empty(t, complaints(t, app))

	// The all-clear still goes out by email.
	require.Len(t, n.subjects, 1)
	assert.Contains(t, n.subjects[0], "OK")
}

func TestRunDailyForceFilesWithoutFailures(t *testing.T) {
	app, _ := newTestApp(t)
	seedDay(t, app, yesterdayMorning(), 850, 920)
	f := &stubFiler{}
	app.Filer = f

	outcome := app.RunDaily(context.Background(), DailyOptions{Force: true})
	assert.Equal(t, OutcomeFiled, outcome)
	assert.Equal(t, 1, f.calls)
}

func TestRunDailyFromDocument(t *testing.T) {
	app, _ := newTestApp(t)
	f := &stubFiler{}
	app.Filer = f

	date := time.Now().AddDate(0, 0, -1)
	doc := export.Build(testConfig(), date, []model.SpeedTest{
		*sample(yesterdayMorning(), 420),
	})

	// The local store stays empty; the document supplies the tests.
	outcome := app.RunDaily(context.Background(), DailyOptions{Date: date, Document: doc})
	assert.Equal(t, OutcomeFiled, outcome)
	assert.Equal(t, 1, f.calls)
	assert.Contains(t, f.last.Text, "420.00")
}

func TestDailyOptionsReportDate(t *testing.T) {
	yesterday := time.Now().AddDate(0, 0, -1)
	assert.Equal(t, yesterday.Format("2006-01-02"), DailyOptions{}.ReportDate().Format("2006-01-02"))

	fixed := time.Date(2025, 3, 14, 0, 0, 0, 0, time.Local)
	assert.Equal(t, fixed, DailyOptions{Date: fixed}.ReportDate())
}

func TestOutcomeExitCodes(t *testing.T) {
	assert.Equal(t, 0, OutcomeNoAction.ExitCode())
	assert.Equal(t, 1, OutcomeError.ExitCode())
	assert.Equal(t, 2, OutcomeFiled.ExitCode())
}

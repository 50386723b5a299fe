package complainer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/phelix001/ISPFCCComplainer/export"
	"github.com/phelix001/ISPFCCComplainer/model"
	"github.com/phelix001/ISPFCCComplainer/report"
)

// DailyOptions control the daily aggregate flow.
type DailyOptions struct {
	DryRun bool
	// Force files even when no test failed the threshold.
	Force bool
	// Date is the report date; zero means yesterday.
	Date time.Time
	// Document, when set, supplies the day's tests and identity settings
	// instead of the local store (filing-host mode).
	Document *export.Document
}

// ReportDate resolves the date the flow reports on.
func (o DailyOptions) ReportDate() time.Time {
	if !o.Date.IsZero() {
		return o.Date
	}
	return time.Now().AddDate(0, 0, -1)
}

// RunDaily aggregates one day of speed tests and files a single complaint
// when any of them failed the threshold. At most one successful filing per
// calendar day: the store is consulted before any new attempt.
func (a *App) RunDaily(ctx context.Context, opts DailyOptions) Outcome {
	cfg := a.Config
	reportDate := opts.ReportDate()

	logrus.WithFields(logrus.Fields{
		"report_date":    reportDate.Format("2006-01-02"),
		"threshold_mbps": cfg.ThresholdSpeedMbps(),
	}).Info("daily complaint run")

	if !opts.DryRun {
		prior, err := a.Store.LatestComplaintForDate(ctx, time.Now(), model.FiledStatuses())
		if err != nil {
			logrus.WithError(err).Error("check for prior filing")
			return OutcomeError
		}
		if prior != nil {
			logrus.WithField("complaint_id", prior.ID).Info("a complaint was already filed today, skipping")
			return OutcomeNoAction
		}
	}

	tests, err := a.dailyTests(ctx, opts, reportDate)
	if err != nil {
		logrus.WithError(err).Error("load day's speed tests")
		return OutcomeError
	}
	if len(tests) == 0 {
		// Empty day means nothing to report; the aggregator is never
		// invoked on empty input.
		logrus.Infof("no speed tests recorded for %s", reportDate.Format("2006-01-02"))
		return OutcomeNoAction
	}

	agg := report.Compute(cfg, tests)
	logrus.WithFields(logrus.Fields{
		"tests":        agg.Total,
		"failed":       len(agg.Failed),
		"failure_rate": fmt.Sprintf("%.1f", agg.FailureRate),
	}).Info("day aggregated")

	if len(agg.Failed) == 0 && !opts.Force {
		logrus.Info("no failed tests, no complaint needed")
		a.sendDailySummary(ctx, reportDate, agg, false)
		return OutcomeNoAction
	}

	text := report.DailyComplaintText(cfg, agg, tests, reportDate)
	worst := report.WorstSample(tests)

	if opts.DryRun {
		fmt.Fprintln(a.out(), "=== DRY RUN - Complaint would be filed with this text: ===")
		fmt.Fprintln(a.out(), text)
		fmt.Fprintln(a.out(), "=== END DRY RUN ===")
		a.recordComplaint(ctx, worst.ID, text, model.StatusDailyDryRun)
		a.notifyComplaint(ctx, text, model.StatusDailyDryRun, reportDate)
		return OutcomeFiled
	}

	outcome := a.fileComplaint(ctx, worst.ID, text, reportDate, complaintStatuses{
		filed:  model.StatusDailyFiled,
		failed: model.StatusDailyFailed,
	})
	a.sendDailySummary(ctx, reportDate, agg, outcome == OutcomeFiled)
	return outcome
}

// dailyTests loads the day's tests from the export document when one was
// supplied, otherwise from the store.
func (a *App) dailyTests(ctx context.Context, opts DailyOptions, reportDate time.Time) ([]model.SpeedTest, error) {
	if opts.Document != nil {
		return opts.Document.SpeedTests()
	}
	return a.Store.SpeedTestsForDate(ctx, reportDate)
}

func (a *App) sendDailySummary(ctx context.Context, date time.Time, agg report.Aggregate, complaintFiled bool) {
	if a.Notifier == nil {
		return
	}
	subject, body := report.DailySummaryEmail(a.Config, date, agg, complaintFiled)
	if err := a.Notifier.Send(ctx, subject, body); err != nil {
		logrus.WithError(err).Warn("daily summary email not delivered")
	}
}

package complainer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/phelix001/ISPFCCComplainer/filer"
	"github.com/phelix001/ISPFCCComplainer/model"
	"github.com/phelix001/ISPFCCComplainer/report"
)

// RunOnce runs a single speed test, persists it, and files a complaint when
// the download falls below the threshold.
func (a *App) RunOnce(ctx context.Context, dryRun bool) Outcome {
	cfg := a.Config

	logrus.WithFields(logrus.Fields{
		"advertised_mbps": cfg.AdvertisedSpeedMbps,
		"threshold_mbps":  cfg.ThresholdSpeedMbps(),
	}).Info("running speed test")

	result, err := a.Runner.Run(ctx)
	if err != nil {
		// No sample is persisted for a failed measurement.
		logrus.WithError(err).Error("speed test failed")
		return OutcomeError
	}

	testID, err := a.Store.SaveSpeedTest(ctx, result)
	if err != nil {
		logrus.WithError(err).Error("save speed test")
		return OutcomeError
	}

	percent := report.PercentOfAdvertised(cfg, result.DownloadMbps)
	logrus.WithFields(logrus.Fields{
		"download_mbps": result.DownloadMbps,
		"upload_mbps":   result.UploadMbps,
		"ping_ms":       result.PingMs,
		"server":        result.Server,
		"percent":       fmt.Sprintf("%.1f", percent),
	}).Info("speed test complete")

	if report.Passes(cfg, *result) {
		logrus.Infof("speed is above the %d%% threshold, no action needed", cfg.ThresholdPercent)
		return OutcomeNoAction
	}

	logrus.Warnf("speed is below the %d%% threshold", cfg.ThresholdPercent)
	text := report.ComplaintText(cfg, *result)
	now := time.Now()

	if dryRun {
		fmt.Fprintln(a.out(), "--- Complaint text that would be filed: ---")
		fmt.Fprintln(a.out(), text)
		fmt.Fprintln(a.out(), "--- End complaint text ---")
		a.recordComplaint(ctx, testID, text, model.StatusDryRun)
		a.notifyComplaint(ctx, text, model.StatusDryRun, now)
		return OutcomeFiled
	}

	return a.fileComplaint(ctx, testID, text, now, complaintStatuses{
		filed:  model.StatusFiled,
		failed: model.StatusFailed,
	})
}

type complaintStatuses struct {
	filed  model.ComplaintStatus
	failed model.ComplaintStatus
}

// fileComplaint attempts a real filing and records the attempt regardless of
// outcome. When no filer command is configured but email is, the complaint is
// delivered by email instead and recorded as emailed.
func (a *App) fileComplaint(ctx context.Context, speedTestID int64, text string, date time.Time, statuses complaintStatuses) Outcome {
	if a.Filer == nil {
		if a.Notifier != nil {
			subject, body := report.ComplaintNotification(a.Config, text, model.StatusEmailed, date)
			if err := a.Notifier.Send(ctx, subject, body); err != nil {
				logrus.WithError(err).Error("no filer configured and email delivery failed")
				a.recordComplaint(ctx, speedTestID, text, statuses.failed)
				return OutcomeError
			}
			logrus.Info("no filer configured, complaint delivered by email")
			a.recordComplaint(ctx, speedTestID, text, model.StatusEmailed)
			return OutcomeFiled
		}
		logrus.Error("no filer command configured (set FILER_COMMAND) and email notification disabled")
		a.recordComplaint(ctx, speedTestID, text, statuses.failed)
		return OutcomeError
	}

	logrus.Info("filing FCC complaint")
	err := a.Filer.File(ctx, filer.NewSubmission(a.Config, text, date))
	if err != nil {
		logrus.WithError(err).Error("failed to file FCC complaint")
		a.recordComplaint(ctx, speedTestID, text, statuses.failed)
		a.notifyComplaint(ctx, text, statuses.failed, date)
		return OutcomeError
	}

	logrus.Info("FCC complaint filed")
	a.recordComplaint(ctx, speedTestID, text, statuses.filed)
	a.notifyComplaint(ctx, text, statuses.filed, date)
	return OutcomeFiled
}

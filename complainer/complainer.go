// Package complainer orchestrates the run-once and daily complaint flows:
// sample, persist, aggregate, render, file, record. It owns the exit code
// contract of the CLI.
package complainer

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/phelix001/ISPFCCComplainer/config"
	"github.com/phelix001/ISPFCCComplainer/filer"
	"github.com/phelix001/ISPFCCComplainer/model"
	"github.com/phelix001/ISPFCCComplainer/notify"
	"github.com/phelix001/ISPFCCComplainer/report"
	"github.com/phelix001/ISPFCCComplainer/speedtest"
	"github.com/phelix001/ISPFCCComplainer/storage"
)

// Outcome is the result of a flow, mapped one-to-one onto process exit
// codes: 0 no action needed, 1 error, 2 a complaint was filed (or would be,
// in dry-run mode).
type Outcome int

const (
	OutcomeNoAction Outcome = 0
	OutcomeError    Outcome = 1
	OutcomeFiled    Outcome = 2
)

// ExitCode converts the outcome to the process exit code.
func (o Outcome) ExitCode() int {
	return int(o)
}

// App wires the components a flow needs. Notifier may be nil (notification
// not configured); Filer may be nil (no external filer command).
type App struct {
	Config   *config.Config
	Store    *storage.Store
	Runner   speedtest.Runner
	Filer    filer.Filer
	Notifier notify.Notifier

	// Out receives user-facing output such as dry-run complaint text.
	Out io.Writer
}

func (a *App) out() io.Writer {
	if a.Out != nil {
		return a.Out
	}
	return os.Stdout
}

// notifyComplaint sends a filing notification when configured. Delivery is
// best-effort: failures are logged as warnings and never change the outcome.
func (a *App) notifyComplaint(ctx context.Context, text string, status model.ComplaintStatus, date time.Time) {
	if a.Notifier == nil {
		return
	}
	subject, body := report.ComplaintNotification(a.Config, text, status, date)
	if err := a.Notifier.Send(ctx, subject, body); err != nil {
		logrus.WithError(err).Warn("complaint notification not delivered")
	}
}

// recordComplaint appends a complaint record once the outcome is known.
func (a *App) recordComplaint(ctx context.Context, speedTestID int64, text string, status model.ComplaintStatus) {
	c := &model.Complaint{
		Timestamp:   time.Now(),
		SpeedTestID: speedTestID,
		Text:        text,
		Status:      status,
	}
	if _, err := a.Store.SaveComplaint(ctx, c); err != nil {
		logrus.WithError(err).Error("record complaint")
	}
}

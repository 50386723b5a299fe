// Package filer is the boundary between the reporting core and the FCC
// complaint form. Form interaction lives behind the Filer interface so the
// aggregation and rendering logic stays testable without a browser.
package filer

import (
	"context"
	"fmt"
	"time"

	"github.com/phelix001/ISPFCCComplainer/config"
)

// FormTextLimit is the character cap of the complaint description field on
// the FCC form. Truncation to this limit is the filer's responsibility; the
// text generator never truncates.
const FormTextLimit = 2900

// SubmissionError reports a failed filing attempt with a human-readable
// cause: login failure, timeout, validation error, challenge not solved.
type SubmissionError struct {
	Reason string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("complaint submission failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("complaint submission failed: %s", e.Reason)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Submission carries the rendered complaint text plus the structured fields
// the form needs.
type Submission struct {
	Date           string `json:"date"`
	Text           string `json:"complaint_text"`
	ISPName        string `json:"isp_name"`
	AccountNumber  string `json:"isp_account_number"`
	ServiceAddress string `json:"service_address"`
	PhoneNumber    string `json:"phone_number"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	FCCUsername    string `json:"fcc_username"`
	FCCPassword    string `json:"fcc_password"`
}

// NewSubmission builds a submission from the config, truncating the text to
// the form limit.
func NewSubmission(cfg *config.Config, text string, date time.Time) *Submission {
	return &Submission{
		Date:           date.Format("2006-01-02"),
		Text:           TruncateText(text, FormTextLimit),
		ISPName:        cfg.ISPName,
		AccountNumber:  cfg.ISPAccountNumber,
		ServiceAddress: cfg.ServiceAddress,
		PhoneNumber:    cfg.PhoneNumber,
		Email:          cfg.Email,
		FirstName:      cfg.FirstName,
		LastName:       cfg.LastName,
		FCCUsername:    cfg.FCCUsername,
		FCCPassword:    cfg.FCCPassword,
	}
}

// Filer submits a complaint into the external form. Implementations own all
// form I/O and convert every failure into a SubmissionError.
type Filer interface {
	File(ctx context.Context, sub *Submission) error
}

// TruncateText caps s at limit characters, cutting on a rune boundary. When
// possible the cut lands on the last line break inside the limit so the text
// does not end mid-sentence.
func TruncateText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := runes[:limit]
	for i := len(cut) - 1; i >= limit-200 && i > 0; i-- {
		if cut[i] == '\n' {
			return string(cut[:i])
		}
	}
	return string(cut)
}

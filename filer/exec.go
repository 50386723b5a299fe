package filer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ExecFiler hands the submission to an external command (typically a browser
// automation script) as JSON on stdin. The command's stdout and stderr are
// passed through so interactive challenge solving still works. Exit 0 means
// the complaint was filed.
type ExecFiler struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// NewExecFiler parses a command line into a filer. Returns nil when the
// command is empty; callers treat a nil filer as "filing unavailable".
func NewExecFiler(command string, timeout time.Duration) *ExecFiler {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return &ExecFiler{
		Command: fields[0],
		Args:    fields[1:],
		Timeout: timeout,
	}
}

func (f *ExecFiler) File(ctx context.Context, sub *Submission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return &SubmissionError{Reason: "encode submission", Err: err}
	}

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	logrus.WithField("command", f.Command).Info("running external filer")

	cmd := exec.CommandContext(ctx, f.Command, f.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Run()
	switch {
	case err == nil:
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &SubmissionError{Reason: "filing timed out"}
	case errors.Is(ctx.Err(), context.Canceled):
		return &SubmissionError{Reason: "filing interrupted"}
	default:
		return &SubmissionError{Reason: "filer command failed", Err: err}
	}
}

package speedtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/phelix001/ISPFCCComplainer/model"
)

// CLIRunner shells out to speedtest-cli (or a compatible tool) in JSON mode.
type CLIRunner struct {
	Command string
}

// NewCLIRunner returns a runner invoking the given command with --json.
func NewCLIRunner(command string) *CLIRunner {
	if command == "" {
		command = "speedtest-cli"
	}
	return &CLIRunner{Command: command}
}

func (r *CLIRunner) Run(ctx context.Context) (*model.SpeedTest, error) {
	ctx, cancel := context.WithTimeout(ctx, RunTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Command, "--json")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &MeasurementError{Reason: "timed out after 2 minutes"}
	}
	if err != nil {
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = "tool exited with an error"
		}
		return nil, &MeasurementError{Reason: reason, Err: err}
	}

	t, err := parseCLIOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	t.Timestamp = time.Now()
	return t, nil
}

// cliOutput mirrors the speedtest-cli JSON document. Pointers distinguish a
// zero value from an omitted field.
type cliOutput struct {
	Download *float64 `json:"download"`
	Upload   *float64 `json:"upload"`
	Ping     *float64 `json:"ping"`
	Server   *struct {
		Sponsor string `json:"sponsor"`
		Name    string `json:"name"`
	} `json:"server"`
}

// parseCLIOutput converts the tool's bits-per-second figures to Mbps and
// rounds to two decimal places.
func parseCLIOutput(out []byte) (*model.SpeedTest, error) {
	var doc cliOutput
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, &MeasurementError{Reason: "unparsable output", Err: err}
	}

	switch {
	case doc.Download == nil:
		return nil, &MeasurementError{Reason: "output missing download"}
	case doc.Upload == nil:
		return nil, &MeasurementError{Reason: "output missing upload"}
	case doc.Ping == nil:
		return nil, &MeasurementError{Reason: "output missing ping"}
	case doc.Server == nil:
		return nil, &MeasurementError{Reason: "output missing server"}
	}

	return &model.SpeedTest{
		DownloadMbps: round2(*doc.Download / 1e6),
		UploadMbps:   round2(*doc.Upload / 1e6),
		PingMs:       round2(*doc.Ping),
		Server:       doc.Server.Sponsor + " (" + doc.Server.Name + ")",
	}, nil
}

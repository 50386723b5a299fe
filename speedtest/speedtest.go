// Package speedtest runs a single speed measurement and normalizes it into a
// model.SpeedTest. Two backends are available: the default shells out to
// speedtest-cli, the native one uses the speedtest-go library.
package speedtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/phelix001/ISPFCCComplainer/model"
)

// RunTimeout bounds a single measurement.
const RunTimeout = 120 * time.Second

// Runner executes one speed test.
type Runner interface {
	Run(ctx context.Context) (*model.SpeedTest, error)
}

// MeasurementError reports a failed measurement: tool exit failure, timeout,
// unparsable output, or a missing field. No sample is persisted for a failed
// run.
type MeasurementError struct {
	Reason string
	Err    error
}

func (e *MeasurementError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("speed test failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("speed test failed: %s", e.Reason)
}

func (e *MeasurementError) Unwrap() error {
	return e.Err
}

// round2 rounds to two decimal places. Rounding happens once at capture time
// so repeated reports of the same sample are bit-for-bit identical.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package speedtest

import (
	"context"
	"fmt"
	"time"

	st "github.com/showwin/speedtest-go/speedtest"

	"github.com/phelix001/ISPFCCComplainer/model"
)

// NativeRunner measures with the speedtest-go library instead of an external
// tool. Useful on hosts without speedtest-cli installed.
type NativeRunner struct {
	client *st.Speedtest
}

func NewNativeRunner() *NativeRunner {
	return &NativeRunner{client: st.New()}
}

func (r *NativeRunner) Run(ctx context.Context) (*model.SpeedTest, error) {
	ctx, cancel := context.WithTimeout(ctx, RunTimeout)
	defer cancel()

	servers, err := r.client.FetchServerListContext(ctx)
	if err != nil {
		return nil, &MeasurementError{Reason: "fetch server list", Err: err}
	}
	if len(servers) == 0 {
		return nil, &MeasurementError{Reason: "no servers available"}
	}
	// Closest server first.
	target := servers[0]

	if err := target.PingTestContext(ctx, nil); err != nil {
		return nil, &MeasurementError{Reason: "ping test", Err: err}
	}
	if err := target.DownloadTestContext(ctx); err != nil {
		return nil, &MeasurementError{Reason: "download test", Err: err}
	}
	if err := target.UploadTestContext(ctx); err != nil {
		return nil, &MeasurementError{Reason: "upload test", Err: err}
	}

	return &model.SpeedTest{
		Timestamp:    time.Now(),
		DownloadMbps: round2(target.DLSpeed.Mbps()),
		UploadMbps:   round2(target.ULSpeed.Mbps()),
		PingMs:       round2(target.Latency.Seconds() * 1000),
		Server:       fmt.Sprintf("%s (%s)", target.Sponsor, target.Name),
	}, nil
}

package model

import (
	"time"
)

// SpeedTest is a single speed test measurement. The ID is assigned by the
// store on save; records are never mutated afterwards.
type SpeedTest struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	DownloadMbps float64   `json:"download_mbps"`
	UploadMbps   float64   `json:"upload_mbps"`
	PingMs       float64   `json:"ping_ms"`
	Server       string    `json:"server"`
}

// ComplaintStatus is the outcome of a complaint filing attempt.
type ComplaintStatus string

const (
	StatusDryRun      ComplaintStatus = "dry_run"
	StatusFiled       ComplaintStatus = "filed"
	StatusFailed      ComplaintStatus = "failed"
	StatusEmailed     ComplaintStatus = "emailed"
	StatusDailyDryRun ComplaintStatus = "daily_dry_run"
	StatusDailyFiled  ComplaintStatus = "daily_filed"
	StatusDailyFailed ComplaintStatus = "daily_failed"
)

// FiledStatuses are the statuses that count as a successful filing for the
// once-per-day guard. A dry run or a failure never blocks a later real filing.
func FiledStatuses() []ComplaintStatus {
	return []ComplaintStatus{StatusFiled, StatusDailyFiled}
}

// Complaint is one filing attempt, recorded exactly once per attempt.
// The complaints table is an append-only audit trail: records are never
// updated or deleted, so repeated daily runs cannot overwrite history.
type Complaint struct {
	ID          int64           `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	SpeedTestID int64           `json:"speed_test_id"`
	Text        string          `json:"complaint_text"`
	Status      ComplaintStatus `json:"status"`
}

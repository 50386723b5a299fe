// Package export builds and parses the JSON document used to move a day's
// speed test data from the capture host to the host that files the
// complaint.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/phelix001/ISPFCCComplainer/config"
	"github.com/phelix001/ISPFCCComplainer/model"
)

const dateLayout = "2006-01-02"

// Test is one speed test in the interchange document.
type Test struct {
	Timestamp    string  `json:"timestamp"`
	DownloadMbps float64 `json:"download_mbps"`
	UploadMbps   float64 `json:"upload_mbps"`
	PingMs       float64 `json:"ping_ms"`
	Server       string  `json:"server"`
}

// Settings is the config slice the filing host needs. The threshold speed is
// included for the reader's convenience but remains derived on this side.
type Settings struct {
	AdvertisedSpeedMbps float64 `json:"advertised_speed_mbps"`
	ThresholdPercent    int     `json:"threshold_percent"`
	ThresholdSpeedMbps  float64 `json:"threshold_speed_mbps"`
	ISPName             string  `json:"isp_name"`
	ISPAccountNumber    string  `json:"isp_account_number"`
	ServiceAddress      string  `json:"service_address"`
	PhoneNumber         string  `json:"phone_number"`
	Email               string  `json:"email"`
	FirstName           string  `json:"first_name"`
	LastName            string  `json:"last_name"`
	FCCUsername         string  `json:"fcc_username"`
	FCCPassword         string  `json:"fcc_password"`
}

// Document is the interchange format: {error, date, tests, config}.
type Document struct {
	Error  *string  `json:"error"`
	Date   string   `json:"date"`
	Tests  []Test   `json:"tests"`
	Config Settings `json:"config"`
}

// Build assembles the document for one day. An empty day exports an empty
// tests array, not an error.
func Build(cfg *config.Config, date time.Time, tests []model.SpeedTest) *Document {
	doc := &Document{
		Date:  date.Format(dateLayout),
		Tests: make([]Test, 0, len(tests)),
		Config: Settings{
			AdvertisedSpeedMbps: cfg.AdvertisedSpeedMbps,
			ThresholdPercent:    cfg.ThresholdPercent,
			ThresholdSpeedMbps:  cfg.ThresholdSpeedMbps(),
			ISPName:             cfg.ISPName,
			ISPAccountNumber:    cfg.ISPAccountNumber,
			ServiceAddress:      cfg.ServiceAddress,
			PhoneNumber:         cfg.PhoneNumber,
			Email:               cfg.Email,
			FirstName:           cfg.FirstName,
			LastName:            cfg.LastName,
			FCCUsername:         cfg.FCCUsername,
			FCCPassword:         cfg.FCCPassword,
		},
	}
	for _, t := range tests {
		doc.Tests = append(doc.Tests, Test{
			Timestamp:    t.Timestamp.Format(time.RFC3339),
			DownloadMbps: t.DownloadMbps,
			UploadMbps:   t.UploadMbps,
			PingMs:       t.PingMs,
			Server:       t.Server,
		})
	}
	return doc
}

// Write encodes the document to w.
func (d *Document) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(d)
}

// Load parses a document produced by a capture host.
func Load(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse export document: %w", err)
	}
	if doc.Error != nil && *doc.Error != "" {
		return nil, fmt.Errorf("export document carries error: %s", *doc.Error)
	}
	if doc.Date == "" {
		return nil, fmt.Errorf("export document missing date")
	}
	return &doc, nil
}

// ReportDate parses the document's date in local time.
func (d *Document) ReportDate() (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, d.Date, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse export date %q: %w", d.Date, err)
	}
	return t, nil
}

// SpeedTests converts the document's tests back into model records.
func (d *Document) SpeedTests() ([]model.SpeedTest, error) {
	out := make([]model.SpeedTest, 0, len(d.Tests))
	for _, t := range d.Tests {
		ts, err := time.Parse(time.RFC3339, t.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse test timestamp %q: %w", t.Timestamp, err)
		}
		out = append(out, model.SpeedTest{
			Timestamp:    ts.In(time.Local),
			DownloadMbps: t.DownloadMbps,
			UploadMbps:   t.UploadMbps,
			PingMs:       t.PingMs,
			Server:       t.Server,
		})
	}
	return out, nil
}

// ApplyTo overlays the document's identity settings onto a config, letting a
// filing host run without its own ISP/contact environment.
func (d *Document) ApplyTo(cfg *config.Config) {
	s := d.Config
	cfg.AdvertisedSpeedMbps = s.AdvertisedSpeedMbps
	cfg.ThresholdPercent = s.ThresholdPercent
	cfg.ISPName = s.ISPName
	cfg.ISPAccountNumber = s.ISPAccountNumber
	cfg.ServiceAddress = s.ServiceAddress
	cfg.PhoneNumber = s.PhoneNumber
	cfg.Email = s.Email
	cfg.FirstName = s.FirstName
	cfg.LastName = s.LastName
	if s.FCCUsername != "" {
		cfg.FCCUsername = s.FCCUsername
	}
	if s.FCCPassword != "" {
		cfg.FCCPassword = s.FCCPassword
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/phelix001/ISPFCCComplainer/api"
	"github.com/phelix001/ISPFCCComplainer/complainer"
	"github.com/phelix001/ISPFCCComplainer/config"
	"github.com/phelix001/ISPFCCComplainer/export"
	"github.com/phelix001/ISPFCCComplainer/filer"
	"github.com/phelix001/ISPFCCComplainer/model"
	"github.com/phelix001/ISPFCCComplainer/notify"
	"github.com/phelix001/ISPFCCComplainer/report"
	"github.com/phelix001/ISPFCCComplainer/scheduler"
	"github.com/phelix001/ISPFCCComplainer/speedtest"
	"github.com/phelix001/ISPFCCComplainer/storage"
)

var (
	envFile    string
	dryRun     bool
	force      bool
	dateStr    string
	inputFile  string
	limit      int
	listen     string
	listenPort int
	appVersion = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "ispfcccomplainer",
	Short: "Test ISP speed and file FCC complaints when below threshold",
	Long: "ISPFCCComplainer runs periodic internet speed tests and files FCC complaints " +
		"when measured throughput falls below a configured fraction of the advertised speed.",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one speed test and file a complaint if it fails the threshold",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, store := mustSetup()
		defer store.Close()

		app := buildApp(cfg, store)
		ctx, cancel := signalContext()
		defer cancel()

		finish(store, app.RunOnce(ctx, dryRun))
	},
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "File one complaint summarizing a full day of speed tests",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, store := mustSetup()
		defer store.Close()

		opts := complainer.DailyOptions{DryRun: dryRun, Force: force}
		if dateStr != "" {
			t, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
			if err != nil {
				logrus.Errorf("invalid date %q, want YYYY-MM-DD", dateStr)
				finish(store, complainer.OutcomeError)
			}
			opts.Date = t
		}
		if inputFile != "" {
			doc, err := loadDocument(inputFile)
			if err != nil {
				logrus.WithError(err).Error("load input document")
				finish(store, complainer.OutcomeError)
			}
			doc.ApplyTo(cfg)
			opts.Document = doc
			if opts.Date.IsZero() {
				if t, err := doc.ReportDate(); err == nil {
					opts.Date = t
				}
			}
		}

		app := buildApp(cfg, store)
		ctx, cancel := signalContext()
		defer cancel()

		finish(store, app.RunDaily(ctx, opts))
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent speed test history",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, store := mustSetup()
		defer store.Close()

		tests, err := store.RecentSpeedTests(context.Background(), limit)
		if err != nil {
			logrus.WithError(err).Error("load history")
			finish(store, complainer.OutcomeError)
		}
		if len(tests) == 0 {
			fmt.Println("No speed test history found.")
			return
		}

		fmt.Printf("Recent Speed Tests (threshold: %.1f Mbps)\n", cfg.ThresholdSpeedMbps())
		fmt.Println(rule(80))
		fmt.Printf("%-20s %-14s %-14s %-10s %s\n", "Timestamp", "Download", "Upload", "Ping", "Status")
		fmt.Println(rule(80))
		for _, t := range tests {
			status := "OK"
			if !report.Passes(cfg, t) {
				status = "LOW"
			}
			fmt.Printf("%-20s %8.2f Mbps %8.2f Mbps %6.1f ms %s\n",
				t.Timestamp.Format("2006-01-02 15:04"),
				t.DownloadMbps, t.UploadMbps, t.PingMs, status)
		}
	},
}

var complaintsCmd = &cobra.Command{
	Use:   "complaints",
	Short: "Show recent complaints",
	Run: func(cmd *cobra.Command, args []string) {
		_, store := mustSetup()
		defer store.Close()

		complaints, err := store.RecentComplaints(context.Background(), limit)
		if err != nil {
			logrus.WithError(err).Error("load complaints")
			finish(store, complainer.OutcomeError)
		}
		if len(complaints) == 0 {
			fmt.Println("No complaints filed yet.")
			return
		}

		fmt.Println("Recent FCC Complaints")
		fmt.Println(rule(60))
		fmt.Printf("%-20s %-15s %s\n", "Timestamp", "Speed Test ID", "Status")
		fmt.Println(rule(60))
		for _, c := range complaints {
			fmt.Printf("%-20s %-15d %s\n",
				c.Timestamp.Format("2006-01-02 15:04"), c.SpeedTestID, c.Status)
		}
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a day's speed test data as JSON for remote filing",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, store := mustSetup()
		defer store.Close()

		date := time.Now().AddDate(0, 0, -1)
		if dateStr != "" {
			t, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
			if err != nil {
				logrus.Errorf("invalid date %q, want YYYY-MM-DD", dateStr)
				finish(store, complainer.OutcomeError)
			}
			date = t
		}

		tests, err := store.SpeedTestsForDate(context.Background(), date)
		if err != nil {
			logrus.WithError(err).Error("load day")
			finish(store, complainer.OutcomeError)
		}
		if err := export.Build(cfg, date, tests).Write(os.Stdout); err != nil {
			logrus.WithError(err).Error("write export")
			finish(store, complainer.OutcomeError)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard server with scheduled sampling",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, store := mustSetup()
		defer store.Close()

		app := buildApp(cfg, store)
		ctx, cancel := signalContext()
		defer cancel()

		server := api.NewServer(cfg, store, func(ctx context.Context) (*model.SpeedTest, error) {
			res, err := app.Runner.Run(ctx)
			if err != nil {
				return nil, err
			}
			if _, err := store.SaveSpeedTest(ctx, res); err != nil {
				return nil, err
			}
			return res, nil
		})

		sched := scheduler.New(
			scheduler.Job{
				Name:     "sample",
				Interval: cfg.SampleIntervalDuration(),
				Run: func(ctx context.Context) error {
					res, err := app.Runner.Run(ctx)
					if err != nil {
						return err
					}
					if _, err := store.SaveSpeedTest(ctx, res); err != nil {
						return err
					}
					server.BroadcastSpeedTest(res)
					return nil
				},
			},
			scheduler.Job{
				Name:      "daily-complaint",
				TimeOfDay: cfg.DailyReportTime,
				Run: func(ctx context.Context) error {
					if app.RunDaily(ctx, complainer.DailyOptions{}) == complainer.OutcomeError {
						return fmt.Errorf("daily complaint run failed")
					}
					return nil
				},
			},
		)
		sched.Start(ctx)

		mux := http.NewServeMux()
		server.Register(mux)

		addr := fmt.Sprintf("%s:%d", listen, listenPort)
		srv := &http.Server{Addr: addr, Handler: mux}

		go func() {
			logrus.Infof("dashboard listening on http://%s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.WithError(err).Fatal("http server")
			}
		}()

		<-ctx.Done()
		logrus.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("server shutdown")
		}
	},
}

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd.Version = appVersion
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the speed test but don't actually file a complaint")

	dailyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Generate the complaint but don't actually file it")
	dailyCmd.Flags().BoolVar(&force, "force", false, "File even when no test failed the threshold")
	dailyCmd.Flags().StringVar(&dateStr, "date", "", "Date to report on (YYYY-MM-DD, default: yesterday)")
	dailyCmd.Flags().StringVar(&inputFile, "input", "", "Read the day's data from an exported JSON document instead of the local store")

	historyCmd.Flags().IntVar(&limit, "limit", 20, "Number of records to show")
	complaintsCmd.Flags().IntVar(&limit, "limit", 20, "Number of records to show")

	exportCmd.Flags().StringVar(&dateStr, "date", "", "Date to export (YYYY-MM-DD, default: yesterday)")

	serveCmd.Flags().StringVar(&listen, "listen", "", "IP address to listen on (default: all)")
	serveCmd.Flags().IntVar(&listenPort, "listen-port", 8080, "Port to listen on")

	rootCmd.AddCommand(runCmd, dailyCmd, historyCmd, complaintsCmd, exportCmd, serveCmd)
}

// mustSetup loads config and opens the store. Configuration errors are fatal
// before the store is touched.
func mustSetup() (*config.Config, *storage.Store) {
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Make sure your .env file is set up correctly.")
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		logrus.WithError(err).Error("open database")
		os.Exit(1)
	}
	return cfg, store
}

func buildApp(cfg *config.Config, store *storage.Store) *complainer.App {
	var runner speedtest.Runner
	if cfg.SpeedtestBackend == "native" {
		runner = speedtest.NewNativeRunner()
	} else {
		runner = speedtest.NewCLIRunner(cfg.SpeedtestCommand)
	}

	app := &complainer.App{
		Config: cfg,
		Store:  store,
		Runner: runner,
	}

	if f := filer.NewExecFiler(cfg.FilerCommand, cfg.FilerTimeoutDuration()); f != nil {
		app.Filer = f
	}
	if cfg.EmailEnabled() {
		n, err := notify.NewSendGrid(cfg)
		if err == nil {
			app.Notifier = n
		}
	}
	return app
}

func loadDocument(path string) (*export.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return export.Load(f)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// finish closes the store and exits with the outcome's code. Exit 0 falls
// through so deferred cleanup in the caller still runs.
func finish(store *storage.Store, o complainer.Outcome) {
	if o == complainer.OutcomeNoAction {
		return
	}
	store.Close()
	os.Exit(o.ExitCode())
}

func rule(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main implements the netgauge command line tool: it runs
// measurements, keeps their history and derives analytics from it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"
	"github.com/netgauge/netgauge/internal/config"
	"github.com/netgauge/netgauge/internal/persistence"
	"github.com/netgauge/netgauge/internal/sched"
	"github.com/netgauge/netgauge/internal/sim"
	"github.com/netgauge/netgauge/internal/store"
	"github.com/netgauge/netgauge/pkg/client"
	"github.com/netgauge/netgauge/pkg/export"
	"github.com/netgauge/netgauge/pkg/gauge"
	"github.com/netgauge/netgauge/pkg/gauge/spec"
	"github.com/netgauge/netgauge/pkg/history"
	"github.com/netgauge/netgauge/pkg/results"
	"github.com/netgauge/netgauge/pkg/version"
)

const clientName = "netgauge-cli"

var (
	flagConfig   = flag.String("config", "netgauge.yaml", "Configuration file path")
	flagProfile  = flag.String("profile", "", "Measurement profile (quick|standard|extended), overriding the configuration")
	flagServerID = flag.String("server-id", "", "Catalogue server to measure against")
	flagNoSave   = flag.Bool("no-save", false, "Do not record the result")
	flagLimit    = flag.Int("limit", 20, "Maximum number of history entries to show")
	flagFormat   = flag.String("format", "csv", "Export format (csv or json)")
	flagOutput   = flag.String("output", "", "Path to write the export to, stdout when empty")
	flagServer   = flag.String("server", "", "Server address for the remote command")
	flagScheme   = flag.String("scheme", "ws", "Websocket scheme (wss or ws)")
	flagNoVerify = flag.Bool("no-verify", false, "Skip TLS certificate verification")
	flagSchedule = flag.String("schedule", "", "Schedule for daemon mode, overriding the configuration")
	flagDownload = flag.Float64("download", 0, "Expected download in Mbps for the baseline command")
	flagUpload   = flag.Float64("upload", 0, "Expected upload in Mbps for the baseline command")
	flagPing     = flag.Float64("ping", 0, "Expected ping in ms for the baseline command")
	flagVerbose  = flag.Bool("verbose", false, "Enable debug logging")
)

const usageText = `Usage: netgauge [flags] [command]

Commands:
  run           run a measurement and record it (default)
  history       show recorded measurements
  analyze       summarize history: rolling averages, peak hours, anomalies, insights
  achievements  show the achievement board
  export        write history to -output as -format csv or json
  baseline      show the grading baseline, or update it with -download/-upload/-ping
  daemon        keep measuring on the configured schedule
  remote        measure against a netgauge server (-server host:port)
  init          write the default configuration file

Flags:
`

func usage() {
	fmt.Fprint(flag.CommandLine.Output(), usageText)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "failed to read args from env")

	if *flagVerbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*flagConfig)
	rtx.Must(err, "failed to load configuration")

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "run"
	}
	switch cmd {
	case "run":
		runMeasurement(cfg)
	case "history":
		showHistory(cfg)
	case "analyze":
		analyze(cfg)
	case "achievements":
		showAchievements(cfg)
	case "export":
		exportHistory(cfg)
	case "baseline":
		baseline(cfg)
	case "daemon":
		daemon(cfg)
	case "remote":
		remote(cfg)
	case "init":
		writeDefaultConfig()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
}

// clientVersion returns the build version, or a placeholder when the
// build did not set one.
func clientVersion() string {
	if version.Version != "" {
		return version.Version
	}
	return "v0.0.0-dev"
}

func openStore(cfg config.Config) *store.Store {
	st, err := store.Open(cfg.StorePath)
	rtx.Must(err, "failed to open history store")
	return st
}

func profileFromFlags(cfg config.Config) spec.Profile {
	p := spec.Profile(cfg.Profile)
	if *flagProfile != "" {
		p = spec.Profile(*flagProfile)
	}
	if !p.Valid() {
		fmt.Fprintf(os.Stderr, "unknown profile %q\n", p)
		os.Exit(1)
	}
	return p
}

func pickServer(cfg config.Config) sim.Server {
	if *flagServerID != "" {
		srv, ok := cfg.Server(*flagServerID)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown server %q\n", *flagServerID)
			os.Exit(1)
		}
		return srv
	}
	if len(cfg.Servers) > 0 {
		return cfg.Servers[0]
	}
	return sim.Server{Bias: 1}
}

// gradingBaseline returns the baseline saved in the store, falling back
// to the configured one.
func gradingBaseline(ctx context.Context, st *store.Store, cfg config.Config) results.Baseline {
	b, ok, err := st.Baseline(ctx)
	rtx.Must(err, "failed to read baseline")
	if ok {
		return b
	}
	return cfg.GradingBaseline()
}

func runMeasurement(cfg config.Config) {
	ctx := context.Background()

	baseline := cfg.GradingBaseline()
	var st *store.Store
	if !*flagNoSave {
		st = openStore(cfg)
		defer st.Close()
		baseline = gradingBaseline(ctx, st, cfg)
	}

	srv := pickServer(cfg)
	runner := gauge.New(gauge.Config{
		Profile:     profileFromFlags(cfg),
		Baseline:    baseline,
		Source:      sim.New(baseline, srv.Bias, cfg.Seed),
		Emitter:     &gauge.HumanReadable{},
		NetworkType: cfg.Tags.NetworkType,
		Location:    cfg.Tags.Location,
		ServerID:    srv.ID,
	})
	outcome, err := runner.Run(ctx)
	rtx.Must(err, "measurement failed")

	if *flagNoSave {
		return
	}
	saveOutcome(ctx, st, cfg, outcome)
}

// saveOutcome appends the result to history, prunes retention and, when
// an archive directory is configured, writes the archival record.
func saveOutcome(ctx context.Context, st *store.Store, cfg config.Config, outcome *gauge.Outcome) {
	rtx.Must(st.Append(ctx, outcome.Result), "failed to save result")
	pruneHistory(ctx, st, cfg)
	if cfg.ArchiveDir != "" {
		if _, err := persistence.Archive(cfg.ArchiveDir, outcome.Archive()); err != nil {
			log.Error("failed to write archival record", "error", err)
		}
	}
}

func pruneHistory(ctx context.Context, st *store.Store, cfg config.Config) {
	removed, err := st.Prune(ctx, cfg.Retention.MaxRecords, cfg.Retention.MaxAge())
	if err != nil {
		log.Error("failed to prune history", "error", err)
		return
	}
	if removed > 0 {
		log.Debug("pruned history", "removed", removed)
	}
}

func showHistory(cfg config.Config) {
	ctx := context.Background()
	st := openStore(cfg)
	defer st.Close()

	list, err := st.List(ctx, *flagLimit)
	rtx.Must(err, "failed to list history")
	if len(list) == 0 {
		fmt.Println("No measurements recorded yet.")
		return
	}
	for _, r := range list {
		line := fmt.Sprintf("%s  down %7.1f Mbps  up %7.1f Mbps  ping %4.0f ms",
			r.Timestamp.Local().Format("2006-01-02 15:04"), r.Download, r.Upload, r.Ping)
		if r.Stats != nil {
			line += fmt.Sprintf("  grade %-2s", r.Stats.Grade)
		}
		if r.ServerID != "" {
			line += "  " + r.ServerID
		}
		fmt.Println(line)
	}
}

func analyze(cfg config.Config) {
	ctx := context.Background()
	st := openStore(cfg)
	defer st.Close()

	list, err := st.List(ctx, 0)
	rtx.Must(err, "failed to list history")
	if len(list) == 0 {
		fmt.Println("No measurements recorded yet.")
		return
	}
	now := time.Now()

	windows := history.WindowAverages(list, now)
	fmt.Println("Rolling averages:")
	printWindow("  last 24h", windows.Day)
	printWindow("  last 7d ", windows.Week)
	printWindow("  last 30d", windows.Month)

	if peaks := history.AnalyzePeaks(list); peaks != nil {
		fmt.Println()
		fmt.Println("Time of day:")
		fmt.Printf("  best around %02d:00, worst around %02d:00\n",
			peaks.BestHour, peaks.WorstHour)
		fmt.Printf("  morning %.1f, afternoon %.1f, evening %.1f, night %.1f Mbps down\n",
			peaks.Morning, peaks.Afternoon, peaks.Evening, peaks.Night)
	}

	if anomalies := history.DetectAnomalies(list); len(anomalies) > 0 {
		fmt.Println()
		fmt.Println("Anomalies:")
		for _, a := range anomalies {
			fmt.Printf("  [%s] %s %s %.1f, historical mean %.1f\n",
				a.Severity, a.Timestamp.Local().Format("2006-01-02 15:04"),
				a.Metric, a.Value, a.Mean)
		}
	}

	baseline := gradingBaseline(ctx, st, cfg)
	if insights := history.Insights(list, baseline, now); len(insights) > 0 {
		fmt.Println()
		fmt.Println("Insights:")
		for _, in := range insights {
			fmt.Printf("  - %s\n", in.Message)
		}
	}
}

func printWindow(label string, w history.WindowStats) {
	if w.Count == 0 {
		fmt.Printf("%s: no measurements\n", label)
		return
	}
	fmt.Printf("%s: down %.1f Mbps, up %.1f Mbps, ping %.0f ms (%d tests)\n",
		label, w.Download, w.Upload, w.Ping, w.Count)
}

func showAchievements(cfg config.Config) {
	ctx := context.Background()
	st := openStore(cfg)
	defer st.Close()

	list, err := st.List(ctx, 0)
	rtx.Must(err, "failed to list history")

	achievements := history.Evaluate(list)
	unlocked := 0
	for _, a := range achievements {
		marker := "[ ]"
		if a.Unlocked {
			marker = "[x]"
			unlocked++
		}
		fmt.Printf("%s %s: %s\n", marker, a.Name, a.Description)
	}
	fmt.Printf("%d of %d unlocked\n", unlocked, len(achievements))
}

func exportHistory(cfg config.Config) {
	ctx := context.Background()
	st := openStore(cfg)
	defer st.Close()

	list, err := st.List(ctx, 0)
	rtx.Must(err, "failed to list history")

	out := os.Stdout
	if *flagOutput != "" {
		f, err := os.Create(*flagOutput)
		rtx.Must(err, "failed to create output file")
		defer f.Close()
		out = f
	}
	switch *flagFormat {
	case "csv":
		rtx.Must(export.WriteCSV(out, list), "export failed")
	case "json":
		rtx.Must(export.WriteJSON(out, list), "export failed")
	default:
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *flagFormat)
		os.Exit(1)
	}
}

func baseline(cfg config.Config) {
	ctx := context.Background()
	st := openStore(cfg)
	defer st.Close()

	current := gradingBaseline(ctx, st, cfg)
	if *flagDownload > 0 || *flagUpload > 0 || *flagPing > 0 {
		b := current
		if *flagDownload > 0 {
			b.ExpectedDownload = *flagDownload
		}
		if *flagUpload > 0 {
			b.ExpectedUpload = *flagUpload
		}
		if *flagPing > 0 {
			b.ExpectedPing = *flagPing
		}
		rtx.Must(st.SaveBaseline(ctx, b), "failed to save baseline")
		current = b
	}
	fmt.Printf("Expecting %.1f Mbps down, %.1f Mbps up, %.0f ms ping\n",
		current.ExpectedDownload, current.ExpectedUpload, current.ExpectedPing)
}

func daemon(cfg config.Config) {
	schedule := cfg.Schedule
	if *flagSchedule != "" {
		schedule = *flagSchedule
	}
	if schedule == "" {
		fmt.Fprintln(os.Stderr, "daemon mode needs a schedule: set one in the configuration or pass -schedule")
		os.Exit(1)
	}

	log.SetReportTimestamp(true)

	ctx := context.Background()
	st := openStore(cfg)
	defer st.Close()

	baseline := gradingBaseline(ctx, st, cfg)
	srv := pickServer(cfg)
	// One reusable runner: a tick that fires while the previous run is
	// still in progress is rejected by the runner and skipped.
	runner := gauge.New(gauge.Config{
		Profile:     profileFromFlags(cfg),
		Baseline:    baseline,
		Source:      sim.New(baseline, srv.Bias, cfg.Seed),
		NetworkType: cfg.Tags.NetworkType,
		Location:    cfg.Tags.Location,
		ServerID:    srv.ID,
	})

	job := func(ctx context.Context) error {
		outcome, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		log.Info("measurement complete",
			"download", outcome.Result.Download,
			"upload", outcome.Result.Upload,
			"ping", outcome.Result.Ping,
			"grade", outcome.Result.Stats.Grade)
		saveOutcome(ctx, st, cfg, outcome)
		return nil
	}

	scheduler, err := sched.New(ctx, schedule, job)
	rtx.Must(err, "failed to create scheduler")
	scheduler.Start()
	defer scheduler.Stop()

	log.Info("daemon started", "schedule", schedule, "next", scheduler.Next())
	<-ctx.Done()
}

func remote(cfg config.Config) {
	if *flagServer == "" {
		fmt.Fprintln(os.Stderr, "remote mode needs a server: pass -server host:port")
		os.Exit(1)
	}

	ctx := context.Background()
	var st *store.Store
	if !*flagNoSave {
		st = openStore(cfg)
		defer st.Close()
	}

	cl := client.New(clientName, clientVersion(), client.Config{
		Server:   *flagServer,
		Scheme:   *flagScheme,
		Profile:  profileFromFlags(cfg),
		ServerID: *flagServerID,
		Emitter:  &gauge.HumanReadable{},
		NoVerify: *flagNoVerify,
	})
	result, err := cl.Run(ctx)
	rtx.Must(err, "remote measurement failed")

	if *flagNoSave {
		return
	}
	rtx.Must(st.Append(ctx, *result), "failed to save result")
	pruneHistory(ctx, st, cfg)
}

func writeDefaultConfig() {
	if _, err := os.Stat(*flagConfig); err == nil {
		fmt.Fprintf(os.Stderr, "%s already exists\n", *flagConfig)
		os.Exit(1)
	}
	rtx.Must(config.Write(*flagConfig, config.Default()), "failed to write configuration")
	fmt.Printf("Wrote %s\n", *flagConfig)
}

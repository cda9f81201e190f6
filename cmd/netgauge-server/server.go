package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/netgauge/netgauge/internal/api"
	"github.com/netgauge/netgauge/internal/config"
	"github.com/netgauge/netgauge/pkg/gauge/spec"
)

var (
	flagConfig   = flag.String("config", "netgauge.yaml", "Configuration file path")
	flagAddr     = flag.String("addr", "", "Listen address/port, overriding the configuration")
	flagCertFile = flag.String("cert", "", "The file with server certificates in PEM format.")
	flagKeyFile  = flag.String("key", "", "The file with server key in PEM format.")
	flagDataDir  = flag.String("datadir", "./data", "Directory to store data in")
	flagVerbose  = flag.Bool("verbose", false, "Enable debug logging")

	// Context for the whole program.
	ctx, cancel = context.WithCancel(context.Background())
)

// httpServer creates a new *http.Server with explicit Read and Write
// timeouts, and the provided address and handler.
func httpServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: handler,
		// NOTE: set absolute read and write timeouts for server connections.
		// This prevents clients, or middleboxes, from opening a connection and
		// holding it open indefinitely. Live measurement connections are
		// hijacked by the websocket upgrade and manage their own deadlines.
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "failed to read args from env")

	// Initialize logging and metrics.
	log.SetReportCaller(true)
	log.SetReportTimestamp(true)
	if *flagVerbose {
		log.SetLevel(log.DebugLevel)
	}

	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()

	cfg, err := config.Load(*flagConfig)
	rtx.Must(err, "failed to load configuration")
	addr := cfg.API.Addr
	if *flagAddr != "" {
		addr = *flagAddr
	}

	handler := api.New(api.Config{
		Baseline:  cfg.GradingBaseline(),
		Servers:   cfg.Servers,
		DataDir:   *flagDataDir,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
		Seed:      cfg.Seed,
	})
	mux := http.NewServeMux()
	mux.Handle(spec.SpeedtestPath, http.HandlerFunc(handler.Speedtest))
	mux.Handle(spec.LivePath, http.HandlerFunc(handler.Live))

	srv := httpServer(addr, mux)
	log.Info("About to listen for measurements", "endpoint", addr)

	l, err := net.Listen("tcp", srv.Addr)
	rtx.Must(err, "failed to create listener")
	defer l.Close()

	go func() {
		if *flagCertFile != "" && *flagKeyFile != "" {
			rtx.Must(srv.ServeTLS(l, *flagCertFile, *flagKeyFile), "could not start TLS server")
		} else {
			rtx.Must(srv.Serve(l), "could not start server")
		}
	}()

	<-ctx.Done()
	cancel()
}

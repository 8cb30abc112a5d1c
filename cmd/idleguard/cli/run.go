package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"idleguard/pkg/api"
	"idleguard/pkg/config"
	"idleguard/pkg/history"
	"idleguard/pkg/idle"
	"idleguard/pkg/log"
	"idleguard/pkg/metrics"
	"idleguard/pkg/printer"
	"idleguard/pkg/reactor"
)

type runOptions struct {
	listen    string
	stateFile string
	historyDB string
	noHistory bool
	tick      time.Duration
	logFile   string
	rate      float64
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor and the HTTP API",
	Long: `Run loads the printer configuration, restores settings saved with M500,
and ticks the printer loop until interrupted. Protection events are written
to the SQLite journal and pushed to websocket clients.

Flags override the [server] section of the configuration.

Example:
  idleguard run --config printer.cfg --listen :7125`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd, runOpts)
	},
}

func init() {
	addConfigFlag(runCmd)
	f := runCmd.Flags()
	f.StringVar(&runOpts.listen, "listen", "", "API listen address (overrides [server] listen)")
	f.StringVar(&runOpts.stateFile, "state", "", "settings file for M500/M501 (overrides [server] state_file)")
	f.StringVar(&runOpts.historyDB, "history", "", "event journal database (overrides [server] history_db)")
	f.BoolVar(&runOpts.noHistory, "no-history", false, "do not keep an event journal")
	f.DurationVar(&runOpts.tick, "tick", 0, "main loop period (overrides [server] tick)")
	f.StringVar(&runOpts.logFile, "logfile", "", "also write logs to this file, rotated by size")
	f.Float64Var(&runOpts.rate, "ws-rate", 20, "websocket messages per second per client")
	rootCmd.AddCommand(runCmd)
}

func applyServerFlags(cmd *cobra.Command, srv *config.ServerConfig, o runOptions) {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		srv.Listen = o.listen
	}
	if flags.Changed("state") {
		srv.StateFile = o.stateFile
	}
	if flags.Changed("history") {
		srv.HistoryDB = o.historyDB
	}
	if o.noHistory {
		srv.HistoryDB = ""
	}
	if flags.Changed("tick") && o.tick > 0 {
		srv.Tick = o.tick
	}
}

func runDaemon(cmd *cobra.Command, o runOptions) error {
	logger := log.GetLogger("idleguard")
	if o.logFile != "" {
		w, err := log.NewRotatingFileWriter(log.RotationConfig{Filename: o.logFile})
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer w.Close()
		logger.SetWriter(log.Tee(w))
	}

	pc, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyServerFlags(cmd, &pc.Server, o)
	srv := pc.Server

	logger.Info("idleguard %s starting", Version)
	logger.WithFields(log.Fields{
		"config":  configFile,
		"listen":  srv.Listen,
		"state":   srv.StateFile,
		"history": srv.HistoryDB,
		"tick":    srv.Tick.String(),
		"stall":   srv.StallTimeout.String(),
	}).Info("configuration loaded")
	logger.Info("idle protection: %s", pc.Idle.Command(pc.HeaterBed != nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gm := metrics.NewGuardMetrics()
	hub := api.NewHub(api.HubConfig{Rate: o.rate, Metrics: gm})
	recorders := []idle.Recorder{hub}

	var (
		store  *history.Store
		writer *history.Writer
	)
	if srv.HistoryDB != "" {
		store, err = history.Open(srv.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
		writer = history.NewWriter(store, 0)
		recorders = append(recorders, writer)
	}

	p, err := printer.New(pc, printer.Options{
		StateFile:    srv.StateFile,
		Recorders:    recorders,
		Metrics:      gm,
		StallTimeout: srv.StallTimeout,
	})
	if err != nil {
		return err
	}
	if err := p.Startup(); err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	loop := reactor.New()
	p.Attach(loop, srv.Tick)

	deps := api.Dependencies{Machine: p, Metrics: gm, Hub: hub}
	if store != nil {
		deps.History = store
	}
	server := api.New(api.Config{
		Addr:         srv.Listen,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
	}, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return p.Safety().RunWatchdog(gctx) })
	if writer != nil {
		g.Go(func() error { return writer.Run(gctx) })
	}
	g.Go(func() error { return server.Run(gctx) })

	err = g.Wait()
	logger.WithField("ticks", p.Ticks()).Info("idleguard stopped")
	return err
}

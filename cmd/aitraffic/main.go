// cmd/aitraffic/main.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// aitraffic runs the AI traffic simulation headless, streaming aircraft
// state to telemetry clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	av "github.com/mmp/aitraffic/aviation"
	"github.com/mmp/aitraffic/config"
	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/nav"
	"github.com/mmp/aitraffic/rand"
	"github.com/mmp/aitraffic/sim"
	"github.com/mmp/aitraffic/telemetry"
	"github.com/mmp/aitraffic/traffic"

	"github.com/goforj/godump"
)

var (
	configFile = flag.String("config", "", "YAML or TOML configuration file")
	airports   = flag.String("airports", "", "comma-separated list of airport database files")
	timetables = flag.String("timetable", "", "comma-separated list of timetable files")
	logLevel   = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir     = flag.String("logdir", "", "log file directory")
	telemAddr  = flag.String("telemetry", "", "address to serve telemetry on (e.g., localhost:8080)")
	seed       = flag.Int64("seed", 0, "random number seed; 0 for a random seed")
	steps      = flag.Int("steps", 0, "run this many updates as fast as possible and exit")
	rate       = flag.Float64("rate", 10, "updates per second")
	dump       = flag.Bool("dump", false, "print the traffic state at exit")

	navLog           = flag.Bool("navlog", false, "enable navigation logging (requires the navlog build tag)")
	navLogCategories = flag.String("navlog-categories", "all", "navigation log categories (comma-separated)")
	navLogCallsign   = flag.String("navlog-callsign", "", "only log navigation for this callsign")
)

// Command-line flags override the corresponding configuration values.
var flagPaths = map[string]string{
	"airports":  config.PathAirports,
	"timetable": config.PathTimetables,
	"loglevel":  config.PathLogLevel,
	"logdir":    config.PathLogDir,
	"telemetry": config.PathTelemetry,
	"seed":      config.PathSeed,
}

func main() {
	flag.Parse()

	store := config.NewStore()
	if *configFile != "" {
		if err := store.LoadFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		if p, ok := flagPaths[f.Name]; ok {
			store.Set(p, f.Value.String())
		}
	})
	settings := config.FromStore(store)

	lg := log.New(settings.LogLevel, settings.LogDir)
	defer lg.CatchAndReportCrash()
	nav.InitNavLog(*navLog, *navLogCategories, *navLogCallsign)

	if err := run(store, settings, lg); err != nil {
		lg.Errorf("%v", err)
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(store *config.Store, settings config.Settings, lg *log.Logger) error {
	if len(settings.Airports) == 0 {
		return errors.New("no airport databases specified")
	}
	if len(settings.Timetables) == 0 {
		return errors.New("no timetables specified")
	}
	if *rate <= 0 {
		return fmt.Errorf("%f: invalid update rate", *rate)
	}

	now := time.Now().UTC()
	db, err := av.LoadDatabase(lg, now, settings.Airports...)
	if err != nil {
		return err
	}

	r := rand.Make()
	if settings.Seed != 0 {
		r = rand.MakeSeeded(settings.Seed)
	}

	w := sim.NewWorld(db, settings.Sim, r, lg)
	w.Wind = settings.Wind
	if w.Elevation, err = sim.NewCachedElevation(sim.NewAirportElevation(db, 10), 4096); err != nil {
		return err
	}
	hub := telemetry.NewHub(lg)
	defer hub.Close()
	w.Sink = hub

	m := traffic.NewManager(w, db, settings.Traffic, lg)
	if err := m.Load(settings.Timetables...); err != nil {
		return err
	}
	m.SetUser(settings.User, now)
	if err := m.Init(now); err != nil {
		return err
	}
	defer m.Shutdown()

	config.Watch(store, func(s config.Settings) {
		if err := m.SetSettings(s.Traffic); err != nil {
			lg.Warn("unable to apply settings", slog.Any("error", err))
		}
		m.SetSimSettings(s.Sim)
		m.SetUser(s.User, time.Now().UTC())
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.Telemetry != "" {
		srv := &http.Server{
			Addr:              settings.Telemetry,
			Handler:           telemetry.NewRouter(m, hub, lg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			defer lg.CatchAndReportCrash()
			lg.Info("serving telemetry", slog.String("address", settings.Telemetry))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Errorf("telemetry server: %v", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
	}

	dt := float32(1 / *rate)
	step := time.Duration(float64(time.Second) / *rate)
	if *steps > 0 {
		// Headless: simulated time advances without waiting.
		for range *steps {
			if ctx.Err() != nil {
				break
			}
			now = now.Add(step)
			m.Tick(now, dt)
		}
	} else {
		ticker := time.NewTicker(step)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case t := <-ticker.C:
				m.Tick(t.UTC(), dt)
			}
		}
	}
	lg.Info("exiting")

	if *dump {
		fmt.Println(godump.DumpStr(m.Snapshot()))
		for _, d := range w.ActiveDynamics() {
			fmt.Println(d.Dump())
		}
	}
	return nil
}

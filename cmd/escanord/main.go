// Command escanord wires together the storage engine: configuration,
// logging, metrics, the background scheduler, and snapshot load/save at
// startup and shutdown. It does not itself speak any wire protocol — the
// network listener and command parser are external collaborators that
// plug in through the Dispatcher interface below.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/jimsnab/go-lane"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"github.com/escanordb/escanor/internal/config"
	"github.com/escanordb/escanor/internal/engine"
	"github.com/escanordb/escanor/internal/handlers"
	"github.com/escanordb/escanor/internal/metrics"
	"github.com/escanordb/escanor/internal/scheduler"
)

// Dispatcher is the seam where an external network/protocol layer plugs
// in: something that accepts connections, parses commands, calls the
// handler methods below, and serializes the resulting Reply back onto the
// wire. This binary neither implements nor constructs one; it only builds
// the handlers such a Dispatcher would call.
type Dispatcher interface {
	Serve(ctx context.Context) error
}

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	l := lane.NewLogLane(context.Background())

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			l.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	fs := afero.NewOsFs()

	var collectors *metrics.Collectors
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		collectors = metrics.New(reg)
		go serveMetrics(l, cfg.Metrics.ListenAddr, reg)
	}

	db := engine.New(cfg, fs, l, collectors)

	if state, err := db.Snapshot.Load(); err != nil {
		l.Errorf("load snapshot: %v", err)
	} else if state != nil {
		db.ImportState(*state)
		l.Infof("loaded snapshot from %s", cfg.Database.SnapshotPath)
	}

	sched := scheduler.New()
	mustRegister(l, sched.RegisterExpirySweep(func() {
		db.Expiry.Sweep(engine.Now(), db, l)
	}))
	mustRegister(l, sched.RegisterTombstoneClear(func() {
		db.Expiry.ClearTombstones()
	}))
	var lastSavedMutations atomic.Uint64
	mustRegister(l, sched.RegisterSnapshot(cfg.Database.SaveAfterSeconds, func() {
		pending := db.MutationCount()
		if pending-lastSavedMutations.Load() < cfg.Database.MinMutations {
			return
		}
		// lastSavedMutations only advances once the background write is
		// confirmed durable; a failed save is logged and swallowed by
		// BGSave/Save, leaving the watermark unmoved so the next tick
		// retries.
		err := db.Snapshot.BGSave(l, db, engine.Now(), func(err error) {
			if err == nil {
				lastSavedMutations.Store(pending)
			}
		})
		if err != nil {
			l.Tracef("periodic snapshot skipped: %v", err)
		}
	}))
	sched.Start()
	defer sched.Stop()

	auth := engine.NewAuthState(cfg.Auth.Required, cfg.Auth.ServerKey)

	_ = handlers.NewKVHandlers(db)
	_ = handlers.NewJSONHandlers(db)
	_ = handlers.NewGeoHandlers(db)
	_ = handlers.NewMiscHandlers(db, auth)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	l.Infof("escanord ready, dbsize=%d", db.DBSize())
	<-ctx.Done()

	l.Infof("shutting down, saving snapshot")
	if err := db.Snapshot.Save(db.ExportState(), engine.Now()); err != nil {
		l.Errorf("final save failed: %v", err)
	}
	db.Snapshot.Wait()
}

func mustRegister(l lane.Lane, err error) {
	if err != nil {
		l.Fatalf("register scheduled job: %v", err)
	}
}

func serveMetrics(l lane.Lane, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		l.Errorf("metrics server stopped: %v", err)
	}
}

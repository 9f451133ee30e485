// ensemble-watchtower is a small daemon that holds a session open and
// periodically submits a fence request, logging the round-trip
// latency and the session's current state. With ENSEMBLE_CONNECT_STRING
// set it dials a real ensemble over transport/wiretransport; otherwise
// it falls back to an in-process fake ensemble so the keep-alive and
// reconnect machinery has something to run against even with nothing
// else deployed.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/r3e-network/ensemble"
	"github.com/r3e-network/ensemble/internal/admin"
	"github.com/r3e-network/ensemble/internal/config"
	"github.com/r3e-network/ensemble/internal/logging"
	"github.com/r3e-network/ensemble/internal/metrics"
	"github.com/r3e-network/ensemble/transport/memtransport"
	"github.com/r3e-network/ensemble/transport/wiretransport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	rec := metrics.NewRecorder()

	// The fence job is the only thing submitting requests here, so one
	// per second with a small burst is generous headroom; it exists
	// mainly to exercise Options.SubmissionLimiter against a real
	// limiter rather than a hand-rolled fake.
	limiter := rate.NewLimiter(rate.Limit(1), 3)

	dialCtx, dialCancel := context.WithTimeout(context.Background(), cfg.Session.DefaultConnect)
	engine, err := connect(dialCtx, cfg, log, rec, limiter)
	dialCancel()
	if err != nil {
		log.Errorf("watchtower: connect: %v", err)
		os.Exit(1)
	}

	c := cron.New(cron.WithSeconds())
	_, err = c.AddFunc("*/15 * * * * *", func() {
		fence(log, engine)
	})
	if err != nil {
		log.Errorf("watchtower: schedule fence job: %v", err)
		os.Exit(1)
	}
	c.Start()

	adminSrv := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: admin.Router(engine, rec)}
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("watchtower: admin server: %v", err)
		}
	}()

	log.Infof("watchtower: started, metrics on %s", cfg.Metrics.ListenAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Infof("watchtower: shutting down")

	if err := shutdown(c, adminSrv, engine); err != nil {
		log.Errorf("watchtower: shutdown: %v", err)
		os.Exit(1)
	}
}

// connect dials a real ensemble over wiretransport when
// cfg.Session.ConnectString names one, otherwise it falls back to an
// in-process fake ensemble.
func connect(ctx context.Context, cfg *config.Config, log *logging.Logger, rec *metrics.Recorder, limiter *rate.Limiter) (*ensemble.Engine, error) {
	if cfg.Session.ConnectString == "" {
		ens := memtransport.NewEnsemble()
		transport := ens.Connect()
		engine := ensemble.NewEngine(transport, ensemble.Options{
			Logger:            log,
			Metrics:           rec,
			KeepAliveInterval: 20 * time.Second,
			SubmissionLimiter: limiter,
		})
		transport.MarkConnected()
		return engine, nil
	}

	params, err := ensemble.ParseConnectionString(cfg.Session.ConnectString)
	if err != nil {
		return nil, fmt.Errorf("parsing ENSEMBLE_CONNECT_STRING: %w", err)
	}
	transport, err := wiretransport.DialEnsemble(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("dialing ensemble: %w", err)
	}
	return ensemble.NewEngine(transport, ensemble.Options{
		Logger:            log,
		Metrics:           rec,
		KeepAliveInterval: 20 * time.Second,
		SubmissionLimiter: limiter,
	}), nil
}

// shutdown stops the cron scheduler, the admin HTTP server, and the
// engine in turn, aggregating whatever each of them fails with instead
// of abandoning the rest after the first error.
func shutdown(c *cron.Cron, adminSrv *http.Server, engine *ensemble.Engine) error {
	var result *multierror.Error

	c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	if err := engine.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func fence(log *logging.Logger, engine *ensemble.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if _, err := engine.Fence().Wait(ctx); err != nil {
		log.WithField("state", engine.State().String()).Warnf("watchtower: fence failed: %v", err)
		return
	}
	log.WithField("latency_ms", time.Since(start).Milliseconds()).Infof("watchtower: fence ok")
}

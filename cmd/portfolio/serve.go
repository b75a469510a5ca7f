package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/trogers1052/portfolio-tracker/internal/api"
	"github.com/trogers1052/portfolio-tracker/internal/kafka"
	"github.com/trogers1052/portfolio-tracker/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

type serveCmd struct {
	warmOnStart bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP API, maintenance jobs and warm consumer" }
func (*serveCmd) Usage() string {
	return `portfolio serve [-warm]

  Serves the portfolio API until SIGINT or SIGTERM.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.warmOnStart, "warm", false, "warm the configured symbols once at startup")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	cfg := a.cfg

	symbols, _ := cfg.Schedule.WarmTickers()
	sched := scheduler.NewScheduler(ctx, a.store, a.fetcher, cfg.Schedule.Retention(), symbols)
	if err := sched.RegisterAll(cfg.Schedule.PruneCron, cfg.Schedule.WarmCron); err != nil {
		log.Printf("[ERROR] register cron tasks: %v", err)
		return subcommands.ExitFailure
	}
	sched.Start()
	defer sched.Stop()

	if c.warmOnStart && len(symbols) > 0 {
		go sched.RunWarm()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewWarmConsumer(cfg.Kafka.Brokers, cfg.Kafka.WarmTopic, cfg.Kafka.GroupID, a.fetcher)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Printf("[ERROR] cache warm consumer: %v", err)
			}
		}()
	} else {
		log.Println("[INFO] KAFKA_BROKERS not set, events and warm requests disabled")
	}

	handler := api.NewHandler(a.aggregator, a.fetcher, a.budget)
	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.SetupRoutes(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.MarketData.RequestTimeout() + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	status := subcommands.ExitSuccess
	select {
	case <-sigCh:
		log.Println("[INFO] shutdown signal received, stopping...")
	case err := <-errCh:
		log.Printf("[ERROR] http server: %v", err)
		status = subcommands.ExitFailure
	}

	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] http shutdown: %v", err)
	}
	log.Println("[INFO] portfolio tracker stopped")
	return status
}

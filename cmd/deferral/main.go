package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecociel/deferral/api"
	"github.com/ecociel/deferral/config"
	"github.com/ecociel/deferral/domain"
	"github.com/ecociel/deferral/executor"
	"github.com/ecociel/deferral/gateway/kafka"
	"github.com/ecociel/deferral/gateway/target"
	"github.com/ecociel/deferral/lib/kafkaclient"
	"github.com/ecociel/deferral/metrics"
	"github.com/ecociel/deferral/repos/memory"
	"github.com/ecociel/deferral/repos/postgres"
	"github.com/ecociel/deferral/runner"
	"github.com/ecociel/deferral/uc"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type store interface {
	Save(ctx context.Context, task domain.Task) (domain.Task, error)
	FindDueBefore(ctx context.Context, threshold time.Time) ([]domain.Task, error)
	Get(ctx context.Context, id string) (domain.Task, error)
	List(ctx context.Context) ([]domain.Task, error)
	Delete(ctx context.Context, id string) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var st store
	if cfg.DbConnectionUri != "" {
		pool, err := pgxpool.New(ctx, cfg.DbConnectionUri)
		if err != nil {
			log.Fatalf("pg connect: %v", err)
		}
		defer pool.Close()
		repo := postgres.New(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal(err)
		}
		st = repo
	} else {
		log.Println("WARNING: MEMORY_STORE is set, pending tasks are lost on restart")
		st = memory.New()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPromMetrics(reg)

	caller, err := target.New(cfg.TargetBaseUrl, cfg.TargetTimeout)
	if err != nil {
		log.Fatal(err)
	}

	opts := []executor.Option{
		executor.WithConcurrency(cfg.SweepConcurrency),
		executor.WithMetrics(m),
	}
	if cfg.CompletionTopic != "" {
		producer, err := kafkaclient.NewProducer(cfg.QueueHostPorts, cfg.CompletionTopic)
		if err != nil {
			log.Fatal(err)
		}
		defer producer.Close()
		opts = append(opts, executor.WithNotifier(kafka.New(producer, cfg.CompletionTopic)))
	}
	exec := executor.New(st, caller, opts...)

	run := runner.New(cfg.SweepInterval, exec, m)
	if err := run.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer run.Stop()

	schedule := uc.MakeScheduleUseCase(st)

	if cfg.IntakeTopic != "" {
		consumer, err := kafkaclient.NewConsumer(cfg.QueueHostPorts, cfg.IntakeConsumerGroup, cfg.IntakeTopic)
		if err != nil {
			log.Fatal(err)
		}
		defer consumer.Close()
		go kafka.NewIntake(consumer, schedule).Run(ctx)
		log.Printf("intake consuming %s", cfg.IntakeTopic)
	}

	res := api.NewResource(schedule, uc.MakeCancelUseCase(st), st, run)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewContainer(res, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

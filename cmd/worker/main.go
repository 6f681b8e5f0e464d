package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"erpai/internal/config"
	"erpai/internal/db"
	"erpai/internal/engine"
	"erpai/internal/llm"
	"erpai/internal/logging"
	"erpai/internal/mailer"
	"erpai/internal/metrics"
	"erpai/internal/report"
	"erpai/internal/workflows"
)

func main() {
	logging.Init("worker", nil)
	if err := run(os.Args[1:]); err != nil {
		fatalf("worker: %v", err)
	}
}

var fatalf = func(format string, args ...any) {
	slog.Error("fatal", "error", fmt.Sprintf(format, args...))
	os.Exit(1)
}
var loadConfig = config.LoadConfig
var newDB = db.NewDB
var newTemporalClient = func(cfg config.OrchestratorConfig) (client.Client, error) {
	opts := client.Options{HostPort: cfg.TemporalAddr, Namespace: cfg.Namespace}
	return client.Dial(opts)
}

var temporalHealthClient client.Client

type closeFunc func() error

func (c closeFunc) Close() error {
	return c()
}

var newWorker = func(cfg config.OrchestratorConfig) (worker.Worker, io.Closer, error) {
	c, err := newTemporalClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	temporalHealthClient = c
	w := worker.New(c, cfg.TaskQueue, worker.Options{})
	return w, closeFunc(func() error { c.Close(); return nil }), nil
}
var runWorker = func(w worker.Worker) error { return w.Run(worker.InterruptCh()) }

func run(args []string) error {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("config required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	go func() {
		<-ctx.Done()
		time.AfterFunc(30*time.Second, func() { os.Exit(1) })
	}()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.PostgresDSN == "" {
		return errors.New("storage.postgres_dsn required")
	}
	if cfg.Orchestrator.TemporalAddr == "" {
		return errors.New("orchestrator.temporal_addr required")
	}
	database, err := newDB(cfg.Storage.PostgresDSN)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.Orchestrator.HealthAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			ok := true

			pctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if conn := database.Conn(); conn == nil {
				ok = false
			} else if err := conn.PingContext(pctx); err != nil {
				ok = false
			}

			if temporalHealthClient != nil {
				tctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
				defer cancel()
				if _, err := temporalHealthClient.CheckHealth(tctx, nil); err != nil {
					ok = false
				}
			} else {
				ok = false
			}

			if ok {
				_, _ = w.Write([]byte(`{"status":"ok"}`))
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		})

		healthSrv := &http.Server{Addr: cfg.Orchestrator.HealthAddr, Handler: mux}
		go func() {
			if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("health server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = healthSrv.Shutdown(sctx)
		}()
	}

	records := &db.RecordStore{DB: database, Entities: cfg.Engine.Entities}
	generator := &report.Generator{Store: database, Data: records}
	if cfg.Engine.QueryTimeoutMS > 0 {
		generator.QueryTimeout = time.Duration(cfg.Engine.QueryTimeoutMS) * time.Millisecond
	}
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return err
	}
	if llmClient != nil {
		generator.Narrator = &llm.Narrator{Client: llmClient, MaxTokens: cfg.LLM.MaxOutputTokens}
	}

	dispatcher := &engine.Dispatcher{
		Config:  database,
		Ledger:  database,
		Data:    records,
		Reports: generator,
		Gate:    &engine.Gate{Counter: database},
	}
	if m := mailer.New(cfg.Mailer); m != nil {
		dispatcher.Mailer = m
	}

	w, closer, err := newWorker(cfg.Orchestrator)
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}
	acts := &workflows.Activities{Dispatcher: dispatcher}
	w.RegisterWorkflow(workflows.DispatchWorkflow)
	w.RegisterActivity(acts)
	slog.Info("worker ready", "temporal_addr", cfg.Orchestrator.TemporalAddr, "task_queue", cfg.Orchestrator.TaskQueue)
	return runWorker(w)
}

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
	"sync"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"

	"erpai/internal/audit"
	"erpai/internal/config"
	"erpai/internal/db"
	"erpai/internal/engine"
	"erpai/internal/llm"
	"erpai/internal/logging"
	"erpai/internal/mailer"
	"erpai/internal/metrics"
	"erpai/internal/report"
	"erpai/internal/scheduler"
	"erpai/internal/web"
	"erpai/internal/workflows"
)

func main() {
	logging.Init("engine", nil)
	if err := run(os.Args[1:], serveHTTP); err != nil {
		fatalf("engine: %v", err)
	}
}

var serveHTTP = func(srv *http.Server) error { return srv.ListenAndServe() }
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

// scheduledReports adapts the report generator to the scheduler, which only
// cares whether the run succeeded.
type scheduledReports struct {
	gen *report.Generator
}

func (s scheduledReports) Generate(ctx context.Context, templateID string, overrides map[string]map[string]any, narrate bool) error {
	_, err := s.gen.Generate(ctx, templateID, overrides, narrate)
	return err
}

func run(args []string, serve func(*http.Server) error) error {
	fs := flag.NewFlagSet("engine", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("config required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.PostgresDSN == "" {
		return errors.New("storage.postgres_dsn required")
	}
	database, err := newDB(cfg.Storage.PostgresDSN)
	if err != nil {
		return err
	}
	defer database.Close()

	addr := ":8080"
	if cfg.Server.HTTPAddr != "" {
		addr = cfg.Server.HTTPAddr
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
	processor := &engine.Processor{
		Config:     database,
		Ledger:     database,
		Dispatcher: dispatcher,
	}

	var starter web.DispatchStarter = &web.LocalStarter{Dispatcher: dispatcher}
	if cfg.Orchestrator.TemporalAddr != "" {
		tc, err := newTemporalClient(cfg.Orchestrator)
		if err != nil {
			slog.Warn("temporal client connection failed, dispatching in-process", "error", err)
		} else {
			defer tc.Close()
			starter = &workflows.TemporalStarter{Client: tc, TaskQueue: cfg.Orchestrator.TaskQueue}
		}
	}

	srv := web.NewServer(&web.Server{
		Store:      database,
		DBConn:     database.Conn(),
		Processor:  processor,
		Dispatcher: starter,
		Reports:    generator,
		Audit:      audit.NewWithDB(database),
	})

	var wg sync.WaitGroup
	if cfg.Scheduler.Enabled {
		sched := &scheduler.Scheduler{
			Store:   database,
			Reports: scheduledReports{gen: generator},
		}
		if cfg.Scheduler.PollIntervalSecs > 0 {
			sched.PollInterval = time.Duration(cfg.Scheduler.PollIntervalSecs) * time.Second
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("scheduler stopped", "error", err)
			}
		}()
	}

	mainSrv := &http.Server{Addr: addr, Handler: metrics.Middleware(srv.Mux)}
	errCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- serve(mainSrv)
	}()

	slog.Info("engine listening", "addr", addr)
	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	forceExit := time.AfterFunc(30*time.Second, func() { os.Exit(1) })
	defer forceExit.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = mainSrv.Shutdown(shutdownCtx)
	wg.Wait()
	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	default:
		return nil
	}
}

// Command strategist-core is the composition root: it loads configuration,
// selects the configured LLM provider, wires C1-C7 through the
// orchestrator facade and workflow engine, and serves a metrics endpoint.
// The run control surface (start/continue/status/events) is consumed by
// an external edge layer that is out of this module's scope; this binary
// exposes only the in-process Engine and a health/metrics listener.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/adronaut/strategist-core/internal/config"
	"github.com/adronaut/strategist-core/pkg/llm"
	"github.com/adronaut/strategist-core/pkg/orchestrator"
	"github.com/adronaut/strategist-core/pkg/persistence/memory"
	"github.com/adronaut/strategist-core/pkg/sharedlog"
	"github.com/adronaut/strategist-core/pkg/workflow"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the process configuration file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithFields(sharedlog.NewFields().Component("main").Operation("load_config").Error(err).Logrus()).
			Fatal("failed to load configuration")
	}
	applyLogLevel(logger, cfg.Logging.Level)

	watcher, err := config.NewWatcher(*configPath, logger)
	if err != nil {
		logger.WithFields(sharedlog.NewFields().Component("main").Operation("watch_config").Error(err).Logrus()).
			Warn("configuration hot reload disabled")
	} else {
		defer watcher.Close()
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		logger.WithFields(sharedlog.NewFields().Component("main").Operation("build_provider").Error(err).Logrus()).
			Fatal("failed to construct the configured LLM provider")
	}

	gateway := llm.New(provider, cfg.LLM, logger)
	gateway.SetDebug(cfg.Workflow.Debug)
	if watcher != nil {
		watcher.OnReload(func(next *config.Config) {
			gateway.SetDebug(next.Workflow.Debug)
			applyLogLevel(logger, next.Logging.Level)
		})
	}
	facade := orchestrator.New(gateway)
	store := memory.New()
	engine := workflow.New(facade, store, cfg.Workflow, logger)
	_ = engine // held by the (external) run control surface this binary would mount

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:    ":" + cfg.Server.MetricsPort,
		Handler: mux,
	}

	go func() {
		logger.WithFields(sharedlog.NewFields().Component("main").Operation("serve").Logrus()).
			Infof("metrics server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithFields(sharedlog.NewFields().Component("main").Operation("serve").Error(err).Logrus()).
				Fatal("metrics server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}

func applyLogLevel(logger *logrus.Logger, level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
}

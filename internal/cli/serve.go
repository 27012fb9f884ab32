package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"interviewer/internal/api"
	"interviewer/pkg/logx"
	"interviewer/pkg/metrics"
	"interviewer/pkg/persistence"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		addr  string
		model string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API and Prometheus metrics",
		Long: `Serve the HTTP session API:

  POST   /sessions        run a standard or explicit session
  GET    /sessions        list active sessions
  GET    /sessions/{id}   live state of an active session
  DELETE /sessions/{id}   cancel an active session
  GET    /results[/{id}]  stored results
  DELETE /results/{id}    delete a stored result
  GET    /usage           in-process usage since start
  GET    /health          foundry connectivity
  GET    /metrics         Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts, addr, model)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&model, "model", "", "Estimate usage with the tokenizer of this model")
	return cmd
}

func serve(parent context.Context, opts *globalOptions, addr, model string) error {
	logger := logx.NewLogger("serve")
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	usage := metrics.NewInternalRecorder()
	recorder := metrics.Multi{metrics.NewPrometheusRecorder(reg), usage}

	estimator, err := estimatorFor(model)
	if err != nil {
		return err
	}
	rt, err := opts.newRuntime(ctx, recorder, estimator)
	if err != nil {
		return err
	}

	store, err := opts.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	persistCh := make(chan *persistence.Request, 100)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		persistence.RunWorker(context.Background(), store, persistCh)
	}()

	handler := api.NewHandler(rt.orchestrator,
		api.WithHealthChecker(rt.client),
		api.WithResults(store),
		api.WithUsage(usage),
		api.WithPersistence(persistCh),
		api.WithBaseContext(ctx),
	)
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewRouter(handler, map[string]http.Handler{
			"/metrics": promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	stop()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown failed: %v", err)
	}

	// Background sessions see the cancelled base context and stop at their
	// next phase boundary; their results are still persisted.
	handler.Wait()
	close(persistCh)
	<-workerDone
	return runErr
}

package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitquiz-assignment-service/internal/app"
	"fitquiz-assignment-service/internal/config"
	"fitquiz-assignment-service/internal/metrics"
	transport "fitquiz-assignment-service/internal/transport/http"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP API and the auto-assign sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()
	log := rt.log

	sweeper := app.NewSweeper(rt.service, app.SweeperConfig{
		Interval:     config.TTLDuration(cfg.Sweep.Interval, 5*time.Minute),
		InitialDelay: config.TTLDuration(cfg.Sweep.InitialDelay, 10*time.Second),
	})
	if cfg.SweepEnabled() {
		sweeper.Start()
		defer sweeper.Stop()
	} else {
		log.Info("auto-assign sweeper disabled")
	}

	router := transport.NewHandler(rt.service, sweeper, log).Routes()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", metrics.Handler(rt.registry))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting quiz assignment service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	if n := rt.service.Applier().Pending(); n > 0 {
		log.WithField("pending", n).Warn("dropping delayed collection grants on shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

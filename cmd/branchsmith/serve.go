package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vilaca/branchsmith/internal/api"
	"github.com/vilaca/branchsmith/internal/api/github"
	"github.com/vilaca/branchsmith/internal/config"
	"github.com/vilaca/branchsmith/internal/server"
	"github.com/vilaca/branchsmith/internal/service"
	"github.com/vilaca/branchsmith/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}
			return runServe(a)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}

func runServe(a *app) error {
	cfg := a.cfg
	logger := server.NewStdLogger()

	records, err := store.Open(cfg.Store, logger.WithComponent("Store"))
	if err != nil {
		return err
	}
	defer records.Close()

	// Wire up dependencies (Dependency Injection / IoC)
	prService := newPRService(a, records, logger)
	handler := buildServer(a, prService, records, logger)

	poller := service.NewStatusPoller(prService, cfg, records, cfg.Poller.Interval, logger.WithComponent("StatusPoller"))
	if cfg.HasGitHubConfig() {
		log.Printf("GitHub integration enabled (cache: %v, %d service(s) configured)", cfg.GitHub.CacheDuration, len(cfg.Services))
		poller.Start()
		defer poller.Stop()
	} else {
		log.Printf("WARNING: No GitHub credentials configured. Set GITHUB_TOKEN and GITHUB_OWNER or add github.configs")
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting branchsmith on http://localhost%s (store: %s)", addr, cfg.Store.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildServer wires the HTTP handler.
// This is the composition root where all dependencies are created and injected.
func buildServer(a *app, prService *service.PullRequestService, records store.Store, logger *server.StdLogger) http.Handler {
	handler := server.NewHandler(server.HandlerConfig{
		Renderer:  server.NewJSONRenderer(),
		Logger:    logger.WithComponent("Server"),
		Generator: a.generator(),
		PRService: prService,
		Records:   records,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	return server.WithRequestLogging(mux, logger.WithComponent("HTTP"))
}

// newPRService builds the pull request service with one cached, rate
// limited GitHub client per configured credential set.
func newPRService(a *app, records store.Store, logger *server.StdLogger) *service.PullRequestService {
	cfg := a.cfg
	httpClient := &http.Client{
		Timeout: cfg.GitHub.Timeout,
	}
	limits := api.Limits{
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
		MaxConcurrent:     cfg.GitHub.MaxConcurrent,
	}

	factory := func(gh config.GitHubConfig) api.PullRequestClient {
		baseURL := gh.APIURL
		if baseURL == "" {
			baseURL = api.BaseURLForDomain(gh.Domain)
		}
		client := github.NewClient(api.ClientConfig{
			BaseURL: baseURL,
			Token:   gh.Token,
			Owner:   gh.Owner,
		}, httpClient, limits)

		// Wrap with caching layer
		return api.NewCachingClient(client, cfg.GitHub.CacheDuration, logger.WithComponent("Cache"))
	}

	return service.NewPullRequestService(cfg, factory, records, a.generator(), logger.WithComponent("PRService"))
}

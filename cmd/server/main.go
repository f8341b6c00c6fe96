package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dasmlab/pagetrans/pkg/config"
	"github.com/dasmlab/pagetrans/pkg/fetch"
	"github.com/dasmlab/pagetrans/pkg/server"
	"github.com/dasmlab/pagetrans/pkg/service"
	"github.com/dasmlab/pagetrans/pkg/translate"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	settings, err := config.FromEnv()
	if err != nil {
		logger.WithError(err).Fatal("Failed to read configuration from environment")
	}

	// Flags default to the environment so either can be used.
	flag.IntVar(&settings.GRPCPort, "port", settings.GRPCPort, "gRPC server port")
	flag.IntVar(&settings.HTTPPort, "http-port", settings.HTTPPort, "HTTP API port")
	flag.StringVar(&settings.ProvidersFile, "providers", settings.ProvidersFile, "Path to the provider registry YAML file")
	flag.StringVar(&settings.LogLevel, "log-level", settings.LogLevel, "Log level: debug, info, warn, error")
	flag.IntVar(&settings.MaxConcurrentJobs, "max-jobs", settings.MaxConcurrentJobs, "Maximum number of page jobs processed at once")
	flag.BoolVar(&settings.FetchEnabled, "fetch", settings.FetchEnabled, "Allow page jobs to fetch URLs")
	flag.Parse()

	if err := settings.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	level, err := logrus.ParseLevel(settings.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"grpc_port":      settings.GRPCPort,
		"http_port":      settings.HTTPPort,
		"providers_file": settings.ProvidersFile,
		"max_jobs":       settings.MaxConcurrentJobs,
		"fetch_enabled":  settings.FetchEnabled,
		"log_level":      level.String(),
	}).Info("Starting pagetrans server")

	registry, err := config.LoadProviders(settings.ProvidersFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.WithField("providers_file", settings.ProvidersFile).Warn("Provider registry not found, requests must carry an inline provider")
		registry, _ = config.NewRegistry(nil, "")
	case err != nil:
		logger.WithError(err).Fatal("Failed to load provider registry")
	default:
		logger.WithFields(logrus.Fields{
			"providers": registry.IDs(),
			"default":   registry.DefaultID(),
		}).Info("Loaded provider registry")
	}

	pipeline := service.NewPageTranslator(translate.NewClient(nil, logger), logger)
	translationService := service.NewTranslationService(pipeline, registry, logger)

	var fetcher service.PageFetcher
	if settings.FetchEnabled {
		fetcher = fetch.New(settings.FetchOptions(), logger)
	}
	jobQueue := service.NewJobQueue(logger)
	jobQueue.SetProcessor(service.NewJobProcessor(pipeline, fetcher, logger, settings.MaxConcurrentJobs, settings.JobTimeout))

	grpcServer, healthServer := server.NewGRPCServer(translationService, registry, logger)
	httpServer := server.NewHTTPServer(translationService, jobQueue, registry, logger, settings.HTTPPort)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", settings.GRPCPort))
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"port": settings.GRPCPort,
		}).Fatal("Failed to listen on port")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"port": settings.GRPCPort,
		}).Info("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("failed to serve gRPC: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return httpServer.Start()
	})

	g.Go(func() error {
		jobQueue.RunCleanup(gctx, 5*time.Minute, settings.JobRetention)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
		defer cancel()

		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("HTTP server did not shut down cleanly")
		}

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
			logger.Info("Server stopped gracefully")
		case <-shutdownCtx.Done():
			logger.Warn("Graceful shutdown timeout, forcing stop...")
			grpcServer.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
}

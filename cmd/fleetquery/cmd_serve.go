// Copyright (C) 2025 OpenPit IQ (engineering@openpitiq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/openpitiq/fleetquery/services/query"
	"github.com/openpitiq/fleetquery/services/query/config"
)

const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		port        int
		debug       bool
		feedbackDir string
		intentsFile string
		traces      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP routing service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(port, debug, feedbackDir, intentsFile, traces)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging and gin debug mode")
	cmd.Flags().StringVar(&feedbackDir, "feedback-dir", os.Getenv("FEEDBACK_DIR"),
		"BadgerDB directory for the classification feedback journal (empty disables)")
	cmd.Flags().StringVar(&intentsFile, "intents-file", os.Getenv("INTENTS_FILE"),
		"External intent definitions YAML, hot-reloaded on change (empty uses the embedded rules)")
	cmd.Flags().BoolVar(&traces, "traces", false, "Export OTel spans to stdout")
	return cmd
}

func runServe(port int, debug bool, feedbackDir, intentsFile string, traces bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if traces {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("trace provider shutdown", slog.String("error", err.Error()))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// An external intents file, when given, replaces the embedded rules
	// before the service loads them.
	if intentsFile != "" {
		if _, err := config.LoadIntentConfigFile(ctx, intentsFile); err != nil {
			return fmt.Errorf("load intents file: %w", err)
		}
	}

	svc, err := query.NewService(ctx, query.ServiceConfig{
		FeedbackDir: feedbackDir,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create query service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("service close", slog.String("error", err.Error()))
		}
	}()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("fleetquery"))
	if debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version})
	})

	v1 := router.Group("/v1")
	query.RegisterRoutes(v1, query.NewHandlers(svc))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("fleetquery listening",
			slog.String("address", srv.Addr),
			slog.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		svc.StartSweeper(gctx)
		return nil
	})
	if intentsFile != "" {
		g.Go(func() error {
			return config.WatchIntentsFile(gctx, intentsFile, logger, svc.ReloadIntents)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("fleetquery stopped")
	return nil
}

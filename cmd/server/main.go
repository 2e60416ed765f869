package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/hairstyle-api/internal/analysis"
	"github.com/Brownie44l1/hairstyle-api/internal/config"
	"github.com/Brownie44l1/hairstyle-api/internal/gallery"
	"github.com/Brownie44l1/hairstyle-api/internal/handlers"
	"github.com/Brownie44l1/hairstyle-api/internal/logging"
	"github.com/Brownie44l1/hairstyle-api/internal/metrics"
	"github.com/Brownie44l1/hairstyle-api/internal/model"
	"github.com/Brownie44l1/hairstyle-api/internal/recommend"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	metadata, err := model.LoadMetadata(cfg.Model.MetadataPath)
	if err != nil {
		logger.Fatal("failed to load model metadata", zap.Error(err))
	}

	table, err := recommend.Default().Merge(recommendationOverrides(cfg))
	if err != nil {
		logger.Fatal("invalid recommendation overrides", zap.Error(err))
	}
	if err := table.Validate(); err != nil {
		logger.Fatal("incomplete recommendation table", zap.Error(err))
	}

	logger.Info("loading model", zap.String("path", cfg.Model.Path))
	modelServer, err := model.NewServer(cfg.Model.Path, cfg.Model.LibraryPath, metadata)
	if err != nil {
		logger.Fatal("failed to initialize model server", zap.Error(err))
	}
	defer modelServer.Close()

	samples, err := gallery.New(cfg.Static.Dir, cfg.Static.MaxSamples, logger)
	if err != nil {
		logger.Fatal("failed to initialize sample gallery", zap.Error(err))
	}
	defer samples.Close()

	m := metrics.New()
	analyzer, err := analysis.New(modelServer, table, samples, analysis.Options{
		ImageSize: metadata.ImageSize,
		Layout:    metadata.Layout,
		CacheSize: cfg.Cache.Predictions,
		MaxPixels: cfg.Image.MaxPixels,
		Recorder:  m,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize analyzer", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	handlers.RegisterRoutes(r, handlers.NewHandler(analyzer, logger), cfg.Static.Dir, m, logger)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("model ready",
		zap.Strings("classes", metadata.Classes),
		zap.String("layout", string(metadata.Layout)))
	if err := serve(server, cfg.Server.ShutdownTimeout, logger, nil, nil); err != nil {
		logger.Error("server failed", zap.Error(err))
	}
}

func recommendationOverrides(cfg *config.Config) map[string]recommend.Recommendation {
	overrides := make(map[string]recommend.Recommendation, len(cfg.Recommendations))
	for label, rec := range cfg.Recommendations {
		overrides[label] = recommend.Recommendation{Female: rec.Female, Male: rec.Male}
	}
	return overrides
}

// serve runs server until it fails or a shutdown signal arrives, then lets
// in-flight requests finish within shutdownTimeout. A nil listener binds
// server.Addr; nil signals listens for SIGINT and SIGTERM.
func serve(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signals <-chan os.Signal) error {
	if signals == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		signals = ch
	}
	if listener == nil {
		var err error
		if listener, err = net.Listen("tcp", server.Addr); err != nil {
			return fmt.Errorf("listen on %s: %w", server.Addr, err)
		}
	}
	logger.Info("facial shape API listening", zap.String("addr", listener.Addr().String()))

	served := make(chan error, 1)
	go func() { served <- server.Serve(listener) }()

	var sig os.Signal
	select {
	case err := <-served:
		return ignoreServerClosed(err)
	case s, ok := <-signals:
		if !ok {
			return ignoreServerClosed(<-served)
		}
		sig = s
	}

	logger.Info("draining requests", zap.String("signal", sig.String()), zap.Duration("timeout", shutdownTimeout))
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return ignoreServerClosed(<-served)
}

func ignoreServerClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

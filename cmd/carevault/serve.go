package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hengadev/carevault"
	"github.com/hengadev/carevault/internal/health"
	"github.com/hengadev/carevault/internal/httpapi"
	"github.com/hengadev/carevault/internal/monitoring"
	s3bucket "github.com/hengadev/carevault/providers/s3"
)

const shutdownTimeout = 15 * time.Second

func serveCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides CAREVAULT_LISTEN_ADDR)")
	fs.Parse(args)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewPrometheusCollector(registry)

	rt, err := newRuntime(ctx, metrics)
	if err != nil {
		return err
	}
	logger := rt.logger.WithComponent("serve")
	if *addr != "" {
		rt.cfg.ListenAddr = *addr
	}

	// Running without the field key is never safe.
	cipher, err := rt.cipher(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Encryption key unavailable")
	}

	st, err := rt.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if users, err := st.CountUsers(ctx); err == nil && users == 0 {
		logger.Warn("No user accounts yet; create one with 'carevault adduser'")
	}

	auth, err := rt.authenticator(ctx, st)
	if err != nil {
		return err
	}
	tokens, err := httpapi.NewTokenIssuer(rt.cfg.JWTSecret, rt.cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("%s: %w", carevault.EnvJWTSecret, err)
	}

	records, err := carevault.NewService(st, st, st, cipher,
		carevault.WithServiceLogger(rt.logger),
		carevault.WithServiceMetrics(metrics),
	)
	if err != nil {
		return err
	}

	checker := health.NewChecker("carevault", carevault.Version)
	checks := []*health.Check{
		health.Database("database", st.Ping),
		health.Cipher("cipher", cipher.Encrypt, cipher.Open),
	}
	if rt.managed != nil {
		source := rt.managed
		checks = append(checks, health.SecretStore(source.Name(), func(ctx context.Context) error {
			_, err := source.GetSecret(ctx, carevault.EncryptionKeyName)
			return err
		}))
	}
	for _, check := range checks {
		if err := checker.Register(check); err != nil {
			return err
		}
	}

	options := []httpapi.Option{
		httpapi.WithLogger(rt.logger),
		httpapi.WithMetrics(metrics),
		httpapi.WithGatherer(registry),
		httpapi.WithHealthChecker(checker),
	}
	if rt.cfg.ExportBucket != "" {
		uploader, err := s3bucket.NewUploader(ctx, s3bucket.Config{Bucket: rt.cfg.ExportBucket, Region: rt.cfg.AWSRegion})
		if err != nil {
			return err
		}
		options = append(options, httpapi.WithUploader(uploader))
	}

	server := &http.Server{
		Addr:              rt.cfg.ListenAddr,
		Handler:           httpapi.NewServer(records, auth, tokens, options...),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", server.Addr, "secret_backend", rt.cfg.SecretBackend)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

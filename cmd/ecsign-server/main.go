package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/glinharesb/ecsign/internal/audit"
	"github.com/glinharesb/ecsign/internal/config"
	"github.com/glinharesb/ecsign/internal/crypto"
	"github.com/glinharesb/ecsign/internal/hsm"
	"github.com/glinharesb/ecsign/internal/interceptor"
	"github.com/glinharesb/ecsign/internal/keystore"
	"github.com/glinharesb/ecsign/internal/server"
	"github.com/glinharesb/ecsign/internal/wire"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	auditLogger := audit.NewLogger(cfg.AuditBuffer, os.Stdout)
	defer auditLogger.Close()

	rand := crypto.SystemRandom()

	var store keystore.Store
	if cfg.DataDir != "" {
		ps, err := keystore.NewPersistentStore(filepath.Join(cfg.DataDir, "keys.json"), cfg.MasterKey, rand)
		if err != nil {
			slog.Error("persistent store", "error", err)
			os.Exit(1)
		}
		store = ps
		slog.Info("using persistent store", "path", cfg.DataDir)
	} else {
		store = keystore.NewMemoryStore()
		slog.Info("using in-memory store")
	}
	hsmProvider := hsm.NewSoftwareHSM(rand)

	srv, err := newServer(cfg, store, hsmProvider, auditLogger)
	if err != nil {
		slog.Error("tls", "error", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		slog.Error("listen", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "addr", cfg.GRPCAddr, "tls", cfg.TLSCert != "")
		if err := srv.Serve(lis); err != nil {
			slog.Error("serve", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("shutdown complete")
	case <-time.After(cfg.ShutdownTimeout):
		slog.Warn("graceful shutdown timed out, forcing stop", "timeout", cfg.ShutdownTimeout)
		srv.Stop()
	}
}

// newServer builds the gRPC server. Reflection is not registered: the
// service speaks the ecsign codec only and has no descriptor in the proto
// registry, so reflection clients could list it but never call it.
func newServer(cfg config.Config, store keystore.Store, h hsm.Provider, a *audit.Logger) (*grpc.Server, error) {
	opts := interceptor.ServerOptions(cfg.AuthToken, cfg.RateLimitRPS)
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	srv := grpc.NewServer(opts...)
	wire.RegisterSignerServiceServer(srv, server.NewSignerServer(store, h, a))
	return srv, nil
}

package main

import (
	"path/filepath"
	"testing"

	"github.com/glinharesb/ecsign/internal/audit"
	"github.com/glinharesb/ecsign/internal/config"
	"github.com/glinharesb/ecsign/internal/crypto"
	"github.com/glinharesb/ecsign/internal/hsm"
	"github.com/glinharesb/ecsign/internal/keystore"
	"github.com/glinharesb/ecsign/internal/wire"
)

func TestNewServerRegistersOnlySignerService(t *testing.T) {
	logger := audit.NewLogger(8, nil)
	defer logger.Close()

	srv, err := newServer(config.Config{AuthToken: "t", RateLimitRPS: 10},
		keystore.NewMemoryStore(), hsm.NewSoftwareHSM(crypto.SystemRandom()), logger)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	defer srv.Stop()

	services := srv.GetServiceInfo()
	if len(services) != 1 {
		t.Fatalf("registered services = %v, want only %s", services, wire.ServiceName)
	}
	info, ok := services[wire.ServiceName]
	if !ok {
		t.Fatalf("%s not registered", wire.ServiceName)
	}
	if len(info.Methods) != 10 {
		t.Errorf("got %d methods, want 10", len(info.Methods))
	}
}

func TestNewServerBadTLS(t *testing.T) {
	logger := audit.NewLogger(8, nil)
	defer logger.Close()

	dir := t.TempDir()
	cfg := config.Config{
		TLSCert: filepath.Join(dir, "missing.crt"),
		TLSKey:  filepath.Join(dir, "missing.key"),
	}
	if _, err := newServer(cfg, keystore.NewMemoryStore(), hsm.NewSoftwareHSM(crypto.SystemRandom()), logger); err == nil {
		t.Fatal("expected error for missing TLS files")
	}
}

// Package logging includes tests for the zap logger helpers.
package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{Development: true, Service: "rentalcrawler"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected development logger to enable debug")
	}
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger defaults to info.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected production logger to drop debug entries")
	}
	logger.Info("production logger ready")
}

func TestNewConfigAppliesLevelAndService(t *testing.T) {
	t.Parallel()

	cfg, err := newConfig(Options{Level: "warn", Service: "rentalcrawler"})
	if err != nil {
		t.Fatalf("newConfig() error = %v", err)
	}
	if got := cfg.Level.Level(); got != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %v", got)
	}
	if got := cfg.InitialFields["service"]; got != "rentalcrawler" {
		t.Fatalf("expected service field, got %v", got)
	}
	if cfg.EncoderConfig.TimeKey != "ts" {
		t.Fatalf("expected ts time key, got %q", cfg.EncoderConfig.TimeKey)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

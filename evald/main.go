package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cloudx-io/opentender/logging"
	"github.com/cloudx-io/opentender/seal"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./evald.yaml or /etc/evald/evald.yaml)")
	envFile := flag.String("env-file", ".env", "Optional dotenv file with EVALD_* variables")
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	server, err := NewEvaluationServer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create evaluation server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("evaluation server failed", zap.Error(err))
	}
}

// loadKeyManager returns an ephemeral key when keyFile is empty. Otherwise
// it loads keyFile, generating and writing a new key there on first start so
// records stay verifiable across restarts.
func loadKeyManager(keyFile string) (*seal.KeyManager, error) {
	if keyFile == "" {
		return seal.NewKeyManager()
	}
	pemBytes, err := os.ReadFile(keyFile)
	if errors.Is(err, fs.ErrNotExist) {
		return createKeyFile(keyFile)
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return seal.LoadKeyManager(pemBytes)
}

func createKeyFile(keyFile string) (*seal.KeyManager, error) {
	km, err := seal.NewKeyManager()
	if err != nil {
		return nil, err
	}
	pemBytes, err := km.PrivateKeyPEM()
	if err != nil {
		return nil, err
	}
	// Never overwrite a key that appeared since the read.
	f, err := os.OpenFile(keyFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.Write(pemBytes); err != nil {
		f.Close()
		return nil, fmt.Errorf("write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return km, nil
}

// loadEnvFile applies a dotenv file if present. Variables already set in the
// environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

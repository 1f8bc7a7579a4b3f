package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/fibd/internal/logger"
	"github.com/marmos91/fibd/pkg/config"
	"github.com/marmos91/fibd/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/fibd/config.yaml)")
	host := flag.String("host", "", "Address to bind (overrides adapters.fib.host)")
	port := flag.Int("port", 0, "Port to listen on, 0 for an ephemeral port (overrides adapters.fib.port)")
	logLevel := flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides logging.level)")
	initConfig := flag.Bool("init", false, "Write the default config file and exit")
	force := flag.Bool("force", false, "With -init, overwrite an existing config file")

	flag.Parse()

	if *initConfig {
		runInit(*configPath, *force)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Only flags given on the command line override the file, so that
	// -port 0 can still request an ephemeral port.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Adapters.Fib.Host = *host
		case "port":
			cfg.Adapters.Fib.Port = *port
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := configureLogging(cfg.Logging); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	fmt.Println("fibd - Fibonacci TCP server")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	table, err := config.CreateCache(cfg, metricsResult.CacheMetrics)
	if err != nil {
		logger.Error("Failed to create cache: %v", err)
		os.Exit(1)
	}
	logger.Info("Cache: %s", cfg.Cache.Type)

	srv := server.New(table)

	adapters, err := config.CreateAdapters(cfg, metricsResult.FibMetrics)
	if err != nil {
		logger.Error("Failed to create adapters: %v", err)
		os.Exit(1)
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			logger.Error("Failed to register %s adapter: %v", a.Protocol(), err)
			os.Exit(1)
		}
	}

	logFibConfig(cfg)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error: %v", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func runInit(configPath string, force bool) {
	if configPath != "" {
		if err := config.InitConfigToPath(configPath, force); err != nil {
			log.Fatalf("Failed to initialize config: %v", err)
		}
		fmt.Printf("Config written to %s\n", configPath)
		return
	}

	path, err := config.InitConfig(force)
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	fmt.Printf("Config written to %s\n", path)
}

func configureLogging(cfg config.LoggingConfig) error {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)
	return logger.SetOutput(cfg.Output)
}

func logFibConfig(cfg *config.Config) {
	fibCfg := cfg.Adapters.Fib

	logger.Info("Fib adapter configuration:")
	logger.Info("  Address: %s:%d", fibCfg.Host, fibCfg.Port)
	if fibCfg.MaxConnections > 0 {
		logger.Info("  Max connections: %d", fibCfg.MaxConnections)
	} else {
		logger.Info("  Max connections: unlimited")
	}
	if fibCfg.MaxIndex > 0 {
		logger.Info("  Max index: %d", fibCfg.MaxIndex)
	} else {
		logger.Info("  Max index: unlimited")
	}
	logger.Info("  Read timeout: %v", fibCfg.Timeouts.Read)
	logger.Info("  Write timeout: %v", fibCfg.Timeouts.Write)
	logger.Info("  Shutdown timeout: %v", fibCfg.ShutdownTimeout)
	if fibCfg.RateLimit.RequestsPerSecond > 0 {
		logger.Info("  Rate limit: %d/s (burst %d)", fibCfg.RateLimit.RequestsPerSecond, fibCfg.RateLimit.Burst)
	}
}

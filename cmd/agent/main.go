package main

import (
	"context"
	"flag"
	"os"

	"github.com/askarbek/ride-driver-agent/config"
	"github.com/askarbek/ride-driver-agent/internal/app"
	"github.com/askarbek/ride-driver-agent/pkg/logger"
)

var (
	helpFlag   = flag.Bool("help", false, "Show help message")
	configPath = flag.String("config-path", "config.yaml", "Path to the config yaml file")
)

func main() {
	flag.Parse()
	if *helpFlag {
		config.PrintHelp()
		return
	}

	ctx := context.Background()
	log := logger.InitLogger("driver-agent", logger.LevelDebug)

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		log.Error(ctx, "failed to configure application", err)
		config.PrintHelp()
		os.Exit(1)
	}

	if logger.ValidateLogLevel(cfg.LogLevel) {
		log = logger.InitLogger("driver-agent", cfg.LogLevel)
	}

	// Printing configuration
	config.PrintConfig(cfg)

	application, err := app.NewApplication(ctx, *cfg, log)
	if err != nil {
		log.Error(ctx, "failed to init application", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.Error(ctx, "failed to run application", err)
		os.Exit(1)
	}
}

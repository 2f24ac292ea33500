package config

import (
	"fmt"
)

const HelpMessage = `ride-driver-agent - driver-side booking lifecycle agent

Usage:
  agent [flags]

Flags:
  -config-path string   Path to the config yaml file (default "config.yaml")
  -help                 Show this help message

Configuration is read from the yaml file and may be overridden with
environment variables (DRIVER_ID, BACKEND_BASE_URL, NOTIFY_TRANSPORT, ...).
`

func PrintHelp() {
	fmt.Print(HelpMessage)
}

// PrintConfig prints the effective configuration with secrets elided.
func PrintConfig(cfg *Config) {
	fmt.Println("Configuration:")
	fmt.Printf("  driver id:          %s\n", valueOrUnset(cfg.Driver.ID))
	fmt.Printf("  driver phone:       %s\n", valueOrUnset(cfg.Driver.Phone))
	fmt.Printf("  backend url:        %s\n", cfg.Backend.BaseURL)
	fmt.Printf("  backend timeout:    %s\n", cfg.Backend.CallTimeout)
	fmt.Printf("  bearer token:       %s\n", maskSecret(cfg.Backend.BearerToken))
	fmt.Printf("  notify transport:   %s\n", cfg.Notify.Transport)
	fmt.Printf("  sample interval:    %s\n", cfg.Location.SampleInterval)
	fmt.Printf("  control api:        %s:%s\n", cfg.ControlAPI.Host, cfg.ControlAPI.Port)
	fmt.Printf("  log level:          %s\n", cfg.LogLevel)
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}

func maskSecret(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

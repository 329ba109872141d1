package main

import (
	"flag"
	"os"
	"time"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("MARS_CONFIG", "configs/mars-sensor.json"),
		"Path to configuration file (env: MARS_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level", "",
		"Override log level: debug, info, warn, error")

	flag.StringVar(&cfg.LogFormat, "log-format", "",
		"Override log format: json, text")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		30*time.Second,
		"Graceful shutdown timeout")

	flag.BoolVar(&cfg.ShowVersion, "version", false,
		"Print version and exit")

	flag.BoolVar(&cfg.Validate, "validate", false,
		"Validate configuration and exit")

	flag.Parse()
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

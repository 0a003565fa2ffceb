package main

import (
	"fmt"

	"github.com/helix-imaging/launchpad/internal/config"
	"github.com/helix-imaging/launchpad/internal/observability"
	"github.com/helix-imaging/launchpad/internal/runs"
)

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Path to JSON config file (default: LAUNCHPAD_* environment)")
}

func loadSettings() (*config.Settings, error) {
	var settings *config.Settings
	if configFile != "" {
		s, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		settings = s
	} else {
		s := config.FromEnv()
		settings = &s
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// newService wires the full service stack from settings. Callers should defer
// log.Sync().
func newService() (*runs.Service, *config.Settings, observability.Logger, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := observability.New(settings.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	svc, err := runs.NewService(settings, nil, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return svc, settings, log, nil
}

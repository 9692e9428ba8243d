package main

import (
	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/pkg/models"
)

// defaultRetry builds the engine-wide retry policy from configuration.
func defaultRetry(cfg *config.Config) models.RetryPolicy {
	return models.RetryPolicy{
		Count: cfg.Defaults.RetryCount,
		Delay: cfg.Defaults.RetryDelay,
	}
}

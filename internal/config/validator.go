package config

import (
	"strings"

	"github.com/aleister1102/driftwatch/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateConfig validates the loaded configuration using struct tags plus
// cross-field rules the tags cannot express.
func ValidateConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return models.NewValidationError("config", nil, "configuration cannot be nil")
	}

	if err := validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return models.NewValidationError(
				strings.ToLower(first.Namespace()),
				first.Value(),
				"failed rule '"+first.Tag()+"'",
			)
		}
		return models.WrapError(err, "config validation")
	}

	seen := make(map[string]struct{}, len(cfg.Proxies))
	for _, p := range cfg.Proxies {
		if p.Name == "" {
			return models.NewValidationError("proxies.name", p.Name, "proxy name cannot be empty")
		}
		if _, dup := seen[p.Name]; dup {
			return models.NewValidationError("proxies.name", p.Name, "duplicate proxy name")
		}
		seen[p.Name] = struct{}{}
	}

	if cfg.DefaultProxy != "" && cfg.ProxyByName(cfg.DefaultProxy) == nil {
		return models.NewValidationError("default_proxy", cfg.DefaultProxy, "default proxy is not in the proxy table")
	}

	if cfg.Scheduler.MinRecheckSeconds > 0 && cfg.Scheduler.RecheckIntervalSeconds > 0 &&
		cfg.Scheduler.RecheckIntervalSeconds < cfg.Scheduler.MinRecheckSeconds {
		return models.NewValidationError(
			"scheduler_config.recheck_interval_seconds",
			cfg.Scheduler.RecheckIntervalSeconds,
			"default interval below the minimum recheck floor",
		)
	}

	return nil
}

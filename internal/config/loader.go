package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aleister1102/driftwatch/internal/models"

	"gopkg.in/yaml.v3"
)

// GetConfigPath determines the configuration file path.
// Priority:
// 1. -config command-line flag
// 2. DRIFTWATCH_CONFIG_PATH environment variable
// 3. config.yaml / config.json in the current working directory
// 4. config.yaml / config.json in the executable's directory
func GetConfigPath(configFilePathFlag string) string {
	if configFilePathFlag != "" {
		if _, err := os.Stat(configFilePathFlag); err == nil {
			return configFilePathFlag
		}
	}

	envPath := os.Getenv(EnvConfigPath)
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	cwd, errCwd := os.Getwd()
	exePath, errExe := os.Executable()
	exeDir := ""
	if errExe == nil {
		exeDir = filepath.Dir(exePath)
	}

	defaultFiles := []string{"config.yaml", "config.json"}
	locations := []string{}
	if errCwd == nil {
		locations = append(locations, cwd)
	}
	if exeDir != "" && (errCwd != nil || exeDir != cwd) {
		locations = append(locations, exeDir)
	}

	for _, loc := range locations {
		for _, file := range defaultFiles {
			path := filepath.Join(loc, file)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadGlobalConfig loads, merges with defaults, applies environment
// overrides, and validates the global configuration. An empty path yields
// pure defaults.
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, models.WrapError(err, "reading config file "+path)
		}
		if strings.HasSuffix(path, ".json") {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, models.WrapError(err, "parsing JSON config "+path)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, models.WrapError(err, "parsing YAML config "+path)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies the environment-level values the engine
// consumes directly: the minimum recheck floor and the worker count.
func applyEnvOverrides(cfg *GlobalConfig) {
	if v := os.Getenv(EnvMinRecheckSeconds); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Scheduler.MinRecheckSeconds = secs
		}
	}
	if v := os.Getenv(EnvWorkerCount); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Worker.Count = n
		}
	}
}

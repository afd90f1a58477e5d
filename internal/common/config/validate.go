package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lugx/beacon/internal/common/configtypes"
	"github.com/lugx/beacon/internal/common/yamlutil"
)

var metricsNamespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// loadYAML reads path and decodes it strictly into out
func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yamlutil.UnmarshalStrict(data, out); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// applyLogDefaults enables the console when no output is configured
func applyLogDefaults(log *configtypes.LogConfig) {
	if log.Level == "" {
		log.Level = configtypes.LogLevelInfo
	}
	if !log.Console.Enabled && !log.File.Enabled {
		log.Console.Enabled = true
	}
	if log.Console.Format == "" {
		log.Console.Format = configtypes.LogFormatConsole
	}
	if log.File.Format == "" {
		log.File.Format = configtypes.LogFormatText
	}
}

func validateLog(log configtypes.LogConfig) error {
	if !configtypes.ValidLogLevels[log.Level] {
		return fmt.Errorf("invalid log.level: %s (must be debug, info, warn, or error)", log.Level)
	}
	for name, level := range map[string]string{"console": log.Console.Level, "file": log.File.Level} {
		if level != "" && !configtypes.ValidLogLevels[level] {
			return fmt.Errorf("invalid log.%s.level: %s", name, level)
		}
	}

	if log.Console.Enabled && log.Console.Format != configtypes.LogFormatJSON && log.Console.Format != configtypes.LogFormatConsole {
		return fmt.Errorf("invalid log.console.format: %s (must be json or console)", log.Console.Format)
	}

	if !log.File.Enabled {
		return nil
	}
	if log.File.Path == "" {
		return fmt.Errorf("log.file.path must be specified when file logging is enabled")
	}
	if log.File.Format != configtypes.LogFormatJSON && log.File.Format != configtypes.LogFormatText {
		return fmt.Errorf("invalid log.file.format: %s (must be json or text)", log.File.Format)
	}
	return validateRotation("log.file.rotation", log.File.Rotation)
}

func validateRotation(prefix string, r configtypes.RotationConfig) error {
	if r.MaxSize < 0 {
		return fmt.Errorf("%s.max_size must be >= 0, got %d", prefix, r.MaxSize)
	}
	if r.MaxAge < 0 {
		return fmt.Errorf("%s.max_age must be >= 0, got %d", prefix, r.MaxAge)
	}
	if r.MaxBackups < 0 {
		return fmt.Errorf("%s.max_backups must be >= 0, got %d", prefix, r.MaxBackups)
	}
	return nil
}

// validateMetrics also rejects a metrics port equal to serverListen's port
func validateMetrics(m configtypes.MetricsConfig, serverListen string) error {
	if m.Enabled {
		if m.Listen == "" {
			return fmt.Errorf("metrics.listen is required when metrics enabled")
		}
		if err := configtypes.ValidateListenAddress(m.Listen); err != nil {
			return fmt.Errorf("invalid metrics.listen: %w", err)
		}

		if serverListen != "" {
			metricsPort, err1 := configtypes.GetPortFromListen(m.Listen)
			serverPort, err2 := configtypes.GetPortFromListen(serverListen)
			if err1 == nil && err2 == nil && metricsPort == serverPort {
				return fmt.Errorf("metrics.listen port (%d) must differ from server.listen port (%d) when metrics enabled", metricsPort, serverPort)
			}
		}
	}

	if m.Path != "" && !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("invalid metrics.path: %s (must start with /)", m.Path)
	}
	if m.Namespace != "" && !metricsNamespacePattern.MatchString(m.Namespace) {
		return fmt.Errorf("invalid metrics.namespace: %s (must match [a-zA-Z_][a-zA-Z0-9_]*)", m.Namespace)
	}
	return nil
}

// GetConfigPath resolves the config file path
func GetConfigPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("config path cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("config file does not exist: %s", absPath)
	}

	return absPath, nil
}

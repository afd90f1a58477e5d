package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/lugx/beacon/internal/common/configtypes"
	"github.com/lugx/beacon/pkg/types"
)

const (
	defaultNavigateTimeout = 30 * time.Second
	defaultDrainTimeout    = 10 * time.Second
)

// AgentConfig configures the beacon agent
type AgentConfig struct {
	Collector    AgentCollectorConfig  `yaml:"collector"`
	Browser      BrowserConfig         `yaml:"browser"`
	DrainTimeout types.Duration        `yaml:"drain_timeout"`
	Log          configtypes.LogConfig `yaml:"log"`
}

type AgentCollectorConfig struct {
	URL string `yaml:"url"`
}

// BrowserConfig is used when the agent drives a Chrome tab
type BrowserConfig struct {
	Headless        *bool          `yaml:"headless"`
	ExecPath        string         `yaml:"exec_path"`
	NavigateTimeout types.Duration `yaml:"navigate_timeout"`
}

// IsHeadless defaults to true when unset
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// LoadAgentConfig reads, defaults and validates an agent config file
func LoadAgentConfig(path string) (*AgentConfig, error) {
	var cfg AgentConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (cfg *AgentConfig) applyDefaults() {
	applyLogDefaults(&cfg.Log)

	if cfg.Browser.NavigateTimeout == 0 {
		cfg.Browser.NavigateTimeout = types.Duration(defaultNavigateTimeout)
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = types.Duration(defaultDrainTimeout)
	}
}

func (cfg *AgentConfig) Validate() error {
	if cfg.Collector.URL == "" {
		return fmt.Errorf("collector.url is required")
	}
	u, err := url.Parse(cfg.Collector.URL)
	if err != nil {
		return fmt.Errorf("invalid collector.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid collector.url: %s (scheme must be http or https)", cfg.Collector.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid collector.url: %s (missing host)", cfg.Collector.URL)
	}

	if cfg.Browser.NavigateTimeout < 0 {
		return fmt.Errorf("browser.navigate_timeout must be positive")
	}
	if cfg.DrainTimeout < 0 {
		return fmt.Errorf("drain_timeout must be positive")
	}

	return validateLog(cfg.Log)
}

package wraith

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"wraith/captcha"
	"wraith/fingerprint"
	"wraith/jsengine"
	"wraith/proxy"
	"wraith/timing"
	"wraith/transport"
	"wraith/useragent"
)

// FeatureToggles gates which adaptive subsystems participate in a request
// (spec §6).
type FeatureToggles struct {
	Metrics        bool
	Performance    bool
	TLS            bool
	AntiDetection  bool
	Spoofing       bool
	AdaptiveTiming bool
	ML             bool
}

// DefaultFeatureToggles enables every subsystem — the common case for a
// caller who wants the full adaptive bundle.
func DefaultFeatureToggles() FeatureToggles {
	return FeatureToggles{
		Metrics: true, Performance: true, TLS: true, AntiDetection: true,
		Spoofing: true, AdaptiveTiming: true, ML: true,
	}
}

// ProxyConfig shapes the proxy manager's rotation and ban behavior (spec
// §6).
type ProxyConfig struct {
	Strategy         proxy.Strategy
	BanTime          time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// Config is the scraper's full set of recognized options (spec §6).
// Interpreter, Captcha, and Transport are handle references to external
// collaborators — they're never loaded from YAML, they're wired in
// programmatically by the caller after (or instead of) LoadYAML, per spec
// §6's note that these remain external collaborators.
type Config struct {
	UserAgent            useragent.SelectionOptions
	UserAgentCatalogPath string

	Proxies     []string
	ProxyConfig ProxyConfig

	Features FeatureToggles

	BehaviorProfile     timing.ProfileName
	SpoofingConsistency fingerprint.Consistency

	Captcha     captcha.Provider
	Interpreter jsengine.Interpreter
	Transport   transport.Transport // overrides the default collytransport-backed factory when set

	MaxChallengeAttempts int

	BaseHeaders map[string]string
	Logger      *zap.Logger
}

// yamlConfig is the serializable subset of Config: the primitive fields a
// caller can express in a config file. Handle fields (Captcha, Interpreter,
// Transport, Logger) are never part of it — those are wired in code.
type yamlConfig struct {
	UserAgent struct {
		Custom      string `yaml:"custom"`
		Platform    string `yaml:"platform"`
		Browser     string `yaml:"browser"`
		Desktop     bool   `yaml:"desktop"`
		Mobile      bool   `yaml:"mobile"`
		AllowBrotli bool   `yaml:"allow_brotli"`
	} `yaml:"user_agent"`
	UserAgentCatalogPath string `yaml:"user_agent_catalog_path"`
	Proxies []string `yaml:"proxies"`
	ProxyConfig struct {
		Strategy         string        `yaml:"rotation_strategy"`
		BanTime          time.Duration `yaml:"ban_time"`
		FailureThreshold int           `yaml:"failure_threshold"`
		Cooldown         time.Duration `yaml:"cooldown"`
	} `yaml:"proxy_config"`
	Features struct {
		Metrics        bool `yaml:"metrics"`
		Performance    bool `yaml:"performance"`
		TLS            bool `yaml:"tls"`
		AntiDetection  bool `yaml:"anti_detection"`
		Spoofing       bool `yaml:"spoofing"`
		AdaptiveTiming bool `yaml:"adaptive_timing"`
		ML             bool `yaml:"ml"`
	} `yaml:"features"`
	BehaviorProfile      string `yaml:"behavior_profile"`
	SpoofingConsistency  string `yaml:"spoofing_consistency"`
	MaxChallengeAttempts int    `yaml:"max_challenge_attempts"`
}

// LoadYAML reads a Configuration from a YAML file (the teacher's bookmarks
// config loads hand-rolled JSON; the rest of the retrieved corpus uses
// gopkg.in/yaml.v3, which this module adopts for its own config — see
// SPEC_FULL.md's AMBIENT STACK section). Handle-typed fields (Captcha,
// Interpreter, Transport, Logger) are left zero and must be set by the
// caller afterward.
func LoadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wraith: reading config %q: %w", path, err)
	}
	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("wraith: parsing config %q: %w", path, err)
	}

	cfg := &Config{
		UserAgent: useragent.SelectionOptions{
			Custom:      y.UserAgent.Custom,
			Platform:    y.UserAgent.Platform,
			Browser:     y.UserAgent.Browser,
			Desktop:     y.UserAgent.Desktop,
			Mobile:      y.UserAgent.Mobile,
			AllowBrotli: y.UserAgent.AllowBrotli,
		},
		UserAgentCatalogPath: y.UserAgentCatalogPath,
		Proxies:              y.Proxies,
		ProxyConfig: ProxyConfig{
			Strategy:         proxy.Strategy(y.ProxyConfig.Strategy),
			BanTime:          y.ProxyConfig.BanTime,
			FailureThreshold: y.ProxyConfig.FailureThreshold,
			Cooldown:         y.ProxyConfig.Cooldown,
		},
		Features: FeatureToggles{
			Metrics:        y.Features.Metrics,
			Performance:    y.Features.Performance,
			TLS:            y.Features.TLS,
			AntiDetection:  y.Features.AntiDetection,
			Spoofing:       y.Features.Spoofing,
			AdaptiveTiming: y.Features.AdaptiveTiming,
			ML:             y.Features.ML,
		},
		BehaviorProfile:      timing.ProfileName(y.BehaviorProfile),
		SpoofingConsistency:  parseConsistency(y.SpoofingConsistency),
		MaxChallengeAttempts: y.MaxChallengeAttempts,
	}
	return cfg, nil
}

func parseConsistency(s string) fingerprint.Consistency {
	switch s {
	case "domain":
		return fingerprint.ConsistencyDomain
	case "global":
		return fingerprint.ConsistencyGlobal
	default:
		return fingerprint.ConsistencyNone
	}
}

// ConfigError marks an invalid Config value.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "wraith: invalid configuration: " + e.Reason }

func (c *Config) normalize() {
	if c.MaxChallengeAttempts < 1 {
		c.MaxChallengeAttempts = 3
	}
	if c.BehaviorProfile == "" {
		c.BehaviorProfile = timing.ProfileFocused
	}
	if c.ProxyConfig.Strategy == "" {
		c.ProxyConfig.Strategy = proxy.StrategySmart
	}
	if c.ProxyConfig.BanTime <= 0 {
		c.ProxyConfig.BanTime = 5 * time.Minute
	}
	if c.ProxyConfig.FailureThreshold <= 0 {
		c.ProxyConfig.FailureThreshold = 3
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.BaseHeaders == nil {
		c.BaseHeaders = map[string]string{}
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/docker/go-units"
	"github.com/golang/glog"
	"github.com/spf13/viper"
)

// Configuration is the agent's full configuration surface. It is loaded once
// at startup; the sampling rate may later be replaced by remote refresh.
type Configuration struct {
	// PubxId identifies the publisher to the collector.
	PubxId string `mapstructure:"pubx_id" json:"pubxId"`
	// HostName is the collector host receiving analytics beacons.
	HostName string `mapstructure:"host_name" json:"hostName"`
	// SamplingRate r reports only auctions whose id hash is 0 mod r.
	SamplingRate int `mapstructure:"sampling_rate" json:"samplingRate"`
	// MaxBatchSize bounds the serialized size of one beacon call.
	MaxBatchSize string `mapstructure:"max_batch_size" json:"maxBatchSize"`
	// FlushInterval, when set, drains the send queue periodically in
	// addition to the page-hide flush. Empty disables the timer.
	FlushInterval string `mapstructure:"flush_interval" json:"flushInterval"`
	// ConfigRefreshDelay, when set, polls the collector for configuration
	// updates. Empty disables polling.
	ConfigRefreshDelay string `mapstructure:"configuration_refresh_delay" json:"configRefreshDelay"`
	// PrebidVersion is the host framework version echoed in beacon URLs.
	PrebidVersion string `mapstructure:"prebid_version" json:"prebidVersion"`

	Session   Session   `mapstructure:"session" json:"session"`
	Replay    Replay    `mapstructure:"replay" json:"replay"`
	Collector Collector `mapstructure:"collector" json:"collector"`
}

// Session describes the ambient browsing context the replay agent presents to
// the module in place of real browser globals.
type Session struct {
	PageURL     string   `mapstructure:"page_url" json:"pageUrl"`
	UserAgent   string   `mapstructure:"user_agent" json:"userAgent"`
	Platform    string   `mapstructure:"platform" json:"platform"`
	UserIdKeys  []string `mapstructure:"user_id_keys" json:"userIdKeys"`
	ConsentKeys []string `mapstructure:"consent_keys" json:"consentKeys"`
	Pmac        string   `mapstructure:"pmac" json:"pmac"`
}

// Replay points at a recorded host-framework event log (JSON lines).
type Replay struct {
	File string `mapstructure:"file" json:"file"`
}

// Collector optionally runs a local debug endpoint that logs received
// batches.
type Collector struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Addr    string `mapstructure:"addr" json:"addr"`
}

// New validates the viper-held configuration and returns it.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	glog.Infof("[pubx] configuration loaded for publisher %s (host %s, sampling 1/%d)", c.PubxId, c.HostName, c.SamplingRate)
	return &c, nil
}

func (cfg *Configuration) validate() error {
	if cfg.PubxId == "" {
		return fmt.Errorf("pubx_id cannot be empty when analytics is enabled")
	}
	if cfg.HostName == "" {
		return fmt.Errorf("host_name cannot be empty when analytics is enabled")
	}
	if cfg.SamplingRate < 1 {
		return fmt.Errorf("sampling_rate must be a positive integer, got %d", cfg.SamplingRate)
	}
	if _, err := units.FromHumanSize(cfg.MaxBatchSize); err != nil {
		return fmt.Errorf("error parsing max_batch_size: %v", err)
	}
	if cfg.FlushInterval != "" {
		if _, err := time.ParseDuration(cfg.FlushInterval); err != nil {
			return fmt.Errorf("error parsing flush_interval: %v", err)
		}
	}
	if cfg.ConfigRefreshDelay != "" {
		if _, err := time.ParseDuration(cfg.ConfigRefreshDelay); err != nil {
			return fmt.Errorf("error parsing configuration_refresh_delay: %v", err)
		}
	}
	if _, err := semver.ParseTolerant(strings.TrimPrefix(cfg.PrebidVersion, "v")); err != nil {
		return fmt.Errorf("prebid_version %q is not a valid version: %v", cfg.PrebidVersion, err)
	}
	return nil
}

// MaxBatchBytes returns the parsed batch ceiling. validate has already
// guaranteed the value parses.
func (cfg *Configuration) MaxBatchBytes() int64 {
	size, _ := units.FromHumanSize(cfg.MaxBatchSize)
	return size
}

// SetupViper establishes defaults and wires the optional config file and
// environment overrides.
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("host_name", "api.pbxai.com")
	v.SetDefault("sampling_rate", 1)
	v.SetDefault("max_batch_size", "64KB")
	v.SetDefault("flush_interval", "")
	v.SetDefault("configuration_refresh_delay", "")
	v.SetDefault("prebid_version", "v8.52.0")
	v.SetDefault("session.page_url", "")
	v.SetDefault("session.user_agent", "")
	v.SetDefault("session.platform", "")
	v.SetDefault("session.pmac", "")
	v.SetDefault("replay.file", "")
	v.SetDefault("collector.enabled", false)
	v.SetDefault("collector.addr", "localhost:8076")

	v.SetEnvPrefix("PUBX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.ReadInConfig()
}

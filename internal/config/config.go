// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "500ms" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// PLCConfig describes the controller link and its poll cadence.
type PLCConfig struct {
	Address          string   `yaml:"address"`
	Port             int      `yaml:"port"`
	UnitID           int      `yaml:"unit_id"`
	PollInterval     Duration `yaml:"poll_interval"`
	ReconnectBackoff Duration `yaml:"reconnect_backoff"`
	RequestTimeout   Duration `yaml:"request_timeout"`
	// ProcessMatch is the cmdline substring the kill-switch scans for when
	// resolving the controller process.
	ProcessMatch string `yaml:"process_match"`
}

// VisionConfig describes the anomaly inference loop.
type VisionConfig struct {
	APIKeyEnv        string   `yaml:"api_key_env"`
	BaseURL          string   `yaml:"base_url"`
	Models           []string `yaml:"models"`
	DeviceIndex      int      `yaml:"device_index"`
	CaptureInterval  Duration `yaml:"capture_interval"`
	CaptureRetry     Duration `yaml:"capture_retry"`
	RateLimitBackoff Duration `yaml:"rate_limit_backoff"`
	RequestTimeout   Duration `yaml:"request_timeout"`
}

// HostConfig describes host resource sampling.
type HostConfig struct {
	SampleInterval Duration `yaml:"sample_interval"`
}

// AdminConfig describes the read-only status endpoint. An empty addr
// disables it.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root sentinel configuration.
type Config struct {
	PLC    PLCConfig    `yaml:"plc"`
	Vision VisionConfig `yaml:"vision"`
	Host   HostConfig   `yaml:"host"`
	Admin  AdminConfig  `yaml:"admin"`
}

// Default returns the documented defaults. Load starts from these, so a
// partial YAML file only overrides what it names.
func Default() *Config {
	return &Config{
		PLC: PLCConfig{
			Address:          "localhost",
			Port:             5020,
			UnitID:           1,
			PollInterval:     Duration(500 * time.Millisecond),
			ReconnectBackoff: Duration(2 * time.Second),
			RequestTimeout:   Duration(5 * time.Second),
			ProcessMatch:     "sentinel-plc",
		},
		Vision: VisionConfig{
			APIKeyEnv:        "SENTINEL_API_KEY",
			Models:           []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo"},
			DeviceIndex:      0,
			CaptureInterval:  Duration(2500 * time.Millisecond),
			CaptureRetry:     Duration(time.Second),
			RateLimitBackoff: Duration(2 * time.Second),
			RequestTimeout:   Duration(30 * time.Second),
		},
		Host:  HostConfig{SampleInterval: Duration(time.Second)},
		Admin: AdminConfig{Addr: ":8080"},
	}
}

// Load reads the YAML config at configPath on top of the defaults and applies
// environment overrides. A non-empty schemaPath validates the file against a
// CUE schema first; an empty configPath yields defaults plus env overrides.
func Load(configPath, schemaPath string) (*Config, error) {
	cfg := Default()
	if configPath != "" {
		if schemaPath != "" {
			if err := ValidateWithCue(configPath, schemaPath); err != nil {
				return nil, err
			}
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot unmarshal config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment overrides onto the loaded config. These match
// the knobs the original deployment exposed.
func (c *Config) applyEnv() {
	if v := os.Getenv("PLC_ADDRESS"); v != "" {
		c.PLC.Address = v
	}
	if v := os.Getenv("PLC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.PLC.Port = p
		}
	}
	if v := os.Getenv("CAMERA_INDEX"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.Vision.DeviceIndex = i
		}
	}
	if v := os.Getenv("ADMIN_ADDR"); v != "" {
		c.Admin.Addr = v
	}
}

// Package config assembles the tool's configuration from flags, environment
// variables (OPENCLAW_*), an optional config file, and defaults — in that
// precedence order. The result is an immutable struct constructed once at
// startup and passed down explicitly; nothing reads ambient configuration
// after Load returns.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// AWS
	Region     string `mapstructure:"region"`
	AWSProfile string `mapstructure:"aws-profile"`

	// Instance shape
	InstanceType string `mapstructure:"instance-type"`
	DiskSizeGB   int32  `mapstructure:"disk-size"`
	ImageFamily  string `mapstructure:"image-family"`

	// Naming and access
	Name    string `mapstructure:"name"`
	SSHUser string `mapstructure:"ssh-user"`

	// Bootstrap
	TailscaleAuthKey string `mapstructure:"tailscale-auth-key"`

	// Reachability and identity
	Private    bool `mapstructure:"private"`
	AttachRole bool `mapstructure:"attach-role"`

	// Local state
	StateFile string `mapstructure:"state-file"`
	KeyDir    string `mapstructure:"key-dir"`

	// Bounded waits on asynchronous remote transitions
	ProvisionTimeout time.Duration `mapstructure:"provision-timeout"`
}

// Load reads configuration from flags (already bound by the command layer),
// environment, config file, and defaults.
func Load() (*Config, error) {
	viper.SetDefault("region", "us-west-2")
	viper.SetDefault("aws-profile", "")
	viper.SetDefault("instance-type", "t3.medium")
	viper.SetDefault("disk-size", 50)
	viper.SetDefault("image-family", "ubuntu-24.04")
	viper.SetDefault("name", "openclaw")
	viper.SetDefault("ssh-user", "ubuntu")
	viper.SetDefault("tailscale-auth-key", "")
	viper.SetDefault("private", false)
	viper.SetDefault("attach-role", false)
	viper.SetDefault("state-file", ".instance-info")
	viper.SetDefault("key-dir", ".")
	viper.SetDefault("provision-timeout", 10*time.Minute)

	viper.SetEnvPrefix("OPENCLAW")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file is optional.
	viper.SetConfigName("openclaw")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/openclaw")
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region cannot be empty")
	}
	if c.InstanceType == "" {
		return fmt.Errorf("instance-type cannot be empty")
	}
	if c.DiskSizeGB < 8 {
		return fmt.Errorf("disk-size must be at least 8 GB, got %d", c.DiskSizeGB)
	}
	if c.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if c.SSHUser == "" {
		return fmt.Errorf("ssh-user cannot be empty")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state-file cannot be empty")
	}
	if c.ProvisionTimeout <= 0 {
		return fmt.Errorf("provision-timeout must be positive, got %s", c.ProvisionTimeout)
	}
	return nil
}

// ProfileName returns the IAM instance profile to attach, or empty when the
// role attachment toggle is off. The profile itself is expected to exist;
// creating IAM resources is out of scope for this tool.
func (c *Config) ProfileName() string {
	if !c.AttachRole {
		return ""
	}
	return c.Name + "-profile"
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings are the runner settings. Precedence, lowest first: defaults,
// .cirun.yaml, CIRUN_* environment variables, command line flags.
type Settings struct {
	LogType       string        `mapstructure:"log-type"`
	LogLevel      string        `mapstructure:"log-level"`
	NoColor       bool          `mapstructure:"no-color"`
	WorkspaceRoot string        `mapstructure:"workspace-root"`
	KeepWorkspace bool          `mapstructure:"keep-workspace"`
	LogDir        string        `mapstructure:"log-dir"`
	EnvFile       string        `mapstructure:"env-file"`
	PassEnv       []string      `mapstructure:"pass-env"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Addr          string        `mapstructure:"addr"`
	Workflows     string        `mapstructure:"workflows"`
}

const (
	configName = ".cirun"
	envPrefix  = "CIRUN"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("log-type", "tint")
	v.SetDefault("log-level", "info")
	_, noColor := os.LookupEnv("NO_COLOR")
	v.SetDefault("no-color", noColor)
	v.SetDefault("workspace-root", "")
	v.SetDefault("keep-workspace", false)
	v.SetDefault("log-dir", "")
	v.SetDefault("env-file", "")
	v.SetDefault("pass-env", []string{})
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("addr", ":8080")
	v.SetDefault("workflows", ".github/workflows")
}

// Load reads the settings. With an empty path, .cirun.yaml is looked up in
// the working directory and $HOME and may be absent; an explicit path must
// exist. Flags that were set on the command line override everything else.
func Load(path string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if s.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative")
	}

	return &s, nil
}

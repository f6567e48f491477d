// Package config loads CLI settings from defaults, bimil.yaml, BIMIL_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	appName    = "bimil"
	envPrefix  = "BIMIL"
	configName = "bimil"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bbolt"
	BackendPostgres = "postgres"
)

type Config struct {
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	KDF      KDFConfig      `mapstructure:"kdf" yaml:"kdf"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Document DocumentConfig `mapstructure:"document" yaml:"document"`
}

type StoreConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend"`
	Path      string `mapstructure:"path" yaml:"path"`
	DSN       string `mapstructure:"dsn" yaml:"dsn,omitempty"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

type KDFConfig struct {
	Profile string `mapstructure:"profile" yaml:"profile"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

type DocumentConfig struct {
	TrackAccess bool `mapstructure:"track_access" yaml:"track_access"`
	TrackModify bool `mapstructure:"track_modify" yaml:"track_modify"`
}

// Defaults returns the default value of every key.
func Defaults() map[string]any {
	dataDir, err := os.UserConfigDir()
	if err != nil {
		dataDir = "."
	}
	return map[string]any{
		"store.backend":         BackendBolt,
		"store.path":            filepath.Join(dataDir, appName, "store.db"),
		"store.dsn":             "",
		"store.namespace":       "default",
		"kdf.profile":           "moderate",
		"log.level":             "warn",
		"document.track_access": true,
		"document.track_modify": true,
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendBolt:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the bbolt backend")
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}

// GetConfigPath returns the location of the user or system configuration
// file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Bimil")
		default:
			configDir = "/etc/bimil"
		}
	} else {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(dir, appName)
	}
	return filepath.Join(configDir, configName+".yaml"), nil
}

// LoadConfig builds a T from defaults, the first bimil.yaml found (or
// explicitPath when set), the environment and cmd's flags. A flag named
// "store-path" overrides the key "store.path".
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitPath string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	}
	if userConfigPath, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, fmt.Errorf("reading config: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		var bindErr error
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "."), f)
		})
		if bindErr != nil {
			return c, bindErr
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

// WriteConfigFile writes c to path as YAML with owner-only permissions.
func WriteConfigFile[T any](c *T, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}
	return os.WriteFile(path, data, 0o600)
}

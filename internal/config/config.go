// Package config loads NM, SS, and client settings from config.yaml/json,
// environment variables, and CLI flags, in that order of increasing
// precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// NMConfig is the Naming Server's process-wide configuration.
type NMConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Host/Port is the client-facing command port.
	Host string `mapstructure:"host" validate:"required" yaml:"host"`
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`

	// AdminPort accepts SS REGISTER/heartbeat connections.
	AdminPort int `mapstructure:"admin_port" validate:"required,min=1,max=65535" yaml:"admin_port"`

	// DataDir holds the Badger catalog database.
	DataDir string `mapstructure:"data_dir" validate:"required" yaml:"data_dir"`

	// HeartbeatDeadline is how long an SS can go without REGISTER-ing
	// before the failure detector marks it inactive.
	HeartbeatDeadline time.Duration `mapstructure:"heartbeat_deadline" yaml:"heartbeat_deadline"`

	// FailureDetectorInterval is how often the NM scans SSRecords for
	// expired heartbeats.
	FailureDetectorInterval time.Duration `mapstructure:"failure_detector_interval" yaml:"failure_detector_interval"`

	// ExecAllowAll disables the EXEC command allow-list gate entirely.
	ExecAllowAll bool `mapstructure:"exec_allow_all" yaml:"exec_allow_all"`

	Limits LimitsConfig `mapstructure:"limits" yaml:"limits"`
}

// SSConfig is a Storage Server's process-wide configuration.
type SSConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	SSID string `mapstructure:"ss_id" validate:"required" yaml:"ss_id"`

	Host        string `mapstructure:"host" validate:"required" yaml:"host"`
	ClientPort  int    `mapstructure:"client_port" validate:"required,min=1,max=65535" yaml:"client_port"`
	AdminPort   int    `mapstructure:"admin_port" validate:"required,min=1,max=65535" yaml:"admin_port"`

	NMHost      string `mapstructure:"nm_host" validate:"required" yaml:"nm_host"`
	NMAdminPort int    `mapstructure:"nm_admin_port" validate:"required,min=1,max=65535" yaml:"nm_admin_port"`

	// DataRoot holds live files and swap files; undo/ and checkpoints/
	// are created as its siblings.
	DataRoot string `mapstructure:"data_root" validate:"required" yaml:"data_root"`

	// HeartbeatInterval is how often SS sends REGISTER to the NM.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`

	MaxSentenceSlots int `mapstructure:"max_sentence_slots" yaml:"max_sentence_slots"`
}

// ClientConfig configures the interactive REPL client.
type ClientConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	NMHost string `mapstructure:"nm_host" validate:"required" yaml:"nm_host"`
	NMPort int    `mapstructure:"nm_port" validate:"required,min=1,max=65535" yaml:"nm_port"`
}

// LoggingConfig controls logging behavior, shared by all three roles.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// LimitsConfig enforces the NM's resource bounds.
type LimitsConfig struct {
	MaxFiles          int `mapstructure:"max_files" yaml:"max_files"`
	MaxUsers          int `mapstructure:"max_users" yaml:"max_users"`
	MaxAccessRequests int `mapstructure:"max_access_requests" yaml:"max_access_requests"`
	MaxStorageServers int `mapstructure:"max_storage_servers" yaml:"max_storage_servers"`
	MaxACLEntries     int `mapstructure:"max_acl_entries" yaml:"max_acl_entries"`
}

func defaultLogging() LoggingConfig {
	return LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"}
}

// DefaultNMConfig returns the NM's configuration defaults (30s liveness
// deadline, 10s detector poll).
func DefaultNMConfig() *NMConfig {
	return &NMConfig{
		Logging:                 defaultLogging(),
		Host:                    "0.0.0.0",
		Port:                    9000,
		AdminPort:               9001,
		DataDir:                 "./nm-data",
		HeartbeatDeadline:       30 * time.Second,
		FailureDetectorInterval: 10 * time.Second,
		Limits: LimitsConfig{
			MaxFiles:          1024,
			MaxUsers:          256,
			MaxAccessRequests: 1024,
			MaxStorageServers: 32,
			MaxACLEntries:     64,
		},
	}
}

// DefaultSSConfig returns the SS's configuration defaults (20s
// REGISTER/heartbeat cadence).
func DefaultSSConfig() *SSConfig {
	return &SSConfig{
		Logging:           defaultLogging(),
		Host:              "0.0.0.0",
		ClientPort:        9100,
		AdminPort:         9101,
		NMHost:            "127.0.0.1",
		NMAdminPort:       9001,
		DataRoot:          "./ss-data",
		HeartbeatInterval: 20 * time.Second,
		MaxSentenceSlots:  2048,
	}
}

// DefaultClientConfig returns the client's configuration defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Logging: defaultLogging(),
		NMHost:  "127.0.0.1",
		NMPort:  9000,
	}
}

// LoadNM loads the NM configuration from configPath (or the default search
// path if empty), applying environment and default overlays.
func LoadNM(configPath string) (*NMConfig, error) {
	cfg := DefaultNMConfig()
	if err := load("DOCSPP_NM", configPath, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSS loads the SS configuration from configPath.
func LoadSS(configPath string) (*SSConfig, error) {
	cfg := DefaultSSConfig()
	if err := load("DOCSPP_SS", configPath, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient loads the client configuration from configPath.
func LoadClient(configPath string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := load("DOCSPP_CLIENT", configPath, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// load reads configPath (YAML or JSON) over viper, with envPrefix_* env
// vars overriding file values, and decodes on top of the defaults
// already present in out. Env vars apply only to keys the config file
// sets; when no config file is found, out is left at its defaults and
// env vars are not read.
func load(envPrefix, configPath string, out any) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := v.Unmarshal(out, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	))); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

var validate = validator.New()

// Validate runs struct-tag validation over any of the three config roots.
func Validate(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultConfigPath returns "config.yaml" in the current directory, the
// search location used when no --config flag is given.
func DefaultConfigPath() string {
	wd, err := os.Getwd()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(wd, "config.yaml")
}

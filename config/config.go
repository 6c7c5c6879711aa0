package config

import (
	stderrors "errors"
	"time"

	"github.com/spf13/viper"

	"github.com/wippyai/hvr-interface/errors"
	"github.com/wippyai/hvr-interface/platform"
)

const (
	EnvPrefix = "HVR"

	DefaultAppID             = "hvr"
	DefaultAppVersion        = "0.0.0"
	DefaultReconnectInterval = 3 * time.Second
	DefaultMetricsNamespace  = "hvr"
)

// Config is the typed host configuration.
type Config struct {
	AppID      string
	AppVersion string

	// APIKey wins over APIKeyFile.
	APIKey     string
	APIKeyFile string

	Platform     string
	ExtensionDir string
	CacheDir     string
	DisableCache bool

	Verbose     bool
	Interactive bool

	ReconnectInterval time.Duration
	EnginePath        string
	MetricsNamespace  string
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("app.id", DefaultAppID)
	v.SetDefault("app.version", DefaultAppVersion)
	v.SetDefault("api.key", "")
	v.SetDefault("api.key_file", "")
	v.SetDefault("platform", "")
	v.SetDefault("paths.extensions", "")
	v.SetDefault("paths.cache", "")
	v.SetDefault("cache.disable", false)
	v.SetDefault("log.verbose", false)
	v.SetDefault("interactive", false)
	v.SetDefault("connection.reconnect_interval", DefaultReconnectInterval)
	v.SetDefault("engine.path", "")
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.BindEnv("app.id", "HVR_APP_ID")
	v.BindEnv("app.version", "HVR_APP_VERSION")
	v.BindEnv("api.key", "HVR_API_KEY")
	v.BindEnv("api.key_file", "HVR_API_KEY_FILE")
	v.BindEnv("platform", "HVR_PLATFORM")
	v.BindEnv("paths.extensions", "HVR_EXTENSION_DIR")
	v.BindEnv("paths.cache", "HVR_CACHE_DIR")
	v.BindEnv("cache.disable", "HVR_DISABLE_CACHE")
	v.BindEnv("log.verbose", "HVR_VERBOSE")
	v.BindEnv("interactive", "HVR_INTERACTIVE")
	v.BindEnv("connection.reconnect_interval", "HVR_RECONNECT_INTERVAL")
	v.BindEnv("engine.path", "HVR_ENGINE")
	v.BindEnv("metrics.namespace", "HVR_METRICS_NAMESPACE")

	v.SetConfigType("yaml")
	return v
}

// Load reads configuration from path, then applies HVR_* environment
// overrides on top of the defaults. An empty path searches for hvr.yaml in
// the working directory and $HOME/.config/hvr; not finding one is fine.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hvr")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/hvr")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !stderrors.As(err, &notFound) {
			return nil, errors.New(errors.PhaseConfig, errors.KindIO).
				Path(path).
				Cause(err).
				Detail("read config").
				Build()
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppID:             v.GetString("app.id"),
		AppVersion:        v.GetString("app.version"),
		APIKey:            v.GetString("api.key"),
		APIKeyFile:        v.GetString("api.key_file"),
		Platform:          v.GetString("platform"),
		ExtensionDir:      v.GetString("paths.extensions"),
		CacheDir:          v.GetString("paths.cache"),
		DisableCache:      v.GetBool("cache.disable"),
		Verbose:           v.GetBool("log.verbose"),
		Interactive:       v.GetBool("interactive"),
		ReconnectInterval: v.GetDuration("connection.reconnect_interval"),
		EnginePath:        v.GetString("engine.path"),
		MetricsNamespace:  v.GetString("metrics.namespace"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later inside the engine.
func (c *Config) Validate() error {
	if err := platform.CheckAppID(c.AppID); err != nil {
		return err
	}
	if c.CacheDir != "" && !c.DisableCache {
		if err := platform.CheckResetDir(c.CacheDir); err != nil {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("paths", "cache").
				Value(c.CacheDir).
				Cause(err).
				Detail("cache directory is wiped on every start").
				Build()
		}
	}
	if c.ReconnectInterval <= 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("connection", "reconnect_interval").
			Value(c.ReconnectInterval).
			Detail("must be positive").
			Build()
	}
	if _, err := platform.ByName(c.Platform); err != nil {
		return err
	}
	return nil
}

// ResolvePlatform returns the configured platform, or the current one when
// none is set.
func (c *Config) ResolvePlatform() platform.Platform {
	p, err := platform.ByName(c.Platform)
	if err != nil {
		return platform.Current()
	}
	return p
}

// KeyResolver returns the encryption-key source the config names.
func (c *Config) KeyResolver() platform.KeyResolver {
	if c.APIKey != "" {
		return platform.StaticKey(c.APIKey)
	}
	return platform.FileKey{Path: c.APIKeyFile}
}

// Paths returns the extension and cache path resolver.
func (c *Config) Paths() platform.XDGPaths {
	return platform.XDGPaths{
		App:          c.AppID,
		ExtensionDir: c.ExtensionDir,
		CacheDir:     c.CacheDir,
		DisableCache: c.DisableCache,
	}
}

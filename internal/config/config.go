package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type OutputConfig struct {
	Dir           string `mapstructure:"dir"`
	Format        string `mapstructure:"format"`
	LinkExtension string `mapstructure:"link_extension"`
}

type ModuleConfig struct {
	Name        string `mapstructure:"name"`
	Source      string `mapstructure:"source"`
	RelativeDir string `mapstructure:"relative_dir"`
}

// ExternalLinkConfig describes a third-party documentation site. A bare string
// in the config file is taken as its URL.
type ExternalLinkConfig struct {
	Name        string `mapstructure:"name"`
	URL         string `mapstructure:"url"`
	PackageList string `mapstructure:"package_list"`
	Format      string `mapstructure:"format"`
	AndroidXURL string `mapstructure:"androidx_url"`
}

type CacheConfig struct {
	Dir     string `mapstructure:"dir"`
	Offline bool   `mapstructure:"offline"`
}

type FetchConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type Config struct {
	Output        OutputConfig         `mapstructure:"output"`
	Modules       []ModuleConfig       `mapstructure:"modules"`
	ExternalLinks []ExternalLinkConfig `mapstructure:"external_links"`
	Cache         CacheConfig          `mapstructure:"cache"`
	Fetch         FetchConfig          `mapstructure:"fetch"`
}

// cacheBase returns the base cache directory for docloc.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/docloc as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "docloc")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "docloc")
	}
	return filepath.Join(os.TempDir(), "docloc")
}

// PackageListCacheDir returns the directory fetched package lists are cached in.
func (c *Config) PackageListCacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return filepath.Join(cacheBase(), "package-lists")
}

func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("docloc")
		v.SetConfigType("toml")

		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "docloc"))
		} else if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "docloc"))
		}
	}

	v.SetDefault("output.dir", "build/docs")
	v.SetDefault("output.format", "html-v1")
	v.SetDefault("output.link_extension", "html")
	v.SetDefault("fetch.timeout_seconds", 60)
	v.SetDefault("cache.offline", false)

	v.SetEnvPrefix("DOCLOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func stringToExternalLinkHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(ExternalLinkConfig{}) {
			return data, nil
		}
		if f.Kind() == reflect.String {
			return ExternalLinkConfig{URL: data.(string)}, nil
		}
		return data, nil
	}
}

// Load reads configuration from configFile, or from docloc.toml in the
// working directory or the user config directory when configFile is empty.
// Environment variables prefixed DOCLOC_ override file values.
func Load(configFile string) (*Config, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}

	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: stringToExternalLinkHookFunc(),
		Result:     &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.resolvePaths(v.ConfigFileUsed())
	for i := range config.ExternalLinks {
		if config.ExternalLinks[i].Name == "" {
			config.ExternalLinks[i].Name = config.ExternalLinks[i].URL
		}
	}
	return &config, nil
}

// resolvePaths makes module sources relative to the config file's directory.
func (c *Config) resolvePaths(configFile string) {
	if configFile == "" {
		return
	}
	base := filepath.Dir(configFile)
	for i := range c.Modules {
		if src := c.Modules[i].Source; src != "" && !filepath.IsAbs(src) {
			c.Modules[i].Source = filepath.Join(base, src)
		}
	}
}

// Validate reports every configuration error at once.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	dirs := make(map[string]string)
	for i, m := range c.Modules {
		switch {
		case m.Name == "":
			errs = append(errs, fmt.Errorf("modules[%d]: name is required", i))
		case seen[m.Name]:
			errs = append(errs, fmt.Errorf("modules[%d]: duplicate module name %q", i, m.Name))
		}
		seen[m.Name] = true
		if m.Source == "" {
			errs = append(errs, fmt.Errorf("modules[%d]: source is required", i))
		}
		dir := strings.Trim(filepath.ToSlash(filepath.Clean("/"+m.RelativeDir)), "/")
		if other, ok := dirs[dir]; ok {
			errs = append(errs, fmt.Errorf("modules[%d]: relative_dir %q is already used by module %q", i, m.RelativeDir, other))
		} else {
			dirs[dir] = m.Name
		}
	}
	for i, l := range c.ExternalLinks {
		if l.URL == "" && l.PackageList == "" {
			errs = append(errs, fmt.Errorf("external_links[%d]: url is required", i))
		}
	}
	if c.Fetch.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("fetch.timeout_seconds must not be negative"))
	}
	return errors.Join(errs...)
}

// Package config loads command line settings from defaults, an optional
// mediaresolve.toml and MEDIARESOLVE_* environment variables.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/famomatic/mediaresolve/client"
)

// Name is the config file base name and environment prefix.
const Name = "mediaresolve"

// EnvKeyReplacer maps config keys to environment variable names.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Settings is the decoded configuration.
type Settings struct {
	Selection      string        `mapstructure:"selection"`
	Workers        int           `mapstructure:"workers"`
	MaxDepth       int           `mapstructure:"max_depth"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	HTTP       HTTPSettings      `mapstructure:"http"`
	Retries    RetrySettings     `mapstructure:"retries"`
	Decrypt    DecryptSettings   `mapstructure:"decrypt"`
	Cache      CacheSettings     `mapstructure:"cache"`
	Extractors ExtractorSettings `mapstructure:"extractors"`
	Log        LogSettings       `mapstructure:"log"`
}

type HTTPSettings struct {
	UserAgent string `mapstructure:"user_agent"`
	Proxy     string `mapstructure:"proxy"`
}

type RetrySettings struct {
	Max            int           `mapstructure:"max"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

type DecryptSettings struct {
	KnownPrograms bool   `mapstructure:"known_programs"`
	ProbeHelpers  bool   `mapstructure:"probe_helpers"`
	TokenPattern  string `mapstructure:"token_pattern"`
	ScriptBaseURL string `mapstructure:"script_base_url"`
}

type CacheSettings struct {
	TTL  time.Duration `mapstructure:"ttl"`
	Path string        `mapstructure:"path"`
}

type ExtractorSettings struct {
	Order []string `mapstructure:"order"`
	Skip  []string `mapstructure:"skip"`
}

type LogSettings struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Default holds the value of every known key.
var Default = map[string]any{
	"selection":               client.DefaultSelection,
	"workers":                 client.DefaultWorkers,
	"max_depth":               10,
	"request_timeout":         2 * time.Minute,
	"http.user_agent":         "",
	"http.proxy":              "",
	"retries.max":             2,
	"retries.initial_backoff": 500 * time.Millisecond,
	"retries.max_backoff":     4 * time.Second,
	"decrypt.known_programs":  true,
	"decrypt.probe_helpers":   false,
	"decrypt.token_pattern":   "",
	"decrypt.script_base_url": "",
	"cache.ttl":               time.Duration(0),
	"cache.path":              "",
	"extractors.order":        []string{},
	"extractors.skip":         []string{},
	"log.level":               "info",
	"log.json":                false,
	"log.file":                "",
	"log.max_size":            10,
	"log.max_backups":         3,
	"log.max_age":             28,
	"log.compress":            false,
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// File is an explicit config file. It must exist when set.
	File string
	// Dirs are searched for mediaresolve.toml when File is empty.
	// Defaults to DefaultDirs.
	Dirs []string
}

// DefaultDirs lists the directories searched for the config file.
func DefaultDirs() []string {
	dirs := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, Name))
	}
	return dirs
}

// Load reads the settings. A missing config file in the search dirs is not
// an error.
func Load(opts LoadOptions) (Settings, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("toml")
	if opts.File != "" {
		if _, err := fs.Stat(opts.File); err != nil {
			return Settings{}, err
		}
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(Name)
		dirs := opts.Dirs
		if dirs == nil {
			dirs = DefaultDirs()
		}
		for _, dir := range dirs {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(Name)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()

	for key, value := range Default {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, err
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ClientConfig converts s into a client configuration. fs backs the
// persisted program cache.
func (s Settings) ClientConfig(fs afero.Fs) client.Config {
	return client.Config{
		ProxyURL:             s.HTTP.Proxy,
		UserAgent:            s.HTTP.UserAgent,
		RequestTimeout:       s.RequestTimeout,
		MaxRetries:           retries(s.Retries.Max),
		InitialBackoff:       s.Retries.InitialBackoff,
		MaxBackoff:           s.Retries.MaxBackoff,
		MaxDepth:             s.MaxDepth,
		Selection:            s.Selection,
		DisableKnownPrograms: !s.Decrypt.KnownPrograms,
		ProbeHelpers:         s.Decrypt.ProbeHelpers,
		TokenPattern:         s.Decrypt.TokenPattern,
		ScriptBaseURL:        s.Decrypt.ScriptBaseURL,
		ProgramCacheTTL:      s.Cache.TTL,
		ProgramCachePath:     s.Cache.Path,
		Fs:                   fs,
		ExtractorOrder:       s.Extractors.Order,
		ExtractorSkip:        s.Extractors.Skip,
	}
}

// retries maps the user-facing "0 means none" to the client's "negative
// means none".
func retries(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

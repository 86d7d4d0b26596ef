// Package cli implements the mediaresolve command line.
package cli

import (
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/famomatic/mediaresolve/client"
	"github.com/famomatic/mediaresolve/internal/config"
	"github.com/famomatic/mediaresolve/internal/cookies"
	"github.com/famomatic/mediaresolve/internal/logging"
)

// Options holds the flags shared by every command.
type Options struct {
	ConfigFile string
	LogFile    string
	Verbose    bool
	Proxy      string
	Cookies    string

	// Fs backs config and cache files. Defaults to the OS filesystem.
	Fs afero.Fs
	// Extractors are registered ahead of the generic ones.
	Extractors []client.Extractor
}

// NewRootCommand builds the command tree writing results to out and
// diagnostics to errOut.
func NewRootCommand(out, errOut io.Writer, opts *Options) *cobra.Command {
	if opts == nil {
		opts = &Options{}
	}
	root := &cobra.Command{
		Use:           "mediaresolve",
		Short:         "Resolve media references into playable stream formats",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default: mediaresolve.toml in . or the user config dir)")
	flags.StringVar(&opts.LogFile, "log-file", "", "also write logs to this file, rotated")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log debug information")
	flags.StringVar(&opts.Proxy, "proxy", "", "HTTP/HTTPS/SOCKS proxy URL")
	flags.StringVar(&opts.Cookies, "cookies", "", "Netscape formatted cookies file")

	root.AddCommand(
		newResolveCommand(opts),
		newDecryptCommand(opts),
		newExtractorsCommand(opts),
	)
	return root
}

// env is what a command needs once flags are parsed.
type env struct {
	settings config.Settings
	client   *client.Client
	log      *logging.Adapter
	closer   io.Closer
}

func (e *env) Close() error {
	return e.closer.Close()
}

func setup(cmd *cobra.Command, opts *Options, adjust ...func(*config.Settings)) (*env, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	settings, err := config.Load(config.LoadOptions{Fs: fs, File: opts.ConfigFile})
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		settings.Log.Level = "debug"
	}
	if opts.LogFile != "" {
		settings.Log.File = opts.LogFile
	}
	if opts.Proxy != "" {
		settings.HTTP.Proxy = opts.Proxy
	}
	for _, fn := range adjust {
		fn(&settings)
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      settings.Log.Level,
		JSON:       settings.Log.JSON,
		File:       settings.Log.File,
		MaxSizeMB:  settings.Log.MaxSize,
		MaxBackups: settings.Log.MaxBackups,
		MaxAgeDays: settings.Log.MaxAge,
		Compress:   settings.Log.Compress,
		Output:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	log := logging.NewAdapter(logger)

	cfg := settings.ClientConfig(fs)
	cfg.Logger = log
	cfg.Extractors = opts.Extractors
	if opts.Cookies != "" {
		jar, err := cookies.LoadJar(fs, opts.Cookies)
		if err != nil {
			closer.Close()
			return nil, err
		}
		cfg.CookieJar = jar
	}
	c, err := client.New(cfg)
	if err != nil {
		closer.Close()
		return nil, err
	}
	return &env{settings: settings, client: c, log: log, closer: closer}, nil
}

package runner

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/logrusorgru/aurora/v4"
	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
	"github.com/projectdiscovery/scanwatch/pkg/activity"
	"github.com/projectdiscovery/scanwatch/pkg/channel"
	"github.com/projectdiscovery/scanwatch/pkg/notify"
	"github.com/projectdiscovery/scanwatch/pkg/status"
	"github.com/projectdiscovery/scanwatch/pkg/version"
	envutil "github.com/projectdiscovery/utils/env"
)

var au *aurora.Aurora

var (
	ServerEnv = envutil.GetEnvOrDefault("SCANWATCH_SERVER", "http://127.0.0.1:8080")
	APIKeyEnv = envutil.GetEnvOrDefault("SCANWATCH_API_KEY", "")

	ActivityBatchSizeEnv     = envutil.GetEnvOrDefault("SCANWATCH_ACTIVITY_BATCH_SIZE", activity.DefaultBatchSize)
	ActivityFlushIntervalEnv = envutil.GetEnvOrDefault("SCANWATCH_ACTIVITY_FLUSH_INTERVAL", activity.DefaultFlushInterval)
)

// Options contains the configuration of the dashboard client
type Options struct {
	ConfigFile string

	Server   string
	APIBase  string
	Room     string
	APIKey   string
	Insecure bool

	RefreshInterval   time.Duration
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
	ErrorTTL          time.Duration
	ToastDuration     time.Duration

	ActivityOutput        string
	ActivityLimit         int
	ActivityBatchSize     int
	ActivityFlushInterval time.Duration

	Verbose bool
	Silent  bool
	NoColor bool
	Version bool
}

// ParseOptions parses the command line flags provided by a user
func ParseOptions() *Options {
	options := &Options{}
	flagSet := goflags.NewFlagSet()

	flagSet.SetDescription(`scanwatch follows scans running on a scan server and shows their live output`)

	flagSet.CreateGroup("input", "Input",
		flagSet.StringVarP(&options.Server, "server", "u", ServerEnv, "scan server base url"),
		flagSet.StringVar(&options.APIBase, "api-base", "", "status and scan api base url (default {server}/api)"),
		flagSet.StringVar(&options.Room, "room", "", "room to subscribe to after connecting"),
		flagSet.StringVarP(&options.APIKey, "api-key", "ak", APIKeyEnv, "api key sent as X-Api-Key"),
		flagSet.BoolVar(&options.Insecure, "insecure", false, "skip tls certificate verification"),
	)

	flagSet.CreateGroup("timing", "Timing",
		flagSet.DurationVarP(&options.RefreshInterval, "refresh-interval", "ri", status.DefaultInterval, "system status refresh interval"),
		flagSet.DurationVarP(&options.ReconnectDelay, "reconnect-delay", "rd", channel.DefaultReconnectDelay, "initial reconnection delay"),
		flagSet.DurationVarP(&options.ReconnectDelayMax, "reconnect-delay-max", "rdm", channel.DefaultReconnectDelayMax, "maximum reconnection delay"),
		flagSet.DurationVarP(&options.ErrorTTL, "error-ttl", "et", 0, "drop errored scans after this duration (0 keeps them)"),
		flagSet.DurationVarP(&options.ToastDuration, "toast-duration", "td", notify.DefaultDuration, "how long a notification stays visible"),
	)

	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&options.ActivityOutput, "activity-output", "o", "", "append activity entries to a jsonl file"),
		flagSet.IntVarP(&options.ActivityLimit, "activity-limit", "al", activity.DefaultLimit, "number of activity entries kept in memory"),
		flagSet.IntVarP(&options.ActivityBatchSize, "activity-batch-size", "abs", ActivityBatchSizeEnv, "activity entries buffered before a write to the output file"),
		flagSet.DurationVarP(&options.ActivityFlushInterval, "activity-flush-interval", "afi", ActivityFlushIntervalEnv, "maximum delay before buffered activity entries are written"),
	)

	flagSet.CreateGroup("config", "Config",
		flagSet.StringVar(&options.ConfigFile, "config", "", "yaml configuration file, flags take precedence"),
	)

	flagSet.CreateGroup("debug", "Debug",
		flagSet.BoolVar(&options.Version, "version", false, "show version of the project"),
		flagSet.BoolVarP(&options.Verbose, "verbose", "v", false, "show verbose output"),
		flagSet.BoolVar(&options.Silent, "silent", false, "show only the dashboard"),
		flagSet.BoolVarP(&options.NoColor, "no-color", "nc", false, "disable output content coloring (ANSI escape codes)"),
	)

	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("%s\n", err)
	}

	// configure aurora for logging
	au = aurora.New(aurora.WithColors(true))

	options.configureOutput()

	showBanner()

	if options.Version {
		gologger.Info().Msgf("Current Version: %s\n", version.GetVersion())
		os.Exit(0)
	}

	if options.ConfigFile != "" {
		cfg, err := loadConfig(options.ConfigFile)
		if err != nil {
			gologger.Fatal().Msgf("Could not read config file: %s\n", err)
		}
		options.merge(cfg, explicitFlags(flagSet))
		options.configureOutput()
	}

	if err := options.Validate(); err != nil {
		gologger.Fatal().Msgf("Program exiting: %s\n", err)
	}

	return options
}

// configureOutput configures the output on the screen
func (options *Options) configureOutput() {
	// If the user desires verbose output, show verbose output
	if options.Verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelVerbose)
	}
	if options.NoColor {
		gologger.DefaultLogger.SetFormatter(formatter.NewCLI(true))
		au = aurora.New(aurora.WithColors(false))
	}
	if options.Silent {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
	}
}

// Validate checks the options and fills derived defaults
func (options *Options) Validate() error {
	options.Server = strings.TrimRight(strings.TrimSpace(options.Server), "/")
	server, err := url.Parse(options.Server)
	if err != nil || (server.Scheme != "http" && server.Scheme != "https") || server.Host == "" {
		return fmt.Errorf("invalid server %q: expected http(s)://host[:port]", options.Server)
	}
	if options.APIBase == "" {
		options.APIBase = options.Server + "/api"
	}
	if options.RefreshInterval <= 0 {
		return errors.New("refresh interval must be positive")
	}
	if options.ReconnectDelay <= 0 {
		return errors.New("reconnect delay must be positive")
	}
	if options.ReconnectDelayMax < options.ReconnectDelay {
		return fmt.Errorf("reconnect delay max (%s) is lower than reconnect delay (%s)", options.ReconnectDelayMax, options.ReconnectDelay)
	}
	if options.ErrorTTL < 0 {
		return errors.New("error ttl cannot be negative")
	}
	if options.ToastDuration <= 0 {
		return errors.New("toast duration must be positive")
	}
	if options.ActivityLimit <= 0 {
		return errors.New("activity limit must be positive")
	}
	if options.ActivityBatchSize <= 0 {
		return errors.New("activity batch size must be positive")
	}
	if options.ActivityFlushInterval <= 0 {
		return errors.New("activity flush interval must be positive")
	}
	if options.Verbose && options.Silent {
		return errors.New("verbose and silent can't be used together")
	}
	return nil
}

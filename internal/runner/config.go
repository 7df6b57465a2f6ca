package runner

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/projectdiscovery/goflags"
	fileutil "github.com/projectdiscovery/utils/file"
)

// fileConfig mirrors the long flag names
type fileConfig struct {
	Server            string        `yaml:"server"`
	APIBase           string        `yaml:"api-base"`
	Room              string        `yaml:"room"`
	APIKey            string        `yaml:"api-key"`
	Insecure          bool          `yaml:"insecure"`
	RefreshInterval   time.Duration `yaml:"refresh-interval"`
	ReconnectDelay    time.Duration `yaml:"reconnect-delay"`
	ReconnectDelayMax time.Duration `yaml:"reconnect-delay-max"`
	ErrorTTL          time.Duration `yaml:"error-ttl"`
	ToastDuration     time.Duration `yaml:"toast-duration"`
	ActivityOutput    string        `yaml:"activity-output"`
	ActivityLimit     int           `yaml:"activity-limit"`
	ActivityBatch     int           `yaml:"activity-batch-size"`
	ActivityFlush     time.Duration `yaml:"activity-flush-interval"`
	Verbose           bool          `yaml:"verbose"`
	Silent            bool          `yaml:"silent"`
	NoColor           bool          `yaml:"no-color"`
}

func loadConfig(location string) (*fileConfig, error) {
	// fileutil.Unmarshal treats anything that is not a file as inline yaml
	if !fileutil.FileExists(location) {
		return nil, fmt.Errorf("%s does not exist", location)
	}
	cfg := &fileConfig{}
	if err := fileutil.Unmarshal(fileutil.YAML, []byte(location), cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not parse %s: %w", location, err)
	}
	return cfg, nil
}

// explicitFlags returns the names of the flags given on the command line
func explicitFlags(flagSet *goflags.FlagSet) map[string]bool {
	set := make(map[string]bool)
	flagSet.CommandLine.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// merge copies file values into options unless the flag was set explicitly
func (options *Options) merge(cfg *fileConfig, explicit map[string]bool) {
	given := func(names ...string) bool {
		for _, name := range names {
			if explicit[name] {
				return true
			}
		}
		return false
	}

	if cfg.Server != "" && !given("server", "u") {
		options.Server = cfg.Server
	}
	if cfg.APIBase != "" && !given("api-base") {
		options.APIBase = cfg.APIBase
	}
	if cfg.Room != "" && !given("room") {
		options.Room = cfg.Room
	}
	if cfg.APIKey != "" && !given("api-key", "ak") {
		options.APIKey = cfg.APIKey
	}
	if cfg.Insecure && !given("insecure") {
		options.Insecure = true
	}
	if cfg.RefreshInterval > 0 && !given("refresh-interval", "ri") {
		options.RefreshInterval = cfg.RefreshInterval
	}
	if cfg.ReconnectDelay > 0 && !given("reconnect-delay", "rd") {
		options.ReconnectDelay = cfg.ReconnectDelay
	}
	if cfg.ReconnectDelayMax > 0 && !given("reconnect-delay-max", "rdm") {
		options.ReconnectDelayMax = cfg.ReconnectDelayMax
	}
	if cfg.ErrorTTL > 0 && !given("error-ttl", "et") {
		options.ErrorTTL = cfg.ErrorTTL
	}
	if cfg.ToastDuration > 0 && !given("toast-duration", "td") {
		options.ToastDuration = cfg.ToastDuration
	}
	if cfg.ActivityOutput != "" && !given("activity-output", "o") {
		options.ActivityOutput = cfg.ActivityOutput
	}
	if cfg.ActivityLimit > 0 && !given("activity-limit", "al") {
		options.ActivityLimit = cfg.ActivityLimit
	}
	if cfg.ActivityBatch > 0 && !given("activity-batch-size", "abs") {
		options.ActivityBatchSize = cfg.ActivityBatch
	}
	if cfg.ActivityFlush > 0 && !given("activity-flush-interval", "afi") {
		options.ActivityFlushInterval = cfg.ActivityFlush
	}
	if cfg.Verbose && !given("verbose", "v") {
		options.Verbose = true
	}
	if cfg.Silent && !given("silent") {
		options.Silent = true
	}
	if cfg.NoColor && !given("no-color", "nc") {
		options.NoColor = true
	}
}

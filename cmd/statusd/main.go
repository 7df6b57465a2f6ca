package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/levels"
	"github.com/projectdiscovery/scanwatch/pkg/statusapi"
	"github.com/projectdiscovery/scanwatch/pkg/version"
	envutil "github.com/projectdiscovery/utils/env"
)

var (
	ListenEnv   = envutil.GetEnvOrDefault("STATUSD_LISTEN", "127.0.0.1:8081")
	DiskPathEnv = envutil.GetEnvOrDefault("STATUSD_DISK_PATH", "/")
	CacheTTLEnv = envutil.GetEnvOrDefault("STATUSD_CACHE_TTL_SECONDS", int(statusapi.DefaultCacheTTL/time.Second))
)

type options struct {
	Listen   string
	DiskPath string
	CacheTTL time.Duration
	Verbose  bool
}

func parseOptions() *options {
	opts := &options{}

	defaultTTL := statusapi.DefaultCacheTTL
	if CacheTTLEnv >= 0 {
		defaultTTL = time.Duration(CacheTTLEnv) * time.Second
	}

	flagSet := goflags.NewFlagSet()
	flagSet.SetDescription(`statusd reports host status for scanwatch dashboards`)
	flagSet.CreateGroup("server", "Server",
		flagSet.StringVarP(&opts.Listen, "listen", "l", ListenEnv, "address to listen on"),
		flagSet.StringVarP(&opts.DiskPath, "disk-path", "dp", DiskPathEnv, "path whose disk usage is reported"),
		flagSet.DurationVarP(&opts.CacheTTL, "cache-ttl", "ct", defaultTTL, "how long a status report is reused"),
		flagSet.BoolVarP(&opts.Verbose, "verbose", "v", false, "show verbose output"),
	)
	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("%s\n", err)
	}
	if opts.Verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelDebug)
	}
	return opts
}

func main() {
	opts := parseOptions()

	collector := statusapi.NewCollector(version.GetVersion(), opts.DiskPath, opts.CacheTTL, statusapi.HostProbes())
	srv := &http.Server{
		Addr:              opts.Listen,
		Handler:           statusapi.NewRouter(collector),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		gologger.Info().Msgf("statusd %s listening on %s", version.GetVersion(), opts.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			gologger.Fatal().Msgf("Could not start server: %s\n", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		gologger.Warning().Msgf("Could not shut down cleanly: %s", err)
	}
}

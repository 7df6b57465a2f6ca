package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/scanwatch/pkg/activity"
	"github.com/projectdiscovery/scanwatch/pkg/api"
	"github.com/projectdiscovery/scanwatch/pkg/channel"
	"github.com/projectdiscovery/scanwatch/pkg/client"
	"github.com/projectdiscovery/scanwatch/pkg/dashboard"
	"github.com/projectdiscovery/scanwatch/pkg/notify"
	"github.com/projectdiscovery/scanwatch/pkg/registry"
	"github.com/projectdiscovery/scanwatch/pkg/status"
)

// Runner contains the internal logic of the program
type Runner struct {
	options  *Options
	manager  *channel.Manager
	api      *api.Client
	screen   *dashboard.Screen
	notifier *notify.Notifier
	sink     *activity.FileSink
	input    io.Reader
}

// NewRunner instance
func NewRunner(options *Options) (*Runner, error) {
	clientOptions := client.Options{APIKey: options.APIKey, Insecure: options.Insecure}

	apiClient, err := api.New(options.APIBase, client.New(clientOptions))
	if err != nil {
		return nil, fmt.Errorf("could not create api client: %w", err)
	}

	manager, err := channel.New(channel.Options{
		Server:    options.Server,
		Header:    client.Header(clientOptions),
		TLSConfig: client.TLSConfig(clientOptions),
		Room:      options.Room,
		Backoff: channel.Backoff{
			Min:    options.ReconnectDelay,
			Max:    options.ReconnectDelayMax,
			Factor: channel.DefaultBackoffFactor,
			Jitter: channel.DefaultJitter,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create live channel: %w", err)
	}

	r := &Runner{
		options: options,
		manager: manager,
		api:     apiClient,
		input:   os.Stdin,
	}

	interactive := isatty.IsTerminal(os.Stdout.Fd())
	r.screen = dashboard.NewScreen(os.Stdout, options.NoColor, interactive)
	if interactive {
		r.notifier = notify.New(r.screen)
	} else {
		r.notifier = notify.New(notify.NewTerminal(os.Stderr, options.NoColor))
	}

	if options.ActivityOutput != "" {
		sink, err := activity.NewFileSink(options.ActivityOutput,
			activity.WithBatchSize(options.ActivityBatchSize),
			activity.WithFlushInterval(options.ActivityFlushInterval),
		)
		if err != nil {
			return nil, fmt.Errorf("could not open activity output: %w", err)
		}
		r.sink = sink
	}
	return r, nil
}

// Run follows the server until ctx ends or the user quits
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gologger.Info().Msgf("Connecting to %s", r.manager.URL())
	gologger.Verbose().Msgf("Using api at %s", r.api.Base())

	managerDone := make(chan struct{})
	go func() {
		defer close(managerDone)
		r.manager.Run(ctx)
	}()

	var sink activity.Recorder
	if r.sink != nil {
		sink = r.sink
	}

	controller := dashboard.New(dashboard.Options{
		Events:          r.manager.Events(),
		Commands:        dashboard.ReadCommands(ctx, r.input),
		Status:          r.api,
		Scheduler:       status.NewScheduler(nil),
		API:             r.api,
		Notifier:        r.notifier,
		Presenter:       r.screen,
		RefreshInterval: r.options.RefreshInterval,
		ToastDuration:   r.options.ToastDuration,
		Registry:        registry.New(registry.WithErrorTTL(r.options.ErrorTTL)),
		Tails:           registry.NewTails(0, 0, 0),
		Activity:        activity.New(r.options.ActivityLimit, sink),
	})

	err := controller.Run(ctx)
	cancel()
	<-managerDone

	if errors.Is(err, dashboard.ErrQuit) {
		return nil
	}
	return err
}

// Close releases the notifier and flushes the activity output
func (r *Runner) Close() {
	r.notifier.Close()
	if r.sink != nil {
		if err := r.sink.Close(); err != nil {
			gologger.Warning().Msgf("Could not flush activity output: %s", err)
		}
	}
}

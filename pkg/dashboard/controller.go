// Package dashboard reconciles live channel events into the local view of
// running scans and renders it.
//
// A single Controller loop owns the State: channel events, status updates,
// keyboard commands and the expiry sweep are processed one at a time in
// arrival order.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/scanwatch/pkg/activity"
	"github.com/projectdiscovery/scanwatch/pkg/notify"
	"github.com/projectdiscovery/scanwatch/pkg/registry"
	"github.com/projectdiscovery/scanwatch/pkg/status"
	"github.com/projectdiscovery/scanwatch/pkg/types"
)

// ErrQuit is returned by Run when the user asked to quit
var ErrQuit = errors.New("quit requested")

// DefaultSweepInterval is how often errored scans are checked for expiry
const DefaultSweepInterval = 10 * time.Second

// Notifier presents transient notifications
type Notifier interface {
	Notify(severity notify.Severity, message string, duration ...time.Duration)
}

// ScanAPI starts and stops scans on the server
type ScanAPI interface {
	StartScan(ctx context.Context, req types.StartScanRequest) (*types.StartScanResponse, error)
	StopScan(ctx context.Context, taskID string) error
}

// Presenter draws the current view
type Presenter interface {
	Render(view View)
}

// State is the client side view of the server. Only the controller loop
// mutates it.
type State struct {
	Connected bool
	Scans     *registry.Registry
	Tails     *registry.Tails
	Activity  *activity.Log
}

// Options configures a Controller
type Options struct {
	// Events is the ordered stream of live channel events
	Events <-chan types.Event
	// Commands is an optional stream of keyboard commands
	Commands <-chan Command

	Status    status.Fetcher
	Scheduler *status.Scheduler
	API       ScanAPI
	Notifier  Notifier
	Presenter Presenter

	RefreshInterval time.Duration
	ToastDuration   time.Duration
	SweepInterval   time.Duration

	Registry *registry.Registry
	Tails    *registry.Tails
	Activity *activity.Log
}

// Controller dispatches events to handlers and re-renders after each one
type Controller struct {
	options  Options
	state    *State
	poller   *status.Poller
	handlers map[types.EventName]handler

	runCtx        context.Context
	statusUpdates chan types.StatusSnapshot
	stopped       chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	now           func() time.Time
}

// New creates a controller. Missing collaborators get defaults.
func New(options Options) *Controller {
	if options.Registry == nil {
		options.Registry = registry.New()
	}
	if options.Tails == nil {
		options.Tails = registry.NewTails(0, 0, 0)
	}
	if options.Activity == nil {
		options.Activity = activity.New(activity.DefaultLimit, nil)
	}
	if options.Scheduler == nil {
		options.Scheduler = status.NewScheduler(nil)
	}
	if options.RefreshInterval <= 0 {
		options.RefreshInterval = status.DefaultInterval
	}
	if options.ToastDuration <= 0 {
		options.ToastDuration = notify.DefaultDuration
	}
	if options.SweepInterval <= 0 {
		options.SweepInterval = DefaultSweepInterval
	}
	if options.Notifier == nil {
		options.Notifier = notify.New(nil)
	}

	c := &Controller{
		options: options,
		state: &State{
			Scans:    options.Registry,
			Tails:    options.Tails,
			Activity: options.Activity,
		},
		statusUpdates: make(chan types.StatusSnapshot, 1),
		stopped:       make(chan struct{}),
		now:           time.Now,
	}
	if options.Status != nil {
		c.poller = status.NewPoller(options.Status, c.statusUpdated)
	}
	c.handlers = c.dispatchTable()
	return c
}

// State returns the controller state. It must only be read from the loop
// or after Run returned.
func (c *Controller) State() *State {
	return c.state
}

// Poller returns the status poller, nil without a status source
func (c *Controller) Poller() *status.Poller {
	return c.poller
}

// Run processes events until ctx ends, the event stream closes or the user
// quits. It returns ErrQuit for a quit command.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.runCtx = ctx
	defer c.shutdown()
	// in-flight requests end before shutdown waits for them
	defer cancel()

	if c.poller != nil {
		c.refresh(ctx)
		c.options.Scheduler.Arm(ctx, c.options.RefreshInterval, func() {
			_ = c.poller.Poll(ctx)
		})
	}

	sweep := time.NewTicker(c.options.SweepInterval)
	defer sweep.Stop()

	c.render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-c.options.Events:
			if !ok {
				return nil
			}
			c.Handle(event)
		case <-c.statusUpdates:
			c.render()
		case cmd, ok := <-c.options.Commands:
			if !ok {
				// stdin closed, keep following events
				c.options.Commands = nil
				continue
			}
			if c.execute(ctx, cmd) {
				return ErrQuit
			}
		case now := <-sweep.C:
			c.sweep(now)
		}
	}
}

// Handle applies one event to the state and re-renders. Only the loop
// calls it outside of tests.
func (c *Controller) Handle(event types.Event) {
	h, ok := c.handlers[event.Name]
	if !ok {
		gologger.Debug().Msgf("ignoring unknown event %q", event.Name)
		return
	}
	if err := h(event); err != nil {
		gologger.Warning().Msgf("could not handle %s event: %v", event.Name, err)
		return
	}
	c.render()
}

// refresh polls the status once in the background
func (c *Controller) refresh(ctx context.Context) {
	if c.poller == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.poller.Poll(ctx)
	}()
}

func (c *Controller) ctx() context.Context {
	if c.runCtx == nil {
		return context.Background()
	}
	return c.runCtx
}

func (c *Controller) statusUpdated(snapshot types.StatusSnapshot) {
	select {
	case c.statusUpdates <- snapshot:
	case <-c.stopped:
	}
}

func (c *Controller) sweep(now time.Time) {
	expired := c.state.Scans.Expire(now)
	if len(expired) == 0 {
		return
	}
	for _, record := range expired {
		c.state.Tails.Forget(record.TaskID)
		gologger.Verbose().Msgf("dropped errored scan %s (%s)", record.TaskID, record.Target)
	}
	c.render()
}

func (c *Controller) notify(severity notify.Severity, message string) {
	c.options.Notifier.Notify(severity, message, c.options.ToastDuration)
}

func (c *Controller) render() {
	if c.options.Presenter == nil {
		return
	}
	c.options.Presenter.Render(c.view())
}

func (c *Controller) view() View {
	view := View{
		Connected: c.state.Connected,
		Activity:  c.state.Activity.Entries(),
		Now:       c.now(),
	}
	for _, record := range c.state.Scans.Snapshot() {
		line, _ := c.state.Tails.Last(record.TaskID)
		view.Scans = append(view.Scans, ScanView{Record: record, LastOutput: line})
	}
	if c.poller != nil {
		if snapshot, ok := c.poller.Snapshot(); ok {
			view.Status = &snapshot
		}
	}
	return view
}

func (c *Controller) shutdown() {
	c.stopOnce.Do(func() {
		close(c.stopped)
	})
	c.options.Scheduler.Stop()
	c.wg.Wait()
}

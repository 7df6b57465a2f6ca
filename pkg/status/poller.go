package status

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/scanwatch/pkg/types"
)

// ErrBadStatus wraps every failed poll
var ErrBadStatus = errors.New("status poll failed")

// Fetcher retrieves the current server status
type Fetcher interface {
	Status(ctx context.Context) (types.StatusSnapshot, error)
}

// Poller owns the latest StatusSnapshot. A failed poll leaves the previous
// snapshot untouched and is not retried before the next scheduled poll.
type Poller struct {
	fetcher  Fetcher
	onUpdate func(types.StatusSnapshot)

	mu       sync.RWMutex
	snapshot *types.StatusSnapshot
}

// NewPoller creates a poller. onUpdate is called after every successful poll.
func NewPoller(fetcher Fetcher, onUpdate func(types.StatusSnapshot)) *Poller {
	return &Poller{fetcher: fetcher, onUpdate: onUpdate}
}

// Poll performs exactly one status request
func (p *Poller) Poll(ctx context.Context) error {
	snapshot, err := p.fetcher.Status(ctx)
	if err != nil {
		gologger.Warning().Msgf("Failed to load system status: %v", err)
		return fmt.Errorf("%w: %w", ErrBadStatus, err)
	}

	p.mu.Lock()
	p.snapshot = &snapshot
	p.mu.Unlock()

	gologger.Debug().Msgf("status updated: %s (version %s)", snapshot.Status, snapshot.Version)
	if p.onUpdate != nil {
		p.onUpdate(snapshot)
	}
	return nil
}

// Snapshot returns the latest status, false until the first successful poll
func (p *Poller) Snapshot() (types.StatusSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snapshot == nil {
		return types.StatusSnapshot{}, false
	}
	return *p.snapshot, true
}

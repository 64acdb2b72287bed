package fakes

import (
	"context"
	"sync"

	"github.com/systmms/cacherotate/internal/record"
)

// FakePinger implements probe.Prober with a set of passwords considered live.
type FakePinger struct {
	mu   sync.Mutex
	live map[string]bool

	// Pings records every probed password, in order.
	Pings []string
}

// NewFakePinger creates a pinger where the given passwords authenticate.
func NewFakePinger(livePasswords ...string) *FakePinger {
	p := &FakePinger{live: make(map[string]bool)}
	for _, pw := range livePasswords {
		p.live[pw] = true
	}
	return p
}

// SetLive marks a password as accepted by the cluster.
func (p *FakePinger) SetLive(password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live[password] = true
}

// SetDead marks a password as rejected.
func (p *FakePinger) SetDead(password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, password)
}

// Ping implements probe.Prober.
func (p *FakePinger) Ping(_ context.Context, rec *record.Record) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Pings = append(p.Pings, rec.Password)
	return p.live[rec.Password]
}

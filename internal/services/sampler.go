package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/landloop/server/internal/lib/tracking"
)

// LocationSource hands out the most recent known fix. The platform-specific
// location adapter keeps it updated from its callbacks.
type LocationSource interface {
	LatestFix() (tracking.Fix, bool)
}

// LatestFixBuffer is the simplest LocationSource: a single-slot buffer the
// location adapter overwrites on every callback.
type LatestFixBuffer struct {
	mu  sync.RWMutex
	fix tracking.Fix
	set bool
}

// NewLatestFixBuffer creates an empty buffer.
func NewLatestFixBuffer() *LatestFixBuffer {
	return &LatestFixBuffer{}
}

// Update replaces the buffered fix.
func (b *LatestFixBuffer) Update(fix tracking.Fix) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fix = fix
	b.set = true
}

// LatestFix returns the most recent fix, if any has arrived yet.
func (b *LatestFixBuffer) LatestFix() (tracking.Fix, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fix, b.set
}

// PeriodicSampler implements the timer-gated pull variant of sampling: every
// interval it feeds the latest known fix into the tracking service. The
// filter's own time gate stays active underneath, so duplicate pulls of an
// unchanged fix are dropped as too-soon/too-close rather than duplicated.
// Compared to a fully event-driven push this trades a little sampling jitter
// (up to one interval) for a steady admission cadence.
type PeriodicSampler struct {
	source          LocationSource
	trackingService *TrackingService
	interval        time.Duration

	mu       sync.Mutex
	stopChan chan struct{}
	running  bool
}

// NewPeriodicSampler creates a sampler that pulls from source every interval.
func NewPeriodicSampler(source LocationSource, trackingService *TrackingService, interval time.Duration) *PeriodicSampler {
	return &PeriodicSampler{
		source:          source,
		trackingService: trackingService,
		interval:        interval,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the background sampling loop.
func (p *PeriodicSampler) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	log.Printf("Starting periodic location sampling every %v", p.interval)
	go p.sampleLoop(ctx)
}

// Stop halts the sampling loop. Safe to call at most once.
func (p *PeriodicSampler) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stopChan)
	log.Printf("Stopped periodic location sampling")
}

func (p *PeriodicSampler) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			if fix, ok := p.source.LatestFix(); ok {
				p.trackingService.Admit(fix)
			}
		}
	}
}

// Package daemon runs the sampling loop.
//
// One goroutine, one ticker: every poll interval the manager captures a
// sample and feeds it to the recorder, and each tick runs to completion
// (storage transaction included) before the next one fires. A tick that
// blocks on storage simply delays the next sample; there is no internal
// parallelism to coordinate.
package daemon

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/timelit/timelit/internal/config"
	"github.com/timelit/timelit/internal/monitor"
	"github.com/timelit/timelit/internal/recorder"
)

// Sampler produces one activity sample per call. Satisfied by
// monitor.Monitor; tests substitute a scripted implementation.
type Sampler interface {
	Capture(ctx context.Context) monitor.Sample
}

// Manager owns the sampling loop and the shutdown path.
type Manager struct {
	cfg     *config.Config
	sampler Sampler
	rec     *recorder.Recorder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// NewManager creates a sampling Manager.
func NewManager(cfg *config.Config, sampler Sampler, rec *recorder.Recorder) *Manager {
	return &Manager{
		cfg:     cfg,
		sampler: sampler,
		rec:     rec,
	}
}

// Start launches the sampling loop.
func (m *Manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)

	log.Printf("[daemon] Starting sampling loop (interval: %s)", m.cfg.PollInterval())

	m.wg.Add(1)
	go m.runSampleLoop()
}

// Stop cancels the loop, waits for the in-flight tick, and flushes the
// open segment. Exactly one flush happens no matter how often Stop is
// called; skipping it would lose the tail of the current segment.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		log.Println("[daemon] Stopping sampling loop...")
		m.cancel()
		m.wg.Wait()

		if err := m.rec.FlushAndClose(time.Now().Unix()); err != nil {
			log.Printf("[daemon] Final flush error: %v", err)
		}
		log.Println("[daemon] Sampling loop stopped")
	})
}

// runSampleLoop ticks at the poll interval until the context is done.
func (m *Manager) runSampleLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval())
	defer ticker.Stop()

	// Sample once immediately so a short-lived run still records.
	m.tick()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick captures and ingests one sample. Ingest errors are isolated to
// this tick: logged, and the next sample may well succeed.
func (m *Manager) tick() {
	sample := m.sampler.Capture(m.ctx)
	if err := m.rec.Ingest(sample); err != nil {
		log.Printf("[daemon] Ingest error: %v", err)
	}
}

package status

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/opencatalog/restrictedd/pkg/logging"
)

// MetricsProvider supplies runtime metrics from the gateway.
type MetricsProvider interface {
	RequestsServed() int64
	DecisionsDenied() int64
	StartTime() time.Time
}

// Writer maintains status files for daemon health monitoring: last_start and
// last_stop markers plus a periodically refreshed running file.
type Writer struct {
	dir             string
	updateInterval  time.Duration
	pid             int
	version         string
	metricsProvider MetricsProvider

	stopCh       chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// New creates a status Writer rooted at dir.
func New(dir string, updateInterval time.Duration, version string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create status directory: %w", err)
	}

	return &Writer{
		dir:            dir,
		updateInterval: updateInterval,
		pid:            os.Getpid(),
		version:        version,
		stopCh:         make(chan struct{}),
	}, nil
}

// SetMetricsProvider sets the provider for runtime metrics
func (w *Writer) SetMetricsProvider(provider MetricsProvider) {
	w.metricsProvider = provider
}

// WriteStartFile writes the last_start file with startup information
func (w *Writer) WriteStartFile() error {
	now := time.Now()
	content := fmt.Sprintf(`timestamp_unix: %d
timestamp_human: %s
pid: %d
version: %s
`,
		now.Unix(),
		now.Format("Mon Jan 02 15:04:05 2006"),
		w.pid,
		w.version,
	)

	if err := w.atomicWrite(filepath.Join(w.dir, "last_start"), []byte(content)); err != nil {
		return fmt.Errorf("failed to write last_start: %w", err)
	}

	logging.App.Info("Wrote status file", "file", "last_start")
	return nil
}

// WriteStopFile writes the last_stop file with shutdown information
func (w *Writer) WriteStopFile(reason string, uptime time.Duration) error {
	now := time.Now()
	content := fmt.Sprintf(`timestamp_unix: %d
timestamp_human: %s
reason: %s
uptime_seconds: %d
`,
		now.Unix(),
		now.Format("Mon Jan 02 15:04:05 2006"),
		reason,
		int64(uptime.Seconds()),
	)

	if err := w.atomicWrite(filepath.Join(w.dir, "last_stop"), []byte(content)); err != nil {
		return fmt.Errorf("failed to write last_stop: %w", err)
	}

	logging.App.Info("Wrote status file", "file", "last_stop", "reason", reason)
	return nil
}

// StartHeartbeat starts a goroutine that periodically updates the running file
func (w *Writer) StartHeartbeat() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.updateInterval)
		defer ticker.Stop()

		if err := w.writeRunningFile(); err != nil {
			logging.App.Error("Failed to write running file", "error", err)
		}

		for {
			select {
			case <-ticker.C:
				if err := w.writeRunningFile(); err != nil {
					logging.App.Error("Failed to write running file", "error", err)
				}
			case <-w.stopCh:
				return
			}
		}
	}()

	logging.App.Info("Started status heartbeat", "interval", w.updateInterval)
}

// Stop stops the heartbeat goroutine
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
	logging.App.Info("Stopped status heartbeat")
}

// Shutdown stops the heartbeat and records the stop reason. Only the first
// call writes the stop file; later calls are no-ops.
func (w *Writer) Shutdown(reason string) error {
	var err error
	w.shutdownOnce.Do(func() {
		w.Stop()

		uptime := time.Duration(0)
		if w.metricsProvider != nil {
			if start := w.metricsProvider.StartTime(); !start.IsZero() {
				uptime = time.Since(start)
			}
		}
		err = w.WriteStopFile(reason, uptime)
	})
	return err
}

// writeRunningFile writes the current runtime status to the running file
func (w *Writer) writeRunningFile() error {
	now := time.Now()

	var startTime time.Time
	var requestsServed, decisionsDenied int64

	if w.metricsProvider != nil {
		startTime = w.metricsProvider.StartTime()
		requestsServed = w.metricsProvider.RequestsServed()
		decisionsDenied = w.metricsProvider.DecisionsDenied()
	}

	uptime := int64(0)
	if !startTime.IsZero() {
		uptime = int64(now.Sub(startTime).Seconds())
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	content := fmt.Sprintf(`timestamp_unix: %d
uptime_seconds: %d
requests_served: %d
decisions_denied: %d
memory_alloc_mb: %d
goroutines: %d
`,
		now.Unix(),
		uptime,
		requestsServed,
		decisionsDenied,
		memStats.Alloc/1024/1024,
		runtime.NumGoroutine(),
	)

	if err := w.atomicWrite(filepath.Join(w.dir, "running"), []byte(content)); err != nil {
		return fmt.Errorf("failed to write running: %w", err)
	}

	logging.App.Debug("Updated running file", "requests_served", requestsServed)
	return nil
}

// atomicWrite writes content to a file atomically by writing to a temp file
// and then renaming it. This prevents readers from seeing partial writes.
func (w *Writer) atomicWrite(path string, content []byte) error {
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, content, 0644); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return nil
}

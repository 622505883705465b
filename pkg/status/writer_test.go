package status

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockMetricsProvider implements MetricsProvider for testing
type mockMetricsProvider struct {
	requests  int64
	denials   int64
	startTime time.Time
}

func (m *mockMetricsProvider) RequestsServed() int64 {
	return m.requests
}

func (m *mockMetricsProvider) DecisionsDenied() int64 {
	return m.denials
}

func (m *mockMetricsProvider) StartTime() time.Time {
	return m.startTime
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(tmpDir, 10*time.Second, "v1.0.0")
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	if w.dir != tmpDir {
		t.Errorf("Expected dir %s, got %s", tmpDir, w.dir)
	}
	if w.version != "v1.0.0" {
		t.Errorf("Expected version v1.0.0, got %s", w.version)
	}
	if w.pid == 0 {
		t.Error("Expected non-zero PID")
	}
}

func TestWriteStartFile(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(tmpDir, 10*time.Second, "v1.2.3")
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	if err := w.WriteStartFile(); err != nil {
		t.Fatalf("Failed to write start file: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "last_start"))
	if err != nil {
		t.Fatalf("Failed to read start file: %v", err)
	}

	for _, field := range []string{"timestamp_unix:", "timestamp_human:", "pid:", "version: v1.2.3"} {
		if !strings.Contains(string(content), field) {
			t.Errorf("Start file missing field: %s", field)
		}
	}
}

func TestWriteStopFile(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(tmpDir, 10*time.Second, "v1.0.0")
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	if err := w.WriteStopFile("signal_SIGTERM", 3600*time.Second); err != nil {
		t.Fatalf("Failed to write stop file: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "last_stop"))
	if err != nil {
		t.Fatalf("Failed to read stop file: %v", err)
	}

	for _, field := range []string{"reason: signal_SIGTERM", "uptime_seconds: 3600"} {
		if !strings.Contains(string(content), field) {
			t.Errorf("Stop file missing field: %s", field)
		}
	}
}

func TestWriteRunningFile(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(tmpDir, 10*time.Second, "v1.0.0")
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	mock := &mockMetricsProvider{
		requests:  42,
		denials:   7,
		startTime: time.Now().Add(-1 * time.Hour),
	}
	w.SetMetricsProvider(mock)

	if err := w.writeRunningFile(); err != nil {
		t.Fatalf("Failed to write running file: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "running"))
	if err != nil {
		t.Fatalf("Failed to read running file: %v", err)
	}

	contentStr := string(content)
	for _, field := range []string{
		"timestamp_unix:",
		"requests_served: 42",
		"decisions_denied: 7",
		"memory_alloc_mb:",
		"goroutines:",
	} {
		if !strings.Contains(contentStr, field) {
			t.Errorf("Running file missing field: %s", field)
		}
	}

	// Uptime should be approximately one hour.
	if !strings.Contains(contentStr, "uptime_seconds: 36") {
		t.Error("Expected uptime to be around 3600 seconds")
	}
}

func TestWithoutMetricsProvider(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(tmpDir, 10*time.Second, "v1.0.0")
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	if err := w.writeRunningFile(); err != nil {
		t.Fatalf("Failed to write running file without metrics provider: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "running"))
	if err != nil {
		t.Fatalf("Failed to read running file: %v", err)
	}

	if !strings.Contains(string(content), "requests_served: 0") {
		t.Error("Expected requests_served to be 0 without metrics provider")
	}
	if !strings.Contains(string(content), "uptime_seconds: 0") {
		t.Error("Expected uptime_seconds to be 0 without metrics provider")
	}
}

func TestHeartbeat(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(tmpDir, 100*time.Millisecond, "v1.0.0")
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	w.SetMetricsProvider(&mockMetricsProvider{startTime: time.Now()})

	w.StartHeartbeat()
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(tmpDir, "running")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("Running file was not created by heartbeat")
	}

	content1, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read running file: %v", err)
	}

	// Wait long enough for the unix timestamp to advance.
	time.Sleep(1200 * time.Millisecond)

	content2, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read running file after update: %v", err)
	}
	if string(content1) == string(content2) {
		t.Error("Running file was not updated by heartbeat")
	}

	w.Stop()
	time.Sleep(150 * time.Millisecond)

	content3, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read running file after stop: %v", err)
	}
	if string(content2) != string(content3) {
		t.Error("Running file was updated after heartbeat was stopped")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(tmpDir, 10*time.Second, "v1.0.0")
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	w.SetMetricsProvider(&mockMetricsProvider{startTime: time.Now()})

	w.StartHeartbeat()
	time.Sleep(50 * time.Millisecond)

	if err := w.Shutdown("signal_SIGTERM"); err != nil {
		t.Fatalf("First shutdown failed: %v", err)
	}
	if err := w.Shutdown("signal_SIGINT"); err != nil {
		t.Fatalf("Second shutdown failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "last_stop"))
	if err != nil {
		t.Fatalf("Failed to read stop file: %v", err)
	}

	if !strings.Contains(string(content), "reason: signal_SIGTERM") {
		t.Error("Stop file should have first reason (signal_SIGTERM)")
	}
	if strings.Contains(string(content), "signal_SIGINT") {
		t.Error("Stop file should not have been overwritten with signal_SIGINT")
	}
}

func TestAtomicWrite(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New(tmpDir, 10*time.Second, "v1.0.0")
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}

	path := filepath.Join(tmpDir, "testfile")
	content := []byte("test content\n")

	if err := w.atomicWrite(path, content); err != nil {
		t.Fatalf("Failed to atomically write file: %v", err)
	}

	readContent, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(readContent) != string(content) {
		t.Errorf("Expected content %q, got %q", content, readContent)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary file was not removed")
	}
}

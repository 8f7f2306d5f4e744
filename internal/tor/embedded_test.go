package tor

import (
	"errors"
	"testing"
	"time"
)

// TestNewDaemon tests the Daemon constructor.
func TestNewDaemon(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		opts     []DaemonOption
		expected time.Duration
	}{
		{"default timeout", nil, defaultStartupTimeout},
		{"1 minute", []DaemonOption{WithStartupTimeout(time.Minute)}, time.Minute},
		{"30 seconds", []DaemonOption{WithStartupTimeout(30 * time.Second)}, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewDaemon(tt.opts...)
			if d.startupTimeout != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, d.startupTimeout)
			}
		})
	}
}

// TestDaemonStopped tests Daemon methods without starting Tor.
func TestDaemonStopped(t *testing.T) {
	t.Parallel()

	d := NewDaemon()
	if d.Running() {
		t.Error("expected stopped daemon")
	}
	if d.SocksAddr() != "" {
		t.Error("expected empty SocksAddr before start")
	}
	if err := d.Stop(); err != nil {
		t.Errorf("expected no error stopping unstarted daemon, got %v", err)
	}
	if _, err := d.Proxy(); !errors.Is(err, ErrDaemonNotRunning) {
		t.Errorf("expected ErrDaemonNotRunning, got %v", err)
	}
}

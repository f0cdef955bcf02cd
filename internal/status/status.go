// Package status provides a thread-safe status tracker for the lock-feedback daemon.
// It is read by the HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/lock-feedback/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	BatchSize        int
	HistorySize      int
	SettleMs         int64
	ActiveIntervalMs int64
	PausedIntervalMs int64
	HeartbeatMs      int64
	DAQ              string
	Controller       string
	Broker           string
	HTTPPort         string
	Redis            string // empty = disabled
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Active        bool
	Report        logic.Report
	Baselined     bool
	Band          logic.Band
	Thresholds    logic.Thresholds
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Lock returns the last classified lock state, or "" before the first batch.
func (s Snapshot) Lock() logic.LockState {
	if !s.Baselined {
		return ""
	}
	return s.Report.Reading.State
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, band and config.
func NewTracker(startTime time.Time, band logic.Band, th logic.Thresholds, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:  startTime,
			Band:       band,
			Thresholds: th,
			Config:     cfg,
			Report:     logic.Report{WithinBounds: true},
		},
	}
}

// Record stores the report of the latest loop iteration.
// Called from the loop goroutine on every active iteration.
func (t *Tracker) Record(r logic.Report) {
	t.mu.Lock()
	t.snap.Report = r
	if r.ReadErr == nil {
		t.snap.Baselined = true
	}
	t.mu.Unlock()
}

// SetActive records whether the loop is sampling.
func (t *Tracker) SetActive(active bool) {
	t.mu.Lock()
	t.snap.Active = active
	t.mu.Unlock()
}

// SetSetpoint records the chiller setpoint outside a loop iteration
// (at startup, before the first report).
func (t *Tracker) SetSetpoint(sp float64) {
	t.mu.Lock()
	t.snap.Report.Setpoint = sp
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Report.Events = nil
	s.Now = time.Now()
	return s
}

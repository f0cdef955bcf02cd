package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/lock-feedback/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Active        bool           `json:"active"`
	Lock          string         `json:"lock"`
	Ready         bool           `json:"ready"`
	Mean          float64        `json:"mean"`
	StdDev        float64        `json:"stddev"`
	WithinBounds  bool           `json:"within_bounds"`
	Setpoint      float64        `json:"setpoint"`
	LastAction    string         `json:"last_action,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	Band          BandJSON       `json:"band"`
	Thresholds    ThresholdsJSON `json:"thresholds"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"counts"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// BandJSON is the JSON representation of the signal band.
type BandJSON struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// ThresholdsJSON is the JSON representation of the classifier thresholds.
type ThresholdsJSON struct {
	OutOfLock  float64 `json:"out_of_lock"`
	NotLocking float64 `json:"not_locking"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of loop activity counts.
type CountsJSON struct {
	Iterations int `json:"iterations"`
	ReadErrors int `json:"read_errors"`
	Raises     int `json:"raises"`
	Lowers     int `json:"lowers"`
	Rearms     int `json:"rearms"`
	Failures   int `json:"failures"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	BatchSize        int    `json:"batch_size"`
	HistorySize      int    `json:"history_size"`
	SettleMs         int64  `json:"settle_ms"`
	ActiveIntervalMs int64  `json:"active_interval_ms"`
	PausedIntervalMs int64  `json:"paused_interval_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	DAQ              string `json:"daq"`
	Controller       string `json:"controller"`
	Broker           string `json:"broker"`
	HTTPPort         string `json:"http_port"`
	Redis            string `json:"redis,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	lock := string(snap.Lock())
	if lock == "" {
		lock = "UNKNOWN"
	}

	r := snap.Report
	inner := StatusInner{
		Active:        snap.Active,
		Lock:          lock,
		Ready:         snap.Baselined,
		Mean:          r.Reading.Mean,
		StdDev:        r.Reading.StdDev,
		WithinBounds:  r.WithinBounds,
		Setpoint:      r.Setpoint,
		Band:          BandJSON{Low: snap.Band.Low, High: snap.Band.High},
		Thresholds:    ThresholdsJSON{OutOfLock: snap.Thresholds.OutOfLock, NotLocking: snap.Thresholds.NotLocking},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Iterations: r.Counts.Iterations,
			ReadErrors: r.Counts.ReadErrors,
			Raises:     r.Counts.Raises,
			Lowers:     r.Counts.Lowers,
			Rearms:     r.Counts.Rearms,
			Failures:   r.Counts.Failures,
		},
		Config: ConfigJSON{
			BatchSize:        snap.Config.BatchSize,
			HistorySize:      snap.Config.HistorySize,
			SettleMs:         snap.Config.SettleMs,
			ActiveIntervalMs: snap.Config.ActiveIntervalMs,
			PausedIntervalMs: snap.Config.PausedIntervalMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			DAQ:              snap.Config.DAQ,
			Controller:       snap.Config.Controller,
			Broker:           snap.Config.Broker,
			HTTPPort:         snap.Config.HTTPPort,
			Redis:            snap.Config.Redis,
		},
	}
	if r.Decision.Action != "" {
		inner.LastAction = string(r.Decision.Action)
	}
	switch {
	case r.ReadErr != nil:
		inner.LastError = r.ReadErr.Error()
	case r.CommandErr != nil:
		inner.LastError = r.CommandErr.Error()
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// ReportJSON is the JSON representation of one loop iteration.
type ReportJSON struct {
	Timestamp    string   `json:"timestamp"`
	Lock         string   `json:"lock,omitempty"`
	Mean         float64  `json:"mean"`
	StdDev       float64  `json:"stddev"`
	Action       string   `json:"action,omitempty"`
	Bound        string   `json:"bound,omitempty"`
	WithinBounds bool     `json:"within_bounds"`
	Setpoint     float64  `json:"setpoint"`
	Events       []string `json:"events,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// NewReportJSON converts a loop report. A failed read carries no lock state.
func NewReportJSON(r logic.Report) ReportJSON {
	rj := ReportJSON{
		Timestamp:    r.Timestamp.UTC().Format(time.RFC3339Nano),
		WithinBounds: r.WithinBounds,
		Setpoint:     r.Setpoint,
	}
	if r.ReadErr != nil {
		rj.Error = r.ReadErr.Error()
		return rj
	}
	rj.Lock = string(r.Reading.State)
	rj.Mean = r.Reading.Mean
	rj.StdDev = r.Reading.StdDev
	rj.Action = string(r.Decision.Action)
	rj.Bound = string(r.Decision.Bound)
	for _, e := range r.Events {
		rj.Events = append(rj.Events, string(e.Type))
	}
	if r.CommandErr != nil {
		rj.Error = r.CommandErr.Error()
	}
	return rj
}

// FormatReport returns the compact JSON for a loop report.
func FormatReport(r logic.Report) []byte {
	data, _ := json.Marshal(NewReportJSON(r))
	return data
}

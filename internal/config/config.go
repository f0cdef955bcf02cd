// Package config holds the daemon settings. Values come from built-in
// defaults, then an optional YAML file, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/lock-feedback/internal/daq"
	"github.com/sweeney/lock-feedback/internal/feedback"
	"github.com/sweeney/lock-feedback/internal/gpio"
	"github.com/sweeney/lock-feedback/internal/logic"
	"github.com/sweeney/lock-feedback/internal/redisstore"
	"github.com/sweeney/lock-feedback/internal/serial"
	"github.com/sweeney/lock-feedback/internal/sim"
	"github.com/sweeney/lock-feedback/internal/status"
	"github.com/sweeney/lock-feedback/internal/t255"
)

// Driver names.
const (
	DriverSim    = "sim"
	DriverIIO    = "iio"
	DriverSerial = "serial"
)

// Config is the complete daemon configuration.
type Config struct {
	Loop       LoopConfig       `mapstructure:"loop"`
	Band       BandConfig       `mapstructure:"band"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	DAQ        DAQConfig        `mapstructure:"daq"`
	Controller ControllerConfig `mapstructure:"controller"`
	Sim        SimConfig        `mapstructure:"sim"`
	Indicator  IndicatorConfig  `mapstructure:"indicator"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MDNS       MDNSConfig       `mapstructure:"mdns"`
}

type LoopConfig struct {
	BatchSize      int           `mapstructure:"batch_size"`
	HistorySize    int           `mapstructure:"history_size"`
	Settle         time.Duration `mapstructure:"settle"`
	ActiveInterval time.Duration `mapstructure:"active_interval"`
	PausedInterval time.Duration `mapstructure:"paused_interval"`
	StartActive    bool          `mapstructure:"start_active"`
}

type BandConfig struct {
	Low  float64 `mapstructure:"low"`
	High float64 `mapstructure:"high"`
}

type ThresholdsConfig struct {
	OutOfLock  float64 `mapstructure:"out_of_lock"`
	NotLocking float64 `mapstructure:"not_locking"`
}

type DAQConfig struct {
	Driver string    `mapstructure:"driver"`
	IIO    IIOConfig `mapstructure:"iio"`
}

type IIOConfig struct {
	Root         string        `mapstructure:"root"`
	Device       string        `mapstructure:"device"`
	Channel      int           `mapstructure:"channel"`
	SamplePeriod time.Duration `mapstructure:"sample_period"`
}

type ControllerConfig struct {
	Driver      string        `mapstructure:"driver"`
	Device      string        `mapstructure:"device"`
	BaudRate    int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	Limits      LimitsConfig  `mapstructure:"limits"`
}

type LimitsConfig struct {
	Lower float64 `mapstructure:"lower"`
	Upper float64 `mapstructure:"upper"`
	Step  float64 `mapstructure:"step"`
}

type SimConfig struct {
	Setpoint       float64       `mapstructure:"setpoint"`
	Nominal        float64       `mapstructure:"nominal"`
	Mean           float64       `mapstructure:"mean"`
	Gain           float64       `mapstructure:"gain"`
	DriftAmplitude float64       `mapstructure:"drift_amplitude"`
	DriftPeriod    time.Duration `mapstructure:"drift_period"`
	Noise          float64       `mapstructure:"noise"`
	Seed           uint64        `mapstructure:"seed"`
}

type IndicatorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Chip    string `mapstructure:"chip"`
	Pin     int    `mapstructure:"pin"`
}

type MQTTConfig struct {
	Broker    string        `mapstructure:"broker"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Prefix       string        `mapstructure:"prefix"`
	HistoryLimit int64         `mapstructure:"history_limit"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type MDNSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Instance string `mapstructure:"instance"`
}

// Defaults returns the lab configuration: simulated hardware, status page
// on :8080, no Redis mirror.
func Defaults() Config {
	fb := feedback.DefaultConfig()
	sc := serial.DefaultConfig()
	lim := t255.DefaultLimits()
	sm := sim.DefaultConfig()
	rd := redisstore.DefaultConfig()

	return Config{
		Loop: LoopConfig{
			BatchSize:      fb.BatchSize,
			HistorySize:    fb.HistorySize,
			Settle:         fb.Settle,
			ActiveInterval: fb.ActiveInterval,
			PausedInterval: fb.PausedInterval,
			StartActive:    fb.StartActive,
		},
		Band:       BandConfig{Low: fb.Band.Low, High: fb.Band.High},
		Thresholds: ThresholdsConfig{OutOfLock: fb.Thresholds.OutOfLock, NotLocking: fb.Thresholds.NotLocking},
		DAQ: DAQConfig{
			Driver: DriverSim,
			IIO: IIOConfig{
				Root:         daq.DefaultIIORoot,
				Device:       "iio:device0",
				SamplePeriod: time.Millisecond,
			},
		},
		Controller: ControllerConfig{
			Driver:      DriverSim,
			Device:      "/dev/ttyUSB0",
			BaudRate:    sc.BaudRate,
			ReadTimeout: sc.ReadTimeout,
			Limits:      LimitsConfig{Lower: lim.Lower, Upper: lim.Upper, Step: lim.Step},
		},
		Sim: SimConfig{
			Setpoint:       sm.Setpoint,
			Nominal:        sm.Nominal,
			Mean:           sm.Mean,
			Gain:           sm.Gain,
			DriftAmplitude: sm.DriftAmplitude,
			DriftPeriod:    sm.DriftPeriod,
			Noise:          sm.Noise,
			Seed:           sm.Seed,
		},
		Indicator: IndicatorConfig{Chip: gpio.DefaultChip, Pin: gpio.DefaultPinLock},
		MQTT:      MQTTConfig{Broker: "tcp://localhost:1883", Heartbeat: 15 * time.Minute},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Redis: RedisConfig{
			Prefix:       rd.Prefix,
			HistoryLimit: rd.HistoryLimit,
			Timeout:      rd.Timeout,
		},
		MDNS: MDNSConfig{Instance: "lock-feedback"},
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if err := c.Feedback().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.DAQ.Driver {
	case DriverSim:
	case DriverIIO:
		if c.DAQ.IIO.Device == "" {
			errs = append(errs, errors.New("daq.iio.device is required for the iio driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown daq driver %q", c.DAQ.Driver))
	}
	switch c.Controller.Driver {
	case DriverSim:
	case DriverSerial:
		if c.Controller.Device == "" {
			errs = append(errs, errors.New("controller.device is required for the serial driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown controller driver %q", c.Controller.Driver))
	}
	l := c.Controller.Limits
	if l.Lower >= l.Upper {
		errs = append(errs, fmt.Errorf("limits lower %.2f must be below upper %.2f", l.Lower, l.Upper))
	}
	if l.Step <= 0 {
		errs = append(errs, fmt.Errorf("limits step must be positive, got %.2f", l.Step))
	}
	if c.MQTT.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must not be negative, got %v", c.MQTT.Heartbeat))
	}
	if c.MDNS.Enabled && c.HTTP.Addr == "" {
		errs = append(errs, errors.New("mdns needs the http server"))
	}
	return errors.Join(errs...)
}

// Feedback returns the loop parameters.
func (c Config) Feedback() feedback.Config {
	return feedback.Config{
		BatchSize:      c.Loop.BatchSize,
		HistorySize:    c.Loop.HistorySize,
		Band:           logic.Band{Low: c.Band.Low, High: c.Band.High},
		Thresholds:     logic.Thresholds{OutOfLock: c.Thresholds.OutOfLock, NotLocking: c.Thresholds.NotLocking},
		Settle:         c.Loop.Settle,
		ActiveInterval: c.Loop.ActiveInterval,
		PausedInterval: c.Loop.PausedInterval,
		StartActive:    c.Loop.StartActive,
	}
}

// Limits returns the chiller setpoint limits.
func (c Config) Limits() t255.Limits {
	l := c.Controller.Limits
	return t255.Limits{Lower: l.Lower, Upper: l.Upper, Step: l.Step}
}

// Serial returns the serial port settings of the chiller.
func (c Config) Serial() serial.Config {
	return serial.Config{
		Device:      c.Controller.Device,
		BaudRate:    c.Controller.BaudRate,
		ReadTimeout: c.Controller.ReadTimeout,
	}
}

// IIO returns the ADC settings.
func (c Config) IIO() daq.IIOConfig {
	return daq.IIOConfig{
		Root:         c.DAQ.IIO.Root,
		Device:       c.DAQ.IIO.Device,
		Channel:      c.DAQ.IIO.Channel,
		SamplePeriod: c.DAQ.IIO.SamplePeriod,
	}
}

// Plant returns the simulator settings.
func (c Config) Plant() sim.Config {
	s := c.Sim
	return sim.Config{
		Setpoint:       s.Setpoint,
		Nominal:        s.Nominal,
		Mean:           s.Mean,
		Gain:           s.Gain,
		DriftAmplitude: s.DriftAmplitude,
		DriftPeriod:    s.DriftPeriod,
		Noise:          s.Noise,
		Seed:           s.Seed,
		Limits:         c.Limits(),
	}
}

// RedisStore returns the Redis mirror settings.
func (c Config) RedisStore() redisstore.Config {
	r := c.Redis
	return redisstore.Config{
		Addr:         r.Addr,
		Password:     r.Password,
		DB:           r.DB,
		Prefix:       r.Prefix,
		HistoryLimit: r.HistoryLimit,
		Timeout:      r.Timeout,
	}
}

// Status returns the settings shown on the status page.
func (c Config) Status() status.Config {
	return status.Config{
		BatchSize:        c.Loop.BatchSize,
		HistorySize:      c.Loop.HistorySize,
		SettleMs:         c.Loop.Settle.Milliseconds(),
		ActiveIntervalMs: c.Loop.ActiveInterval.Milliseconds(),
		PausedIntervalMs: c.Loop.PausedInterval.Milliseconds(),
		HeartbeatMs:      c.MQTT.Heartbeat.Milliseconds(),
		DAQ:              c.DAQ.Driver,
		Controller:       c.Controller.Driver,
		Broker:           c.MQTT.Broker,
		HTTPPort:         c.HTTP.Addr,
		Redis:            c.Redis.Addr,
	}
}

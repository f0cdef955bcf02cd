package config

import (
	"flag"
	"fmt"
)

// Bind registers one flag per commonly tuned setting, with c's current
// values as defaults.
func Bind(fs *flag.FlagSet, c *Config) {
	fs.IntVar(&c.Loop.BatchSize, "batch", c.Loop.BatchSize, "Samples per acquisition batch")
	fs.IntVar(&c.Loop.HistorySize, "history", c.Loop.HistorySize, "Samples kept for the plot")
	fs.DurationVar(&c.Loop.Settle, "settle", c.Loop.Settle, "Time the mean must stay in band before re-arming")
	fs.DurationVar(&c.Loop.ActiveInterval, "interval", c.Loop.ActiveInterval, "Loop interval while active")
	fs.DurationVar(&c.Loop.PausedInterval, "paused-interval", c.Loop.PausedInterval, "Loop interval while paused")
	fs.BoolVar(&c.Loop.StartActive, "start-active", c.Loop.StartActive, "Start with the loop running")

	fs.Float64Var(&c.Band.Low, "band-low", c.Band.Low, "Lower edge of the mean band (V)")
	fs.Float64Var(&c.Band.High, "band-high", c.Band.High, "Upper edge of the mean band (V)")
	fs.Float64Var(&c.Thresholds.OutOfLock, "out-of-lock", c.Thresholds.OutOfLock, "Stddev above which the lock has failed (V)")
	fs.Float64Var(&c.Thresholds.NotLocking, "not-locking", c.Thresholds.NotLocking, "Stddev below which the lockbox is disengaged (V)")

	fs.StringVar(&c.DAQ.Driver, "daq", c.DAQ.Driver, `Acquisition driver ("sim" or "iio")`)
	fs.StringVar(&c.DAQ.IIO.Device, "iio-device", c.DAQ.IIO.Device, "IIO device directory name")
	fs.IntVar(&c.DAQ.IIO.Channel, "iio-channel", c.DAQ.IIO.Channel, "IIO voltage channel index")

	fs.StringVar(&c.Controller.Driver, "controller", c.Controller.Driver, `Chiller driver ("sim" or "serial")`)
	fs.StringVar(&c.Controller.Device, "serial", c.Controller.Device, "Chiller serial device")
	fs.IntVar(&c.Controller.BaudRate, "baud", c.Controller.BaudRate, "Chiller serial baud rate")
	fs.Float64Var(&c.Controller.Limits.Lower, "limit-lower", c.Controller.Limits.Lower, "Lowest allowed setpoint (°C)")
	fs.Float64Var(&c.Controller.Limits.Upper, "limit-upper", c.Controller.Limits.Upper, "Highest allowed setpoint (°C)")
	fs.Float64Var(&c.Controller.Limits.Step, "step", c.Controller.Limits.Step, "Setpoint step per actuation (°C)")

	fs.Float64Var(&c.Sim.Noise, "sim-noise", c.Sim.Noise, "Simulated per-sample noise (V)")

	fs.BoolVar(&c.Indicator.Enabled, "indicator", c.Indicator.Enabled, "Drive the lock indicator GPIO line")
	fs.IntVar(&c.Indicator.Pin, "indicator-pin", c.Indicator.Pin, "BCM pin of the lock indicator")

	fs.StringVar(&c.MQTT.Broker, "broker", c.MQTT.Broker, "MQTT broker address")
	fs.DurationVar(&c.MQTT.Heartbeat, "heartbeat", c.MQTT.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&c.HTTP.Addr, "http", c.HTTP.Addr, "HTTP status address (empty to disable)")
	fs.StringVar(&c.Redis.Addr, "redis", c.Redis.Addr, "Redis address for the state mirror (empty to disable)")
	fs.BoolVar(&c.MDNS.Enabled, "mdns", c.MDNS.Enabled, "Advertise the status page over mDNS")
}

// Overlay applies the flags explicitly set on fs on top of base.
// Flags not registered by Bind are ignored.
func Overlay(base Config, fs *flag.FlagSet) (Config, error) {
	out := base
	bound := flag.NewFlagSet("overlay", flag.ContinueOnError)
	Bind(bound, &out)

	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil || bound.Lookup(f.Name) == nil {
			return
		}
		if setErr := bound.Set(f.Name, f.Value.String()); setErr != nil {
			err = fmt.Errorf("flag -%s: %w", f.Name, setErr)
		}
	})
	return out, err
}

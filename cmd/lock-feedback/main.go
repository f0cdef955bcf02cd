// Command lock-feedback keeps a laser lock inside its operating band by
// nudging the chiller setpoint, and publishes lock events to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sweeney/lock-feedback/internal/config"
	"github.com/sweeney/lock-feedback/internal/daq"
	"github.com/sweeney/lock-feedback/internal/discovery"
	"github.com/sweeney/lock-feedback/internal/feedback"
	"github.com/sweeney/lock-feedback/internal/gpio"
	"github.com/sweeney/lock-feedback/internal/logic"
	"github.com/sweeney/lock-feedback/internal/mqtt"
	"github.com/sweeney/lock-feedback/internal/redisstore"
	"github.com/sweeney/lock-feedback/internal/sim"
	"github.com/sweeney/lock-feedback/internal/status"
	"github.com/sweeney/lock-feedback/internal/t255"
	"github.com/sweeney/lock-feedback/internal/web"
)

// heartbeatCheck is how often the heartbeat interval is checked.
const heartbeatCheck = time.Second

func main() {
	cfg, printState, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// parseArgs resolves the configuration: defaults, then the -config file,
// then any flag given explicitly.
func parseArgs(args []string) (config.Config, bool, error) {
	fs := flag.NewFlagSet("lock-feedback", flag.ContinueOnError)
	path := fs.String("config", "", "YAML configuration file")
	printState := fs.Bool("print-state", false, "Print current lock state and exit")

	cfg := config.Defaults()
	config.Bind(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, false, err
	}

	if *path != "" {
		loaded, err := config.Load(*path)
		if err != nil {
			return config.Config{}, false, err
		}
		if cfg, err = config.Overlay(loaded, fs); err != nil {
			return config.Config{}, false, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, false, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, *printState, nil
}

// devices are the hardware (or simulated) endpoints of the loop.
type devices struct {
	reader    daq.Reader
	ctl       t255.Controller
	indicator gpio.Line
}

// close releases whatever was opened. Used only before the loop takes
// ownership.
func (d devices) close() {
	if d.indicator != nil {
		d.indicator.Close()
	}
	if d.reader != nil {
		d.reader.Close()
	}
	if d.ctl != nil {
		d.ctl.Close()
	}
}

// openDevices opens the configured drivers. When both are simulated they
// share one plant so that actuation moves the signal.
func openDevices(cfg config.Config) (devices, error) {
	var d devices
	var plant *sim.Plant
	simPlant := func() *sim.Plant {
		if plant == nil {
			plant = sim.New(cfg.Plant())
		}
		return plant
	}

	switch cfg.DAQ.Driver {
	case config.DriverIIO:
		r, err := daq.NewIIOReader(cfg.IIO())
		if err != nil {
			return d, fmt.Errorf("init daq: %w", err)
		}
		d.reader = r
	default:
		d.reader = simPlant()
	}

	switch cfg.Controller.Driver {
	case config.DriverSerial:
		c, err := t255.Open(cfg.Serial(), cfg.Limits())
		if err != nil {
			d.close()
			return devices{}, fmt.Errorf("init t255: %w", err)
		}
		d.ctl = c
	default:
		d.ctl = simPlant()
	}

	if cfg.Indicator.Enabled {
		line, err := gpio.NewRealLine(cfg.Indicator.Chip, cfg.Indicator.Pin)
		if err != nil {
			d.close()
			return devices{}, fmt.Errorf("init indicator: %w", err)
		}
		d.indicator = line
	}
	return d, nil
}

func run(cfg config.Config, printOnly bool) error {
	dev, err := openDevices(cfg)
	if err != nil {
		return err
	}

	// Print state mode
	if printOnly {
		defer dev.close()
		return printState(os.Stdout, dev.reader, dev.ctl, cfg.Loop.BatchSize, cfg.Feedback().Thresholds)
	}

	fb := cfg.Feedback()
	tracker := status.NewTracker(time.Now(), fb.Band, fb.Thresholds, cfg.Status())
	if info := readNetworkInfo(); info != nil {
		tracker.SetNetwork(info)
	}

	publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker)
	if err != nil {
		dev.close()
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := web.NewHub()
	go hub.Run(ctx)

	sink := mqtt.NewSink(publisher)
	opts := []feedback.Option{
		feedback.WithObserver(tracker),
		feedback.WithObserver(sink),
		feedback.WithObserver(hub),
	}
	if dev.indicator != nil {
		opts = append(opts, feedback.WithIndicator(dev.indicator))
	}

	if cfg.Redis.Addr != "" {
		store := redisstore.New(cfg.RedisStore())
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			log.Printf("redis: %v (will keep retrying)", err)
		}
		go store.Run(ctx)
		opts = append(opts, feedback.WithObserver(store))
	}

	loop, err := feedback.New(fb, dev.reader, dev.ctl, opts...)
	if err != nil {
		dev.close()
		return err
	}
	latest := loop.Latest()
	tracker.SetSetpoint(latest.Setpoint)
	tracker.SetActive(loop.Active())
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, loop, hub)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)

		if cfg.MDNS.Enabled {
			var adv discovery.Advertiser
			if err := advertise(&adv, cfg); err != nil {
				log.Printf("mdns: %v", err)
			}
			defer adv.Shutdown()
		}
	}

	log.Printf("started: daq=%s controller=%s setpoint=%.1f broker=%s heartbeat=%v",
		cfg.DAQ.Driver, cfg.Controller.Driver, latest.Setpoint, cfg.MQTT.Broker, cfg.MQTT.Heartbeat)

	hb := time.NewTicker(heartbeatCheck)
	defer hb.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop, sink, publisher, publisher, tracker, cfg.MQTT.Heartbeat, time.Now, hb.C, sigCh)
}

// runLoop runs the feedback loop and the event sink until a signal arrives,
// publishing heartbeats meanwhile. On shutdown the loop releases the devices,
// the sink publishes what is still queued, and then SHUTDOWN is published.
func runLoop(lp *feedback.Loop, sink *mqtt.Sink, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinkCtx, stopSink := context.WithCancel(context.Background())
	defer stopSink()
	sinkDone := make(chan struct{})
	go func() {
		sink.Run(sinkCtx)
		close(sinkDone)
	}()
	drain := func() {
		stopSink()
		<-sinkDone
	}

	done := make(chan error, 1)
	go func() {
		done <- lp.Run(ctx)
	}()

	for {
		select {
		case err := <-done:
			drain()
			return err

		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			cancel()
			err := <-done
			drain()

			reason := signalName(s)
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    reason,
				Retained:  true,
			}
			if tracker != nil {
				refreshTracker(tracker, lp, mqttStatus)
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", reason)
			}
			if perr := publisher.PublishSystem(event); perr != nil {
				log.Printf("failed to publish shutdown event: %v", perr)
			} else {
				log.Printf("published shutdown event")
			}
			return err

		case <-tick:
			hbData := lp.CheckHeartbeat(now(), heartbeat)
			if hbData == nil {
				continue
			}
			c := hbData.Counts
			log.Printf("heartbeat: uptime=%v iterations=%d raises=%d lowers=%d rearms=%d failures=%d read_errors=%d",
				hbData.Uptime, c.Iterations, c.Raises, c.Lowers, c.Rearms, c.Failures, c.ReadErrors)

			hbEvent := mqtt.SystemEvent{
				Timestamp: hbData.Timestamp,
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				// Refresh network info for heartbeat
				if info := readNetworkInfo(); info != nil {
					tracker.SetNetwork(info)
				}
				refreshTracker(tracker, lp, mqttStatus)
				hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

func refreshTracker(tracker *status.Tracker, lp *feedback.Loop, mqttStatus mqtt.ConnectionStatus) {
	tracker.SetActive(lp.Active())
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// printState reads one batch and the setpoint and prints a one-line summary.
func printState(w io.Writer, reader daq.Reader, ctl t255.Controller, batch int, th logic.Thresholds) error {
	samples, err := reader.ReadBatch(batch)
	if err != nil {
		return fmt.Errorf("read daq: %w", err)
	}
	r := logic.ClassifyBatch(samples, th)

	sp, err := ctl.Setpoint()
	if err != nil {
		return fmt.Errorf("read setpoint: %w", err)
	}

	fmt.Fprintf(w, "lock: %s mean=%.4f std=%.4f setpoint=%.1f", r.State, r.Mean, r.StdDev, sp)
	if cr, ok := ctl.(t255.CoolantReader); ok {
		if coolant, err := cr.CoolantTemperature(); err == nil {
			fmt.Fprintf(w, " coolant=%.2f", coolant)
		}
	}
	fmt.Fprintln(w)
	return nil
}

func advertise(adv *discovery.Advertiser, cfg config.Config) error {
	port, err := httpPort(cfg.HTTP.Addr)
	if err != nil {
		return err
	}
	return adv.Start(cfg.MDNS.Instance, port, discovery.TXT(map[string]string{
		"path":       "/",
		"ws":         "/ws",
		"daq":        cfg.DAQ.Driver,
		"controller": cfg.Controller.Driver,
	}))
}

// httpPort extracts the numeric port of a listen address such as ":8080".
func httpPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("http address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("http address %q: no numeric port", addr)
	}
	return port, nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

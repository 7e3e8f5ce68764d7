package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"gpsmon/internal/board"
	"gpsmon/internal/bus"
	"gpsmon/internal/cmdchan"
	"gpsmon/internal/config"
	"gpsmon/internal/driver"
	"gpsmon/internal/gpsmon"
	"gpsmon/internal/hwline"
	"gpsmon/internal/logging"
	"gpsmon/internal/notify"
	"gpsmon/internal/transport"
	"gpsmon/internal/udp"
	"gpsmon/internal/web"
)

// runtime owns every long-lived component of the daemon.
type runtime struct {
	cfg   config.Config
	log   *logrus.Logger
	logs  *web.LogBuffer
	board board.Board

	lines  hwline.Driver
	hw     *hwline.Controller
	port   transport.Port
	feed   *notify.Broadcaster
	mon    *gpsmon.Monitor
	reader *driver.Reader
	cmds   *cmdchan.Channel

	udpIn  *udp.Listener
	udpOut *udp.Broadcaster
	mqtt   mqtt.Client
}

var (
	connectMQTT = bus.Connect
	openPort    = transport.Open
)

func newRuntime(ctx context.Context, cfg config.Config, log *logrus.Logger, logs *web.LogBuffer) (*runtime, error) {
	if log == nil {
		return nil, errors.New("logger is nil")
	}
	b, err := board.Lookup(cfg.Hardware.Board)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: log, logs: logs, board: b}
	if err := rt.open(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// open builds every component in dependency order. On error the caller
// closes whatever was already opened.
func (rt *runtime) open(ctx context.Context) error {
	cfg, log := rt.cfg, rt.log
	var err error
	rt.lines, err = hwline.Open(hwline.Config{
		Backend:  cfg.Hardware.Backend,
		Chip:     cfg.Hardware.Chip,
		Lines:    cfg.LineNames(),
		Consumer: cfg.Hardware.Consumer,
	})
	if err != nil {
		return fmt.Errorf("hardware: %w", err)
	}
	opts := []hwline.Option{hwline.WithWiggleDelay(rt.board.WiggleDelay)}
	if cfg.Hardware.PulseWidth > 0 {
		opts = append(opts, hwline.WithPulseWidth(cfg.Hardware.PulseWidth))
	}
	rt.hw = hwline.NewController(rt.lines, logging.Component(log, "hwline"), opts...)

	rt.port, err = openPort(ctx, transport.Config{
		Backend:     cfg.Transport.Backend,
		Device:      cfg.Transport.Device,
		Baud:        cfg.Transport.Baud,
		Capture:     cfg.Transport.Capture,
		ReplaySpeed: cfg.Transport.ReplaySpeed,
		ReplayLoop:  cfg.Transport.ReplayLoop,
	})
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}

	rt.feed = notify.NewBroadcaster(cfg.Notify.History)
	rt.mon = gpsmon.NewMonitor(cfg.MachineConfig(), gpsmon.Deps{
		Hardware: rt.hw,
		Link:     transport.NewLink(rt.port),
		Notifier: rt.feed,
		Log:      logging.Component(log, "gpsmon"),
	})
	rt.reader = driver.NewReader(rt.port, rt.mon, cfg.Monitor.EventRepeat, logging.Component(log, "driver"))
	rt.cmds = cmdchan.New(rt.mon, logging.Component(log, "cmdchan"))

	if addr := cfg.Command.UDPListen; addr != "" {
		if rt.udpIn, err = udp.Listen(addr); err != nil {
			return fmt.Errorf("command udp listen: %w", err)
		}
	}
	if dest := cfg.Notify.UDPDest; dest != "" {
		if rt.udpOut, err = udp.NewBroadcaster(dest); err != nil {
			return fmt.Errorf("notify udp: %w", err)
		}
	}
	if cfg.MQTT.Broker != "" {
		rt.mqtt, err = connectMQTT(bus.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, logging.Component(log, "mqtt"), rt.subscribeCommands(ctx))
		if err != nil {
			return err
		}
	}
	return nil
}

func (rt *runtime) subscribeCommands(ctx context.Context) bus.OnConnect {
	return func(c mqtt.Client) {
		topic := rt.cfg.Command.MQTTTopic
		if topic == "" {
			return
		}
		if err := rt.cmds.SubscribeMQTT(ctx, c, topic, rt.cfg.Command.MQTTReplyTopic); err != nil {
			rt.log.WithError(err).Error("mqtt command subscribe failed")
		}
	}
}

// Run starts every component and blocks until ctx is done or one of them
// fails. The monitor is stopped last so the lines end in the safe state.
func (rt *runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	spawn := func(name string, f func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	monCtx, monCancel := context.WithCancel(context.Background())
	monDone := make(chan error, 1)
	go func() { monDone <- rt.mon.Run(monCtx) }()

	spawn("awake watcher", func(ctx context.Context) error {
		rt.mon.WatchAwake(ctx, rt.cfg.Monitor.AwakePoll)
		return nil
	})
	spawn("driver", rt.reader.Run)
	if rt.udpIn != nil {
		spawn("command udp", func(ctx context.Context) error { return rt.cmds.ServeUDP(ctx, rt.udpIn) })
	}
	if rt.udpOut != nil {
		spawn("notify udp", func(ctx context.Context) error {
			notify.Forward(ctx, rt.feed, "udp", rt.udpOut, logging.Component(rt.log, "notify"))
			return nil
		})
	}
	if rt.mqtt != nil && rt.cfg.Notify.MQTTTopic != "" {
		sink := notify.NewMQTTSink(rt.mqtt, rt.cfg.Notify.MQTTTopic)
		spawn("notify mqtt", func(ctx context.Context) error {
			notify.Forward(ctx, rt.feed, "mqtt", sink, logging.Component(rt.log, "notify"))
			return nil
		})
	}
	if addr := rt.cfg.Web.Listen; addr != "" {
		h := web.Handler(web.Deps{
			Monitor:  rt.mon,
			Commands: rt.cmds,
			Feed:     rt.feed,
			Board:    rt.board,
			Logs:     rt.logs,
			Log:      logging.Component(rt.log, "web"),
		})
		spawn("web", func(ctx context.Context) error { return web.Serve(ctx, addr, h) })
		rt.log.WithField("addr", addr).Info("web ui listening")
	}

	<-ctx.Done()
	wg.Wait()
	monCancel()
	monErr := <-monDone

	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if monErr != nil {
		errs = append(errs, fmt.Errorf("monitor: %w", monErr))
	}
	return errors.Join(errs...)
}

// Close releases everything newRuntime opened. It is safe on a partially
// built runtime.
func (rt *runtime) Close() {
	if rt.mqtt != nil {
		bus.Close(rt.mqtt)
	}
	if rt.udpOut != nil {
		sent, failed := rt.udpOut.Counts()
		rt.log.WithFields(logrus.Fields{"dest": rt.udpOut.Dest(), "sent": sent, "failed": failed}).Info("notify udp closed")
		_ = rt.udpOut.Close()
	}
	if rt.udpIn != nil {
		_ = rt.udpIn.Close()
	}
	if rt.port != nil {
		_ = rt.port.Close()
	}
	if rt.hw != nil {
		_ = rt.hw.Close()
	} else if rt.lines != nil {
		_ = rt.lines.Close()
	}
}

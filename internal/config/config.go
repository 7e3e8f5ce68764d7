package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"gpsmon/internal/board"
	"gpsmon/internal/gpsmon"
)

type Config struct {
	Monitor   MonitorConfig   `yaml:"monitor"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Transport TransportConfig `yaml:"transport"`
	Command   CommandConfig   `yaml:"command"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Notify    NotifyConfig    `yaml:"notify"`
	Web       WebConfig       `yaml:"web"`
	Log       LogConfig       `yaml:"log"`
}

type MonitorConfig struct {
	RetryBudget     *int          `yaml:"retry_budget"`
	Collect         string        `yaml:"collect"`
	TellTransitions bool          `yaml:"tell_transitions"`
	AwakePoll       time.Duration `yaml:"awake_poll"`
	EventRepeat     time.Duration `yaml:"event_repeat"`
	Timing          TimingConfig  `yaml:"timing"`
}

type TimingConfig struct {
	Boot       time.Duration `yaml:"boot"`
	Startup    time.Duration `yaml:"startup"`
	CommCheck  time.Duration `yaml:"comm_check"`
	LockSearch time.Duration `yaml:"lock_search"`
	MPMEntry   time.Duration `yaml:"mpm_entry"`
	MPMRestart time.Duration `yaml:"mpm_restart"`
}

type HardwareConfig struct {
	Board      string            `yaml:"board"`
	Backend    string            `yaml:"backend"`
	Chip       string            `yaml:"chip"`
	Consumer   string            `yaml:"consumer"`
	Lines      map[string]string `yaml:"lines"`
	PulseWidth time.Duration     `yaml:"pulse_width"`
}

type TransportConfig struct {
	Backend     string  `yaml:"backend"`
	Device      string  `yaml:"device"`
	Baud        int     `yaml:"baud"`
	Capture     string  `yaml:"capture"`
	ReplaySpeed float64 `yaml:"replay_speed"`
	ReplayLoop  bool    `yaml:"replay_loop"`
}

type CommandConfig struct {
	UDPListen      string `yaml:"udp_listen"`
	MQTTTopic      string `yaml:"mqtt_topic"`
	MQTTReplyTopic string `yaml:"mqtt_reply_topic"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type NotifyConfig struct {
	UDPDest   string `yaml:"udp_dest"`
	MQTTTopic string `yaml:"mqtt_topic"`
	History   int    `yaml:"history"`
}

type WebConfig struct {
	Listen   string `yaml:"listen"`
	LogLines int    `yaml:"log_lines"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GPSMON_"

// DotEnvPath is loaded into the environment, if present, before overrides
// are applied. Variables already set win.
var DotEnvPath = ".env"

// Load reads the YAML file at path, applies the optional .env file and
// GPSMON_* environment overrides, then fills defaults and validates.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse is Load without the file read.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}

	if err := loadDotEnv(DotEnvPath); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.defaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%s: %w", path, err)
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"LOG_LEVEL":         &cfg.Log.Level,
		"LOG_FORMAT":        &cfg.Log.Format,
		"HARDWARE_BACKEND":  &cfg.Hardware.Backend,
		"HARDWARE_CHIP":     &cfg.Hardware.Chip,
		"TRANSPORT_BACKEND": &cfg.Transport.Backend,
		"TRANSPORT_DEVICE":  &cfg.Transport.Device,
		"UDP_LISTEN":        &cfg.Command.UDPListen,
		"MQTT_BROKER":       &cfg.MQTT.Broker,
		"MQTT_USERNAME":     &cfg.MQTT.Username,
		"MQTT_PASSWORD":     &cfg.MQTT.Password,
		"WEB_LISTEN":        &cfg.Web.Listen,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "TRANSPORT_BAUD"); ok {
		baud, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sTRANSPORT_BAUD: %w", EnvPrefix, err)
		}
		cfg.Transport.Baud = baud
	}
	return nil
}

func (cfg *Config) defaults() error {
	m := &cfg.Monitor
	if m.RetryBudget == nil {
		v := gpsmon.DefaultRetryBudget
		m.RetryBudget = &v
	}
	if *m.RetryBudget < 0 {
		return fmt.Errorf("monitor.retry_budget must be >= 0")
	}
	if _, err := gpsmon.ParseCollect(m.Collect); err != nil {
		return fmt.Errorf("monitor.collect must be auto, sats or time")
	}
	if m.AwakePoll < 0 || m.EventRepeat < 0 {
		return fmt.Errorf("monitor.awake_poll and monitor.event_repeat must be >= 0")
	}
	if m.AwakePoll == 0 {
		m.AwakePoll = 100 * time.Millisecond
	}
	for name, d := range map[string]time.Duration{
		"boot":        m.Timing.Boot,
		"startup":     m.Timing.Startup,
		"comm_check":  m.Timing.CommCheck,
		"lock_search": m.Timing.LockSearch,
		"mpm_entry":   m.Timing.MPMEntry,
		"mpm_restart": m.Timing.MPMRestart,
	} {
		if d < 0 {
			return fmt.Errorf("monitor.timing.%s must be >= 0", name)
		}
	}

	h := &cfg.Hardware
	if _, err := board.Lookup(h.Board); err != nil {
		return fmt.Errorf("hardware.board: %w", err)
	}
	if h.Board == "" {
		h.Board = board.Default
	}
	switch strings.ToLower(h.Backend) {
	case "":
		h.Backend = "none"
	case "none", "gpiocdev", "periph":
	default:
		return fmt.Errorf("hardware.backend must be none, gpiocdev or periph")
	}
	if h.PulseWidth < 0 {
		return fmt.Errorf("hardware.pulse_width must be >= 0")
	}

	t := &cfg.Transport
	switch strings.ToLower(t.Backend) {
	case "":
		t.Backend = "none"
	case "none":
	case "serial", "termios", "replay":
		if strings.TrimSpace(t.Device) == "" {
			return fmt.Errorf("transport.device is required when transport.backend is %s", t.Backend)
		}
	default:
		return fmt.Errorf("transport.backend must be none, serial, termios or replay")
	}
	if t.Baud < 0 {
		return fmt.Errorf("transport.baud must be > 0")
	}
	if t.ReplaySpeed < 0 {
		return fmt.Errorf("transport.replay_speed must be >= 0")
	}

	mqttUsed := cfg.Command.MQTTTopic != "" || cfg.Notify.MQTTTopic != ""
	if mqttUsed && strings.TrimSpace(cfg.MQTT.Broker) == "" {
		return fmt.Errorf("mqtt.broker is required when an mqtt topic is set")
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "gpsmon"
	}
	if cfg.Notify.History <= 0 {
		cfg.Notify.History = 64
	}

	if cfg.Web.LogLines <= 0 {
		cfg.Web.LogLines = 2000
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	return nil
}

// MachineConfig converts the monitor section.
func (cfg Config) MachineConfig() gpsmon.Config {
	collect, _ := gpsmon.ParseCollect(cfg.Monitor.Collect)
	budget := gpsmon.DefaultRetryBudget
	if cfg.Monitor.RetryBudget != nil {
		budget = *cfg.Monitor.RetryBudget
	}
	t := cfg.Monitor.Timing
	return gpsmon.Config{
		Timing: gpsmon.Timing{
			Boot:       t.Boot,
			Startup:    t.Startup,
			CommCheck:  t.CommCheck,
			LockSearch: t.LockSearch,
			MPMEntry:   t.MPMEntry,
			MPMRestart: t.MPMRestart,
		},
		RetryBudget:     budget,
		Collect:         collect,
		TellTransitions: cfg.Monitor.TellTransitions,
	}
}

// LineNames merges the board's default line names with configured ones. A
// configured empty name removes the line.
func (cfg Config) LineNames() map[string]string {
	out := map[string]string{}
	if b, err := board.Lookup(cfg.Hardware.Board); err == nil {
		out = b.LineNames()
	}
	for k, v := range cfg.Hardware.Lines {
		out[k] = v
	}
	return out
}
